// Package playback animates a path: a cursor advanced by a timer,
// with play, pause, seek and speed controls.
package playback

import (
	"errors"
	"fmt"
	"github.com/paulmach/orb"
	"github.com/rotblauer/trailplay/conceptual"
	"github.com/rotblauer/trailplay/params"
	"github.com/rotblauer/trailplay/types/locpoint"
	"math"
	"sync"
	"time"
)

var ErrInvalidSpeed = errors.New("speed multiplier must be a positive number")

// EmptyPathError means there is nothing to animate.
type EmptyPathError struct {
	RouteID conceptual.RouteID
}

func (e *EmptyPathError) Error() string {
	if e.RouteID.IsEmpty() {
		return "no path to play"
	}
	return fmt.Sprintf("no path to play for route %q", e.RouteID)
}

type State int

const (
	Stopped State = iota
	Playing
	Paused
)

func (s State) String() string {
	switch s {
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	}
	return "stopped"
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Cursor is a snapshot of the engine's position.
type Cursor struct {
	Index           int     `json:"index"`
	SpeedMultiplier float64 `json:"speedMultiplier"`
	Playing         bool    `json:"playing"`
}

// Frame is emitted on every change of position, state or path.
type Frame struct {
	Index    int                     `json:"index"`
	Total    int                     `json:"total"`
	Position orb.Point               `json:"position"`
	Heading  float64                 `json:"heading"`
	Traveled orb.LineString          `json:"-"`
	Nearest  *locpoint.LocationPoint `json:"nearest,omitempty"`
	Progress float64                 `json:"progress"`
	State    State                   `json:"state"`
	Source   SourceKind              `json:"source"`
	Speed    float64                 `json:"speed"`

	// Reset is set when the traveled overlay was cleared or replaced
	// rather than extended by one step.
	Reset bool `json:"reset"`
}

// Ticker is a recurring timer.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFunc makes a Ticker firing every d.
type TickerFunc func(d time.Duration) Ticker

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// RealTicker is the TickerFunc backed by time.Ticker.
func RealTicker(d time.Duration) Ticker {
	return realTicker{time.NewTicker(d)}
}

// Engine is the playback state machine.
//
// Its methods are safe for concurrent use. onFrame is called with the engine
// locked, so it must not call back into the engine.
type Engine struct {
	mu     sync.Mutex
	tickMu sync.Mutex

	config    *params.PlaybackConfig
	newTicker TickerFunc
	onFrame   func(Frame)

	path  *Path
	index int
	speed float64
	state State

	// run identifies the live timer goroutine; bumping it retires the old one.
	run  uint64
	stop chan struct{}
}

// NewEngine returns a stopped engine with no path.
// A nil config uses the defaults; a nil newTicker uses RealTicker.
func NewEngine(config *params.PlaybackConfig, newTicker TickerFunc, onFrame func(Frame)) *Engine {
	if config == nil {
		config = params.DefaultPlaybackConfig()
	}
	if newTicker == nil {
		newTicker = RealTicker
	}
	if onFrame == nil {
		onFrame = func(Frame) {}
	}
	return &Engine{
		config:    config,
		newTicker: newTicker,
		onFrame:   onFrame,
		speed:     1,
	}
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) Cursor() Cursor {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Cursor{Index: e.index, SpeedMultiplier: e.speed, Playing: e.state == Playing}
}

func (e *Engine) Path() *Path {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.path
}

// Interval is the current tick interval.
func (e *Engine) Interval() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.intervalLocked()
}

func (e *Engine) intervalLocked() time.Duration {
	d := time.Duration(float64(e.config.BaseInterval) / e.speed)
	return max(d, e.config.MinInterval, time.Millisecond)
}

// SetPath loads a new path and stops at its start.
func (e *Engine) SetPath(p *Path) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopTimerLocked()
	e.path = p
	e.index = 0
	e.state = Stopped
	e.emitLocked(true)
}

// ReplacePath swaps the path under the cursor, keeping state and
// the cursor's fractional position.
func (e *Engine) ReplacePath(p *Path) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.index = MapIndex(e.index, e.path.Len(), p.Len())
	e.path = p
	e.emitLocked(true)
}

// ReplacePathFrom is ReplacePath, only if the engine is still animating from.
func (e *Engine) ReplacePathFrom(from, to *Path) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.path != from {
		return false
	}
	e.index = MapIndex(e.index, e.path.Len(), to.Len())
	e.path = to
	e.emitLocked(true)
	return true
}

// Play starts or resumes playback. It is a no-op when already playing.
func (e *Engine) Play() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.path.Len() < 1 {
		return &EmptyPathError{}
	}
	if e.state == Playing {
		return nil
	}
	e.state = Playing
	e.startTimerLocked()
	e.emitLocked(false)
	return nil
}

// Pause stops the timer. Pausing twice is the same as pausing once.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != Playing {
		return
	}
	e.stopTimerLocked()
	e.state = Paused
	e.emitLocked(false)
}

// Reset stops playback and returns the cursor to the start.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopTimerLocked()
	e.index = 0
	e.state = Stopped
	e.emitLocked(true)
}

// Seek moves the cursor to a fraction of the path, clamped to [0, 1].
// The play state is unchanged.
func (e *Engine) Seek(fraction float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := e.path.Len()
	if n < 1 {
		return &EmptyPathError{}
	}
	if math.IsNaN(fraction) {
		fraction = 0
	}
	fraction = max(0, min(fraction, 1))
	e.index = min(int(math.Floor(fraction*float64(n-1))), n-1)
	e.emitLocked(true)
	return nil
}

// SetSpeed sets the speed multiplier. A playing engine restarts its timer
// at the new interval without moving the cursor.
func (e *Engine) SetSpeed(multiplier float64) error {
	if math.IsNaN(multiplier) || math.IsInf(multiplier, 0) || multiplier <= 0 {
		return ErrInvalidSpeed
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.speed = multiplier
	if e.state == Playing {
		e.stopTimerLocked()
		e.startTimerLocked()
	}
	e.emitLocked(false)
	return nil
}

// Tick advances a playing engine by one step. It reports whether it did anything.
// A tick that arrives while another is in progress is dropped.
func (e *Engine) Tick() bool {
	return e.tick(0)
}

// Close stops the timer.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopTimerLocked()
	if e.state == Playing {
		e.state = Paused
	}
}

// tick advances once. A non-zero run must match the live timer.
func (e *Engine) tick(run uint64) bool {
	if !e.tickMu.TryLock() {
		return false
	}
	defer e.tickMu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != Playing || (run != 0 && run != e.run) {
		return false
	}
	if e.index >= e.path.Len()-1 {
		// Ran off the end: rewind so the replay can simply be played again.
		e.stopTimerLocked()
		e.state = Stopped
		e.index = 0
		e.emitLocked(true)
		return true
	}
	e.index++
	e.emitLocked(false)
	return true
}

func (e *Engine) startTimerLocked() {
	e.run++
	run := e.run
	t := e.newTicker(e.intervalLocked())
	stop := make(chan struct{})
	e.stop = stop
	go func() {
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C():
				e.tick(run)
			}
		}
	}()
}

func (e *Engine) stopTimerLocked() {
	if e.stop != nil {
		close(e.stop)
		e.stop = nil
	}
	e.run++
}

func (e *Engine) emitLocked(reset bool) {
	f := Frame{
		Index: e.index,
		Total: e.path.Len(),
		State: e.state,
		Speed: e.speed,
		Reset: reset,
	}
	if f.Total > 0 {
		f.Position = e.path.At(e.index)
		f.Heading = e.path.Heading(e.index)
		f.Source = e.path.Source.Kind()
		if e.state != Stopped || e.index > 0 {
			f.Traveled = e.path.Traveled(e.index)
		}
		if f.Total > 1 {
			f.Progress = float64(e.index) / float64(f.Total-1) * 100
		}
		if p, ok := e.path.Nearest(e.index); ok {
			f.Nearest = &p
		}
	}
	e.onFrame(f)
}
