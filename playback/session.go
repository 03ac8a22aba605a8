package playback

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/rotblauer/trailplay/conceptual"
	"github.com/rotblauer/trailplay/geo/segment"
	"github.com/rotblauer/trailplay/metrics"
	"github.com/rotblauer/trailplay/params"
	"github.com/rotblauer/trailplay/render"
	"github.com/rotblauer/trailplay/roadsnap"
	"github.com/rotblauer/trailplay/trail"
	"github.com/rotblauer/trailplay/types/locpoint"
)

// Snapper road-snaps a segmented trail. *roadsnap.Snapper is a Snapper.
type Snapper interface {
	SnapTrail(ctx context.Context, segs segment.Segments) (roadsnap.Result, error)
}

// Session is one viewer's playback: loaded trails, a selected route,
// an engine animating it, and a renderer drawing it.
type Session struct {
	ID string

	config   *params.PlaybackConfig
	renderer render.MapRenderer
	snapper  Snapper
	engine   *Engine
	onFrame  func(Frame)
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	trails     []*trail.Trail
	current    *trail.Trail
	path       *Path
	generation uint64
	cancelSnap context.CancelFunc
	snapped    *roadsnap.Result

	// drawn is the last cursor index reflected in the traveled layer.
	drawn int
}

type SessionOption func(*Session, *sessionOpts)

type sessionOpts struct {
	ticker TickerFunc
}

// WithTicker replaces the engine's timer source.
func WithTicker(tf TickerFunc) SessionOption {
	return func(_ *Session, o *sessionOpts) { o.ticker = tf }
}

// WithFrameHook is called after each frame is rendered.
// Like the renderer it runs with the engine locked.
func WithFrameHook(fn func(Frame)) SessionOption {
	return func(s *Session, _ *sessionOpts) { s.onFrame = fn }
}

// NewSession returns an idle session. A nil snapper disables road-snapping.
func NewSession(config *params.PlaybackConfig, renderer render.MapRenderer, snapper Snapper, opts ...SessionOption) *Session {
	if config == nil {
		config = params.DefaultPlaybackConfig()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ID:       uuid.NewString(),
		config:   config,
		renderer: renderer,
		snapper:  snapper,
		onFrame:  func(Frame) {},
		ctx:      ctx,
		cancel:   cancel,
	}
	o := &sessionOpts{}
	for _, opt := range opts {
		opt(s, o)
	}
	s.logger = slog.With("d", "playback", "session", s.ID)
	s.engine = NewEngine(config, o.ticker, s.render)
	metrics.PlaybackSessionsActive.Inc()
	return s
}

func (s *Session) Engine() *Engine {
	return s.engine
}

// Load replaces the session's trails and returns their route IDs.
// Any selected route and outstanding snap are dropped.
func (s *Session) Load(points []locpoint.LocationPoint) []conceptual.RouteID {
	s.mu.Lock()
	s.trails = trail.Group(points)
	s.current = nil
	s.path = nil
	s.snapped = nil
	s.supersedeLocked()
	s.mu.Unlock()

	s.engine.SetPath(nil)
	_ = s.renderer.Clear(render.AllLayers)
	return s.Routes()
}

// Routes lists the loaded route IDs.
func (s *Session) Routes() []conceptual.RouteID {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]conceptual.RouteID, len(s.trails))
	for i, t := range s.trails {
		ids[i] = t.RouteID
	}
	return ids
}

// Current returns the selected trail, or nil.
func (s *Session) Current() *trail.Trail {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// SelectRoute draws a route and loads its straight-line path, stopped at the start.
// When road-snapping is enabled the snapped path replaces it in the background.
func (s *Session) SelectRoute(id conceptual.RouteID) error {
	s.mu.Lock()
	t := trail.Find(s.trails, id.OrDefault())
	if t == nil || !t.Playable() {
		s.mu.Unlock()
		return &EmptyPathError{RouteID: id.OrDefault()}
	}
	path := NewPath(t.Points)
	s.current = t
	s.path = path
	s.snapped = nil
	gen := s.supersedeLocked()
	var snapCtx context.Context
	if s.snapper != nil && s.config.Snap {
		var cancel context.CancelFunc
		snapCtx, cancel = context.WithCancel(s.ctx)
		s.cancelSnap = cancel
	}
	s.mu.Unlock()

	segs := segment.Segment(t.Points)
	s.draw(t, segs)
	s.engine.SetPath(path)
	_ = s.renderer.PanTo(t.Points[0].Point())

	if snapCtx != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.snap(snapCtx, gen, segs)
		}()
	}
	return nil
}

// supersedeLocked starts a new generation, cancelling the outstanding snap.
func (s *Session) supersedeLocked() uint64 {
	s.generation++
	if s.cancelSnap != nil {
		s.cancelSnap()
		s.cancelSnap = nil
	}
	return s.generation
}

func (s *Session) draw(t *trail.Trail, segs segment.Segments) {
	_ = s.renderer.Clear(render.AllLayers)
	for _, ls := range segs.LineStrings() {
		_ = s.renderer.DrawPath(render.LayerActive, ls)
	}
	for _, ls := range segs.GapLines() {
		_ = s.renderer.DrawPath(render.LayerGaps, ls)
	}
	for _, p := range MarkerPoints(t.Points, s.config.MarkerStride) {
		_ = s.renderer.AddMarker(render.MarkerFor(render.LayerMarkers, p))
	}
}

// MarkerPoints picks the points drawn as markers: every stride-th point,
// plus the first, the last, and key-flagged points.
func MarkerPoints(points []locpoint.LocationPoint, stride int) []locpoint.LocationPoint {
	stride = max(stride, 1)
	out := make([]locpoint.LocationPoint, 0, len(points)/stride+2)
	for i, p := range points {
		if i%stride == 0 || i == len(points)-1 || p.IsKey() {
			out = append(out, p)
		}
	}
	return out
}

func (s *Session) snap(ctx context.Context, gen uint64, segs segment.Segments) {
	res, err := s.snapper.SnapTrail(ctx, segs)
	if err != nil {
		s.logger.Debug("Snap abandoned", "error", err)
		return
	}

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		s.logger.Debug("Discarding stale snap", "generation", gen)
		return
	}
	s.cancelSnap = nil
	route, straight := s.current.RouteID, s.path
	if res.Snapped() {
		s.snapped = &res
	}
	s.mu.Unlock()

	if !res.Snapped() {
		s.logger.Info("Road-snap unavailable, keeping straight path", "route", route)
		return
	}
	upgraded, ok := straight.Upgrade(res.Path())
	if !ok {
		return
	}
	// The engine refuses if the route changed since the generation check.
	if !s.engine.ReplacePathFrom(straight, upgraded) {
		s.logger.Debug("Discarding stale snap", "generation", gen)
		return
	}
	_ = s.renderer.DrawPath(render.LayerSnapped, upgraded.Source.Coords())
	s.logger.Info("Upgraded to snapped path", "route", route,
		"coords", upgraded.Len(), "batches", res.Batches, "fallbacks", res.Fallbacks)
}

// Snapped returns the snap result for the current route, once it has arrived.
func (s *Session) Snapped() *roadsnap.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapped
}

// render draws the traveled overlay and cursor for a frame.
func (s *Session) render(f Frame) {
	switch {
	case f.Total == 0:
	case len(f.Traveled) == 0:
		_ = s.renderer.Clear(render.LayerTraveled)
	case !f.Reset && f.Index == s.drawn+1:
		_ = s.renderer.DrawPath(render.LayerTraveled, f.Traveled[f.Index-1:])
	case !f.Reset && f.Index == s.drawn:
	default:
		_ = s.renderer.Clear(render.LayerTraveled)
		_ = s.renderer.DrawPath(render.LayerTraveled, f.Traveled)
	}
	s.drawn = f.Index

	if f.Total > 0 {
		m := render.Marker{Layer: render.LayerCursor, Position: f.Position, Heading: f.Heading}
		if f.Nearest != nil {
			m.Timestamp = f.Nearest.Timestamp
			m.Label = f.Nearest.Address
		}
		_ = s.renderer.Clear(render.LayerCursor)
		_ = s.renderer.AddMarker(m)
		_ = s.renderer.PanTo(f.Position)
	}
	s.onFrame(f)
}

func (s *Session) Play() error {
	if err := s.engine.Play(); err != nil {
		if c := s.Current(); c != nil {
			return &EmptyPathError{RouteID: c.RouteID}
		}
		return err
	}
	return nil
}

func (s *Session) Pause()                            { s.engine.Pause() }
func (s *Session) Reset()                            { s.engine.Reset() }
func (s *Session) Seek(fraction float64) error       { return s.engine.Seek(fraction) }
func (s *Session) SetSpeed(multiplier float64) error { return s.engine.SetSpeed(multiplier) }
func (s *Session) Cursor() Cursor                    { return s.engine.Cursor() }

// Wait blocks until background snapping has finished.
func (s *Session) Wait() {
	s.wg.Wait()
}

// Close stops playback and abandons any outstanding snap.
func (s *Session) Close() {
	s.mu.Lock()
	s.supersedeLocked()
	s.mu.Unlock()
	s.cancel()
	s.engine.Close()
	s.wg.Wait()
	metrics.PlaybackSessionsActive.Dec()
}
