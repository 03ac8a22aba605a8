// Package flat stores location points in a single JSON file.
package flat

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/rotblauer/trailplay/types"
	"github.com/rotblauer/trailplay/types/locpoint"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"
)

const (
	MessageLoaded  = "Route data loaded successfully"
	MessageCleared = "Route data cleared successfully"
	MessageSample  = "Sample data generated"
)

// Envelope is the on-disk layout.
// Data rows are kept raw so rows this program does not understand survive rewrites.
type Envelope struct {
	Status         string            `json:"status"`
	Data           []json.RawMessage `json:"data"`
	Total          int               `json:"total"`
	Showing        int               `json:"showing"`
	ProcessingTime string            `json:"processing_time"`
	Stats          EnvelopeStats     `json:"stats"`
	Message        string            `json:"message"`
}

type EnvelopeStats struct {
	TotalPoints int     `json:"total_points"`
	VisitPoints int     `json:"visit_points"`
	StartTime   *string `json:"start_time"`
	EndTime     *string `json:"end_time"`
}

func NewEnvelope(message string) *Envelope {
	return &Envelope{
		Status:         "success",
		Data:           []json.RawMessage{},
		ProcessingTime: "0ms",
		Message:        message,
	}
}

// Row encodes a point as a positional tuple:
// [lat, lng, address, "-", "-", null, routeId, timestamp, ".", flag, provider?]
func Row(p locpoint.LocationPoint) json.RawMessage {
	row := []any{p.Lat, p.Lng, p.Address, "-", "-", nil, p.RouteID.OrDefault(), p.Timestamp, ".", p.Flag}
	if p.LocationProvider != "" {
		row = append(row, p.LocationProvider)
	}
	b, _ := json.Marshal(row)
	return b
}

func (e *Envelope) append(p locpoint.LocationPoint) {
	e.Data = append(e.Data, Row(p))
	e.Total = len(e.Data)
	e.Showing = len(e.Data)
	e.Stats.TotalPoints = len(e.Data)
	if p.Flag == locpoint.FlagVisit {
		e.Stats.VisitPoints++
	}
	ts := p.Timestamp
	if e.Stats.StartTime == nil {
		e.Stats.StartTime = &ts
	}
	e.Stats.EndTime = &ts
}

// Store is a JSON file of location points.
// Writes replace the file atomically and hold an exclusive lock
// on a sibling lock file, so concurrent processes (eg. the daemon and an import) serialize.
type Store struct {
	path string
	mu   sync.Mutex
}

// Open returns the store at path, creating an empty one if none exists.
func Open(path string) (*Store, error) {
	path = filepath.Clean(path)
	if !filepath.IsAbs(path) {
		path, _ = filepath.Abs(path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0770); err != nil {
		return nil, err
	}
	s := &Store{path: path}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := s.write(NewEnvelope(MessageLoaded)); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Path() string {
	return s.path
}

// ReadRaw returns the file contents.
func (s *Store) ReadRaw() ([]byte, error) {
	return os.ReadFile(s.path)
}

// Locations normalizes every stored row.
// An unreadable or corrupt file reads as empty.
func (s *Store) Locations(now time.Time) *types.Normalized {
	data, err := s.ReadRaw()
	if err != nil {
		slog.Warn("Failed to read store, treating as empty", "path", s.path, "error", err)
		return &types.Normalized{}
	}
	n, err := types.Normalize(data, now)
	if err != nil {
		slog.Warn("Failed to decode store, treating as empty", "path", s.path, "error", err)
		return &types.Normalized{}
	}
	return n
}

func (s *Store) readEnvelope() (*Envelope, error) {
	data, err := s.ReadRaw()
	if errors.Is(err, os.ErrNotExist) {
		return NewEnvelope(MessageLoaded), nil
	}
	if err != nil {
		return nil, err
	}
	e := NewEnvelope(MessageLoaded)
	if len(bytes.TrimSpace(data)) == 0 {
		return e, nil
	}
	if err := json.Unmarshal(data, e); err != nil {
		return nil, fmt.Errorf("corrupt store %s: %w", s.path, err)
	}
	if e.Data == nil {
		e.Data = []json.RawMessage{}
	}
	return e, nil
}

// Append adds points to the end of the store.
func (s *Store) Append(points ...locpoint.LocationPoint) error {
	if len(points) == 0 {
		return nil
	}
	return s.update(func(e *Envelope) (*Envelope, error) {
		for _, p := range points {
			e.append(p)
		}
		return e, nil
	})
}

// Add appends one point and returns it with its ID set to its row position.
func (s *Store) Add(p locpoint.LocationPoint) (locpoint.LocationPoint, error) {
	err := s.update(func(e *Envelope) (*Envelope, error) {
		e.append(p)
		p.ID = len(e.Data)
		return e, nil
	})
	return p, err
}

// Clear replaces the store with an empty one.
func (s *Store) Clear() error {
	return s.update(func(*Envelope) (*Envelope, error) {
		return NewEnvelope(MessageCleared), nil
	})
}

// Replace overwrites the store with the given points.
func (s *Store) Replace(message string, points []locpoint.LocationPoint) error {
	return s.update(func(*Envelope) (*Envelope, error) {
		e := NewEnvelope(message)
		for _, p := range points {
			e.append(p)
		}
		return e, nil
	})
}

func (s *Store) update(fn func(e *Envelope) (*Envelope, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	unlock, err := s.lock()
	if err != nil {
		return err
	}
	defer unlock()

	e, err := s.readEnvelope()
	if err != nil {
		return err
	}
	e, err = fn(e)
	if err != nil {
		return err
	}
	return s.write(e)
}

func (s *Store) lock() (unlock func(), err error) {
	f, err := os.OpenFile(s.path+".lock", os.O_CREATE|os.O_RDWR, 0660)
	if err != nil {
		return nil, err
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		f.Close()
		return nil, err
	}
	return func() {
		if err := syscall.Flock(int(f.Fd()), syscall.LOCK_UN); err != nil {
			slog.Error("Failed to unlock store", "path", s.path, "error", err)
		}
		f.Close()
	}, nil
}

// write replaces the file via a temp file and rename.
func (s *Store) write(e *Envelope) error {
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}
