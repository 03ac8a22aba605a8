package roadsnap

import (
	"context"
	"errors"
	"github.com/paulmach/orb"
	"github.com/rotblauer/trailplay/common"
	"github.com/rotblauer/trailplay/geo/segment"
	"github.com/rotblauer/trailplay/params"
	"github.com/rotblauer/trailplay/types/locpoint"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// echoProvider returns its input as geometry, after an optional per-call delay.
type echoProvider struct {
	limits Limits
	calls  atomic.Int32
	delay  func(points []locpoint.LocationPoint) time.Duration
	fail   func(points []locpoint.LocationPoint) bool

	mu   sync.Mutex
	seen [][]locpoint.LocationPoint
}

func (e *echoProvider) Name() string   { return "echo" }
func (e *echoProvider) Limits() Limits { return e.limits }

func (e *echoProvider) Match(ctx context.Context, points []locpoint.LocationPoint) (orb.LineString, error) {
	e.calls.Add(1)
	e.mu.Lock()
	e.seen = append(e.seen, points)
	e.mu.Unlock()
	if e.delay != nil {
		select {
		case <-time.After(e.delay(points)):
		case <-ctx.Done():
			return nil, &ProviderError{Provider: e.Name(), Err: ctx.Err()}
		}
	}
	if e.fail != nil && e.fail(points) {
		return nil, &ProviderError{Provider: e.Name(), Code: "NoRoute", Err: ErrNoRoute}
	}
	return locpoint.LineString(points), nil
}

func testSnapConfig() *params.SnapConfig {
	return &params.SnapConfig{
		Provider:     params.ProviderOSRM,
		Profile:      "driving",
		MaxWaypoints: 100,
		Concurrency:  3,
		BatchTimeout: time.Second,
		CacheTTL:     time.Minute,
	}
}

func TestSnapTrail_OrderRegardlessOfCompletion(t *testing.T) {
	points := genPoints(250)
	p := &echoProvider{
		limits: Limits{MaxWaypoints: 100, Strategy: StrategyBatch},
		// Earlier batches finish last.
		delay: func(b []locpoint.LocationPoint) time.Duration {
			return time.Duration(300-b[0].ID) * 100 * time.Microsecond
		},
	}
	s := NewSnapper(p, testSnapConfig())
	defer s.Close()

	res, err := s.SnapTrail(context.Background(), segment.Segment(points))
	if err != nil {
		t.Fatal(err)
	}
	if res.Batches != 3 || p.calls.Load() != 3 {
		t.Fatalf("expected 3 batches, got %d (calls %d)", res.Batches, p.calls.Load())
	}
	path := res.Path()
	if len(path) < 250-2 {
		t.Fatalf("stitched path too short: %d", len(path))
	}
	if path[0] != points[0].Point() || path[len(path)-1] != points[len(points)-1].Point() {
		t.Errorf("endpoints not preserved")
	}
	for i := 1; i < len(path); i++ {
		if path[i][1] <= path[i-1][1] {
			t.Fatalf("path out of order at %d", i)
		}
	}
	if !res.Snapped() || !res.Legs[0].Snapped {
		t.Errorf("expected snapped result")
	}
}

func TestSnapTrail_FallbackOnFailure(t *testing.T) {
	defer common.SlogResetLevel(slog.LevelError + 1)()
	points := genPoints(250)
	p := &echoProvider{
		limits: Limits{MaxWaypoints: 100, Strategy: StrategyBatch},
		fail: func(b []locpoint.LocationPoint) bool {
			return b[0].ID == 100
		},
	}
	s := NewSnapper(p, testSnapConfig())
	defer s.Close()

	res, err := s.SnapTrail(context.Background(), segment.Segment(points))
	if err != nil {
		t.Fatalf("fallback must not be fatal: %v", err)
	}
	if res.Fallbacks != 1 {
		t.Errorf("expected 1 fallback, got %d", res.Fallbacks)
	}
	if res.Legs[0].Snapped {
		t.Errorf("leg with a fallback batch must not report snapped")
	}
	if got := len(res.Path()); got != 250 {
		t.Errorf("straight-line substitution should keep all points, got %d", got)
	}
}

func TestSnapTrail_TimeoutFallsBack(t *testing.T) {
	defer common.SlogResetLevel(slog.LevelError + 1)()
	p := &echoProvider{
		limits: Limits{MaxWaypoints: 100, Strategy: StrategyBatch},
		delay:  func([]locpoint.LocationPoint) time.Duration { return time.Minute },
	}
	cfg := testSnapConfig()
	cfg.BatchTimeout = 20 * time.Millisecond
	s := NewSnapper(p, cfg)
	defer s.Close()

	res, err := s.SnapTrail(context.Background(), segment.Segment(genPoints(10)))
	if err != nil {
		t.Fatal(err)
	}
	if res.Fallbacks != 1 || res.Snapped() {
		t.Errorf("expected timed out batch to fall back, got %+v", res)
	}
	if len(res.Path()) != 10 {
		t.Errorf("expected straight line of 10, got %d", len(res.Path()))
	}
}

func TestSnapTrail_Cancelled(t *testing.T) {
	p := &echoProvider{limits: Limits{MaxWaypoints: 100, Strategy: StrategyBatch}}
	s := NewSnapper(p, testSnapConfig())
	defer s.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.SnapTrail(ctx, segment.Segment(genPoints(10))); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestSnapTrail_Cache(t *testing.T) {
	p := &echoProvider{limits: Limits{MaxWaypoints: 100, Strategy: StrategyBatch}}
	s := NewSnapper(p, testSnapConfig())
	defer s.Close()
	segs := segment.Segment(genPoints(250))

	if _, err := s.SnapTrail(context.Background(), segs); err != nil {
		t.Fatal(err)
	}
	res, err := s.SnapTrail(context.Background(), segs)
	if err != nil {
		t.Fatal(err)
	}
	if res.Cached != 3 {
		t.Errorf("expected 3 cached batches, got %d", res.Cached)
	}
	if p.calls.Load() != 3 {
		t.Errorf("expected provider called 3 times total, got %d", p.calls.Load())
	}
}

func TestSnapTrail_GapsNotRequested(t *testing.T) {
	points := genPoints(9)
	points[4].LocationProvider = locpoint.ProviderOff
	p := &echoProvider{limits: Limits{MaxWaypoints: 100, Strategy: StrategyBatch}}
	s := NewSnapper(p, testSnapConfig())
	defer s.Close()

	res, err := s.SnapTrail(context.Background(), segment.Segment(points))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Legs) != 2 {
		t.Fatalf("expected 2 legs, got %d", len(res.Legs))
	}
	for _, b := range p.seen {
		for _, pt := range b {
			if pt.IsGap() {
				t.Fatalf("gap marker %d sent to provider", pt.ID)
			}
		}
	}
}

func TestSnapper_RequestsSample(t *testing.T) {
	points := genPoints(300)
	points[150].Flag = locpoint.FlagVisit
	p := &echoProvider{limits: Limits{MaxWaypoints: 25, Strategy: StrategySample}}
	cfg := testSnapConfig()
	cfg.MaxWaypoints = 25
	s := NewSnapper(p, cfg)
	defer s.Close()

	reqs := s.Requests(points)
	if len(reqs) != 1 {
		t.Fatalf("sample strategy should issue one request, got %d", len(reqs))
	}
	req := reqs[0]
	if len(req) > 25 {
		t.Errorf("request exceeds cap: %d", len(req))
	}
	if req[0].ID != 1 || req[len(req)-1].ID != 300 {
		t.Errorf("endpoints not kept")
	}
	var visit bool
	for _, pt := range req {
		visit = visit || pt.ID == 151
	}
	if !visit {
		t.Errorf("visit point dropped")
	}
}

func TestSnapper_RequestsMinGap(t *testing.T) {
	points := genPoints(5)
	// Squeeze the middle points onto the first.
	for i := 1; i < 4; i++ {
		points[i].Lat, points[i].Lng = points[0].Lat, points[0].Lng
	}
	p := &echoProvider{limits: Limits{MaxWaypoints: 100, Strategy: StrategyBatch}}
	cfg := testSnapConfig()
	cfg.MinGapMeters = 15
	s := NewSnapper(p, cfg)
	defer s.Close()

	reqs := s.Requests(points)
	if len(reqs) != 1 || len(reqs[0]) != 2 {
		t.Fatalf("expected one request of 2 points, got %v", reqs)
	}
}
