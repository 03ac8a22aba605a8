package roadsnap

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/paulmach/orb"
	"github.com/rotblauer/trailplay/geo/clean"
	"github.com/rotblauer/trailplay/geo/segment"
	"github.com/rotblauer/trailplay/metrics"
	"github.com/rotblauer/trailplay/params"
	"github.com/rotblauer/trailplay/store/cache"
	"github.com/rotblauer/trailplay/types/locpoint"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Snapper road-snaps segmented trails through one provider.
// It is safe for concurrent use.
type Snapper struct {
	provider Provider
	config   *params.SnapConfig
	limiter  *rate.Limiter
	cache    *cache.GeometryCache
	logger   *slog.Logger
}

// NewSnapper returns a Snapper for p. A nil config uses the provider's defaults.
func NewSnapper(p Provider, config *params.SnapConfig) *Snapper {
	if config == nil {
		config = params.DefaultSnapConfig(p.Name())
	}
	limit := rate.Inf
	if config.RequestsPerSecond > 0 {
		limit = rate.Limit(config.RequestsPerSecond)
	}
	return &Snapper{
		provider: p,
		config:   config,
		limiter:  rate.NewLimiter(limit, 1),
		cache:    cache.NewGeometryCache(config.CacheTTL),
		logger:   slog.With("d", "snap", "provider", p.Name()),
	}
}

func (s *Snapper) Provider() Provider {
	return s.provider
}

// Close stops the geometry cache.
func (s *Snapper) Close() {
	s.cache.Stop()
}

// Leg is one active segment's geometry.
type Leg struct {
	Coords orb.LineString
	// Snapped is true only when every batch of the segment came from the provider.
	Snapped bool
}

// Result is the road-snapped geometry of a trail, leg per active segment, in input order.
type Result struct {
	Provider  string
	Legs      []Leg
	Batches   int
	Cached    int
	Fallbacks int
}

// Path joins the legs into one line, dropping repeated boundary points.
func (r Result) Path() orb.LineString {
	var out orb.LineString
	for _, leg := range r.Legs {
		out = appendDistinct(out, leg.Coords)
	}
	return out
}

// Snapped reports whether any geometry came from the provider.
func (r Result) Snapped() bool {
	return r.Fallbacks < r.Batches
}

type batchJob struct {
	leg    int
	points []locpoint.LocationPoint
	coords orb.LineString
	cached bool
	err    error
}

// Requests plans the provider requests for one active segment:
// noise-filter, then batch or down-sample by the provider's strategy.
func (s *Snapper) Requests(points []locpoint.LocationPoint) [][]locpoint.LocationPoint {
	lim := s.provider.Limits()
	minGap := lim.MinGapMeters
	if s.config.MinGapMeters > 0 {
		minGap = s.config.MinGapMeters
	}
	points = clean.MinGap(points, minGap)
	if len(points) < 2 {
		return nil
	}
	maxWaypoints := lim.MaxWaypoints
	if s.config.MaxWaypoints >= 2 {
		maxWaypoints = s.config.MaxWaypoints
	}
	if maxWaypoints < 2 || len(points) <= maxWaypoints {
		return [][]locpoint.LocationPoint{points}
	}
	if lim.Strategy == StrategySample {
		return [][]locpoint.LocationPoint{Sample(points, maxWaypoints)}
	}
	return Batches(points, maxWaypoints)
}

// SnapTrail snaps every active segment. Gap edges are never sent to the provider.
// A failed batch is replaced by its straight-line coordinates;
// only cancellation of ctx is returned as an error.
func (s *Snapper) SnapTrail(ctx context.Context, segs segment.Segments) (Result, error) {
	res := Result{Provider: s.provider.Name(), Legs: make([]Leg, len(segs.Active))}

	var jobs []*batchJob
	for i, run := range segs.Active {
		for _, req := range s.Requests(run) {
			jobs = append(jobs, &batchJob{leg: i, points: req})
		}
	}

	g := new(errgroup.Group)
	g.SetLimit(max(1, s.config.Concurrency))
	for _, job := range jobs {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			s.run(ctx, job)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	for i := range res.Legs {
		res.Legs[i].Snapped = true
	}
	for _, job := range jobs {
		res.Batches++
		leg := &res.Legs[job.leg]
		switch {
		case job.err != nil:
			res.Fallbacks++
			leg.Snapped = false
			leg.Coords = appendDistinct(leg.Coords, locpoint.LineString(job.points))
		default:
			if job.cached {
				res.Cached++
			}
			leg.Coords = appendDistinct(leg.Coords, job.coords)
		}
	}
	for i, run := range segs.Active {
		// Segments too short to request stay straight.
		if len(res.Legs[i].Coords) == 0 {
			res.Legs[i] = Leg{Coords: locpoint.LineString(run)}
		}
	}
	s.logger.Debug("Snapped trail", "segments", len(segs.Active), "batches", res.Batches,
		"cached", res.Cached, "fallbacks", res.Fallbacks)
	return res, nil
}

func (s *Snapper) run(ctx context.Context, job *batchJob) {
	name := s.provider.Name()
	straight := locpoint.LineString(job.points)
	key, keyErr := cache.GeometryKey(name, s.config.Profile, straight)
	if keyErr == nil {
		if ls, ok := s.cache.Get(key); ok {
			job.coords, job.cached = ls, true
			metrics.SnapBatchesTotal.WithLabelValues(name, metrics.OutcomeCached).Inc()
			return
		}
	}

	if err := s.limiter.Wait(ctx); err != nil {
		job.err = err
		return
	}
	timeout := s.config.BatchTimeout
	if timeout <= 0 {
		timeout = params.DefaultSnapConfig(name).BatchTimeout
	}
	bctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	ls, err := s.provider.Match(bctx, job.points)
	metrics.SnapBatchDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		job.err = err
		if ctx.Err() == nil {
			var pe *ProviderError
			timedOut := errors.As(err, &pe) && pe.Timeout()
			s.logger.Warn("Road-snap batch failed, using straight line",
				"points", len(job.points), "timeout", timedOut, "error", err)
			metrics.SnapBatchesTotal.WithLabelValues(name, metrics.OutcomeFallback).Inc()
		}
		return
	}
	job.coords = ls
	if keyErr == nil {
		s.cache.Set(key, ls)
	}
	metrics.SnapBatchesTotal.WithLabelValues(name, metrics.OutcomeOK).Inc()
}

func appendDistinct(dst, src orb.LineString) orb.LineString {
	for i, p := range src {
		if i == 0 && len(dst) > 0 && dst[len(dst)-1].Equal(p) {
			continue
		}
		dst = append(dst, p)
	}
	return dst
}
