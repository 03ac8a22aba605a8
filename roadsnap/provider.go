package roadsnap

import (
	"context"
	"errors"
	"fmt"
	"github.com/paulmach/orb"
	"github.com/rotblauer/trailplay/params"
	"github.com/rotblauer/trailplay/types/locpoint"
	"github.com/tidwall/gjson"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

var (
	ErrNoRoute       = errors.New("no route")
	ErrEmptyGeometry = errors.New("empty geometry")
	ErrNoProvider    = errors.New("road-snapping disabled")
)

// Strategy is how a provider copes with trails longer than its waypoint cap.
type Strategy int

const (
	// StrategyBatch splits the trail into overlapping requests.
	StrategyBatch Strategy = iota
	// StrategySample down-samples the trail into one request.
	StrategySample
)

func (s Strategy) String() string {
	if s == StrategySample {
		return "sample"
	}
	return "batch"
}

type Limits struct {
	MaxWaypoints int
	Strategy     Strategy
	MinGapMeters float64
}

// Provider turns an ordered list of points into road geometry.
type Provider interface {
	Name() string
	Limits() Limits
	Match(ctx context.Context, points []locpoint.LocationPoint) (orb.LineString, error)
}

// ProviderError is any failure to get geometry from a provider.
// It is recovered by falling back to straight lines.
type ProviderError struct {
	Provider   string
	StatusCode int    // HTTP status, if a response arrived
	Code       string // provider status code, eg. NoMatch, ZERO_RESULTS
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	var b strings.Builder
	b.WriteString(e.Provider)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": status %d", e.StatusCode)
	}
	if e.Code != "" {
		fmt.Fprintf(&b, ": %s", e.Code)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the request ran out of time.
func (e *ProviderError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// NewProvider returns the configured provider.
// Provider "none" returns ErrNoProvider.
func NewProvider(cfg *params.SnapConfig, client *http.Client) (Provider, error) {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	base := httpProvider{
		client:  client,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		profile: cfg.Profile,
		limits: Limits{
			MaxWaypoints: cfg.MaxWaypoints,
			Strategy:     StrategySample,
			MinGapMeters: cfg.MinGapMeters,
		},
	}
	switch cfg.Provider {
	case params.ProviderOSRM:
		base.limits.Strategy = StrategyBatch
		return &OSRM{httpProvider: base, RadiusMeters: cfg.RadiusMeters}, nil
	case params.ProviderMapbox:
		base.limits.Strategy = StrategyBatch
		return &Mapbox{httpProvider: base, RadiusMeters: cfg.RadiusMeters}, nil
	case params.ProviderGoogle:
		return &Google{httpProvider: base}, nil
	case params.ProviderAzure:
		return &Azure{httpProvider: base}, nil
	case params.ProviderHERE:
		return &HERE{httpProvider: base}, nil
	case params.ProviderTomTom:
		return &TomTom{httpProvider: base}, nil
	case params.ProviderNone, "":
		return nil, ErrNoProvider
	}
	return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
}

// httpProvider is the plumbing shared by the HTTP routing providers.
type httpProvider struct {
	client  *http.Client
	baseURL string
	apiKey  string
	profile string
	limits  Limits
}

func (h *httpProvider) Limits() Limits {
	return h.limits
}

// maxResponseBytes bounds provider response bodies.
const maxResponseBytes = 32 << 20

// getJSON issues a GET and returns the parsed body.
// Transport failures, non-2xx responses and invalid JSON are *ProviderError.
func (h *httpProvider) getJSON(ctx context.Context, name, u string) (gjson.Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return gjson.Result{}, &ProviderError{Provider: name, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	resp, err := h.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return gjson.Result{}, &ProviderError{Provider: name, Err: err}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return gjson.Result{}, &ProviderError{Provider: name, StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return gjson.Result{}, &ProviderError{
			Provider:   name,
			StatusCode: resp.StatusCode,
			Code:       firstString(gjson.ParseBytes(body), "code", "status", "error.code"),
			Message:    firstString(gjson.ParseBytes(body), "message", "error_message", "error.message", "title"),
		}
	}
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, &ProviderError{Provider: name, StatusCode: resp.StatusCode, Message: "invalid json body"}
	}
	return gjson.ParseBytes(body), nil
}

func firstString(r gjson.Result, paths ...string) string {
	for _, p := range paths {
		if v := r.Get(p); v.Exists() && v.Type == gjson.String {
			return v.Str
		}
	}
	return ""
}

// lngLatPairs reads GeoJSON-style [lng, lat] coordinate arrays.
func lngLatPairs(coords gjson.Result, into orb.LineString) orb.LineString {
	coords.ForEach(func(_, c gjson.Result) bool {
		into = append(into, orb.Point{c.Get("0").Float(), c.Get("1").Float()})
		return true
	})
	return into
}

// latLngObjects reads [{latitude, longitude}] arrays.
func latLngObjects(points gjson.Result, into orb.LineString) orb.LineString {
	points.ForEach(func(_, p gjson.Result) bool {
		into = append(into, orb.Point{p.Get("longitude").Float(), p.Get("latitude").Float()})
		return true
	})
	return into
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// lngLat formats a point as "lng,lat".
func lngLat(p locpoint.LocationPoint) string {
	return formatFloat(p.Lng) + "," + formatFloat(p.Lat)
}

// latLng formats a point as "lat,lng".
func latLng(p locpoint.LocationPoint) string {
	return formatFloat(p.Lat) + "," + formatFloat(p.Lng)
}

func joinPoints(points []locpoint.LocationPoint, format func(locpoint.LocationPoint) string, sep string) string {
	parts := make([]string, len(points))
	for i, p := range points {
		parts[i] = format(p)
	}
	return strings.Join(parts, sep)
}

func repeat(s string, n int, sep string) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = s
	}
	return strings.Join(parts, sep)
}
