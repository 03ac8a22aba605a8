package roadsnap

import (
	"context"
	"encoding/json"
	"errors"
	"github.com/paulmach/orb"
	"github.com/rotblauer/trailplay/params"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func fakeServer(t *testing.T, path string, body any, check func(r *http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, path) {
			t.Errorf("unexpected path %q, want prefix %q", r.URL.Path, path)
			http.NotFound(w, r)
			return
		}
		if check != nil {
			check(r)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testProvider(t *testing.T, name, baseURL string) Provider {
	t.Helper()
	cfg := params.DefaultSnapConfig(name)
	cfg.BaseURL = baseURL
	cfg.APIKey = "k3y"
	p, err := NewProvider(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func near(a, b orb.Point) bool {
	return math.Abs(a[0]-b[0]) < 1e-6 && math.Abs(a[1]-b[1]) < 1e-6
}

func TestNewProvider_None(t *testing.T) {
	_, err := NewProvider(params.DefaultSnapConfig(params.ProviderNone), nil)
	if !errors.Is(err, ErrNoProvider) {
		t.Fatalf("expected ErrNoProvider, got %v", err)
	}
	if _, err := NewProvider(&params.SnapConfig{Provider: "bogus"}, nil); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestNewProvider_Strategies(t *testing.T) {
	cases := map[string]Strategy{
		params.ProviderOSRM:   StrategyBatch,
		params.ProviderMapbox: StrategyBatch,
		params.ProviderGoogle: StrategySample,
		params.ProviderAzure:  StrategySample,
		params.ProviderHERE:   StrategySample,
		params.ProviderTomTom: StrategySample,
	}
	for name, want := range cases {
		p := testProvider(t, name, "http://localhost")
		if p.Name() != name {
			t.Errorf("name: got %s, want %s", p.Name(), name)
		}
		if got := p.Limits().Strategy; got != want {
			t.Errorf("%s: strategy %v, want %v", name, got, want)
		}
		if p.Limits().MaxWaypoints != params.DefaultSnapConfig(name).MaxWaypoints {
			t.Errorf("%s: max waypoints %d", name, p.Limits().MaxWaypoints)
		}
	}
}

func TestOSRM_Match(t *testing.T) {
	body := map[string]any{
		"code": "Ok",
		"matchings": []any{
			map[string]any{"geometry": map[string]any{"type": "LineString",
				"coordinates": [][]float64{{-93, 45}, {-93.0005, 45.0005}}}},
			map[string]any{"geometry": map[string]any{"type": "LineString",
				"coordinates": [][]float64{{-93.001, 45.001}, {-93.002, 45.002}}}},
		},
	}
	srv := fakeServer(t, "/match/v1/driving/", body, func(r *http.Request) {
		if want := "/match/v1/driving/-93,45;-93.001,45.001;-93.002,45.002"; r.URL.Path != want {
			t.Errorf("path %q, want %q", r.URL.Path, want)
		}
		q := r.URL.Query()
		if q.Get("geometries") != "geojson" || q.Get("overview") != "full" {
			t.Errorf("unexpected query %v", q)
		}
		if q.Get("radiuses") != "25;25;25" {
			t.Errorf("radiuses %q", q.Get("radiuses"))
		}
	})
	p := testProvider(t, params.ProviderOSRM, srv.URL)
	ls, err := p.Match(context.Background(), genPoints(3))
	if err != nil {
		t.Fatal(err)
	}
	if len(ls) != 4 {
		t.Fatalf("expected 4 coords from 2 matchings, got %d", len(ls))
	}
	if ls[0] != (orb.Point{-93, 45}) {
		t.Errorf("first coord %v", ls[0])
	}
}

func TestOSRM_NoMatch(t *testing.T) {
	srv := fakeServer(t, "/match/v1/", map[string]any{"code": "NoMatch", "message": "Could not match the trace."}, nil)
	p := testProvider(t, params.ProviderOSRM, srv.URL)
	_, err := p.Match(context.Background(), genPoints(3))
	if !errors.Is(err, ErrNoRoute) {
		t.Fatalf("expected ErrNoRoute, got %v", err)
	}
	var pe *ProviderError
	if !errors.As(err, &pe) || pe.Code != "NoMatch" {
		t.Fatalf("expected ProviderError with code NoMatch, got %#v", err)
	}
}

func TestMapbox_Match(t *testing.T) {
	body := map[string]any{
		"code": "Ok",
		"matchings": []any{
			map[string]any{"geometry": map[string]any{
				"coordinates": [][]float64{{-93, 45}, {-93.001, 45.001}, {-93.002, 45.002}}}},
		},
	}
	srv := fakeServer(t, "/matching/v5/mapbox/driving/", body, func(r *http.Request) {
		if r.URL.Query().Get("access_token") != "k3y" {
			t.Errorf("missing access token")
		}
	})
	p := testProvider(t, params.ProviderMapbox, srv.URL)
	ls, err := p.Match(context.Background(), genPoints(3))
	if err != nil {
		t.Fatal(err)
	}
	if len(ls) != 3 {
		t.Fatalf("expected 3 coords, got %d", len(ls))
	}
}

func TestGoogle_Match(t *testing.T) {
	body := map[string]any{
		"status": "OK",
		"routes": []any{map[string]any{
			"legs": []any{map[string]any{
				"steps": []any{
					map[string]any{"polyline": map[string]any{"points": "_p~iF~ps|U_ulLnnqC_mqNvxq`@"}},
				},
			}},
		}},
	}
	srv := fakeServer(t, "/maps/api/directions/json", body, func(r *http.Request) {
		q := r.URL.Query()
		if q.Get("origin") != "45,-93" || q.Get("destination") != "45.002,-93.002" {
			t.Errorf("origin/destination %q %q", q.Get("origin"), q.Get("destination"))
		}
		if q.Get("waypoints") != "via:45.001,-93.001" {
			t.Errorf("waypoints %q", q.Get("waypoints"))
		}
	})
	p := testProvider(t, params.ProviderGoogle, srv.URL)
	ls, err := p.Match(context.Background(), genPoints(3))
	if err != nil {
		t.Fatal(err)
	}
	want := orb.LineString{{-120.2, 38.5}, {-120.95, 40.7}, {-126.453, 43.252}}
	if len(ls) != len(want) {
		t.Fatalf("got %d coords, want %d", len(ls), len(want))
	}
	for i := range want {
		if !near(ls[i], want[i]) {
			t.Errorf("coord %d: got %v, want %v", i, ls[i], want[i])
		}
	}
}

func TestGoogle_ZeroResults(t *testing.T) {
	srv := fakeServer(t, "/maps/api/", map[string]any{"status": "ZERO_RESULTS", "routes": []any{}}, nil)
	p := testProvider(t, params.ProviderGoogle, srv.URL)
	_, err := p.Match(context.Background(), genPoints(2))
	var pe *ProviderError
	if !errors.As(err, &pe) || pe.Code != "ZERO_RESULTS" || !errors.Is(err, ErrNoRoute) {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestAzure_Match(t *testing.T) {
	body := map[string]any{
		"routes": []any{map[string]any{
			"legs": []any{
				map[string]any{"points": []any{
					map[string]any{"latitude": 45.0, "longitude": -93.0},
					map[string]any{"latitude": 45.001, "longitude": -93.001},
				}},
				map[string]any{"points": []any{
					map[string]any{"latitude": 45.001, "longitude": -93.001},
					map[string]any{"latitude": 45.002, "longitude": -93.002},
				}},
			},
		}},
	}
	srv := fakeServer(t, "/route/directions/json", body, func(r *http.Request) {
		q := r.URL.Query()
		if q.Get("query") != "45,-93:45.001,-93.001:45.002,-93.002" {
			t.Errorf("query %q", q.Get("query"))
		}
		if q.Get("subscription-key") != "k3y" {
			t.Errorf("missing key")
		}
	})
	p := testProvider(t, params.ProviderAzure, srv.URL)
	ls, err := p.Match(context.Background(), genPoints(3))
	if err != nil {
		t.Fatal(err)
	}
	if len(ls) != 3 {
		t.Fatalf("expected joint point deduped to 3 coords, got %d", len(ls))
	}
}

func TestTomTom_Match(t *testing.T) {
	body := map[string]any{
		"routes": []any{map[string]any{
			"legs": []any{map[string]any{"points": []any{
				map[string]any{"latitude": 45.0, "longitude": -93.0},
				map[string]any{"latitude": 45.002, "longitude": -93.002},
			}}},
		}},
	}
	srv := fakeServer(t, "/routing/1/calculateRoute/", body, func(r *http.Request) {
		if !strings.Contains(r.URL.Path, "45,-93:45.001,-93.001") {
			t.Errorf("path %q", r.URL.Path)
		}
	})
	p := testProvider(t, params.ProviderTomTom, srv.URL)
	ls, err := p.Match(context.Background(), genPoints(2))
	if err != nil {
		t.Fatal(err)
	}
	if len(ls) != 2 || ls[1] != (orb.Point{-93.002, 45.002}) {
		t.Fatalf("unexpected geometry %v", ls)
	}
}

func TestTomTom_EmptyRoutes(t *testing.T) {
	srv := fakeServer(t, "/routing/", map[string]any{"routes": []any{}}, nil)
	p := testProvider(t, params.ProviderTomTom, srv.URL)
	if _, err := p.Match(context.Background(), genPoints(2)); !errors.Is(err, ErrNoRoute) {
		t.Fatalf("expected ErrNoRoute, got %v", err)
	}
}

func TestHERE_Match(t *testing.T) {
	body := map[string]any{
		"routes": []any{map[string]any{
			"sections": []any{map[string]any{"polyline": "BFoz5xJ67i1B1B7PzIhaxL7Y"}},
		}},
	}
	srv := fakeServer(t, "/v8/routes", body, func(r *http.Request) {
		q := r.URL.Query()
		if len(q["via"]) != 1 || q.Get("return") != "polyline" {
			t.Errorf("unexpected query %v", q)
		}
	})
	p := testProvider(t, params.ProviderHERE, srv.URL)
	ls, err := p.Match(context.Background(), genPoints(3))
	if err != nil {
		t.Fatal(err)
	}
	if len(ls) != 4 {
		t.Fatalf("expected 4 coords, got %d", len(ls))
	}
	if !near(ls[0], orb.Point{8.69821, 50.10228}) || !near(ls[3], orb.Point{8.68752, 50.09878}) {
		t.Errorf("unexpected endpoints %v %v", ls[0], ls[3])
	}
}

func TestDecodeFlexPolyline_Invalid(t *testing.T) {
	for _, s := range []string{"", "A", "CFoz5xJ", "BFoz5x!"} {
		if _, err := decodeFlexPolyline(s); err == nil {
			t.Errorf("%q: expected error", s)
		}
	}
}

func TestProvider_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"code":"TooManyRequests","message":"slow down"}`))
	}))
	defer srv.Close()
	p := testProvider(t, params.ProviderOSRM, srv.URL)
	_, err := p.Match(context.Background(), genPoints(2))
	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if pe.StatusCode != http.StatusTooManyRequests || pe.Message != "slow down" {
		t.Errorf("unexpected error fields %#v", pe)
	}
}

func TestProvider_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()
	p := testProvider(t, params.ProviderOSRM, srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := p.Match(ctx, genPoints(2))
	var pe *ProviderError
	if !errors.As(err, &pe) || !pe.Timeout() {
		t.Fatalf("expected timed out ProviderError, got %v", err)
	}
}
