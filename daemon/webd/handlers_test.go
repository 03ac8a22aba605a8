package webd

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/paulmach/orb/geojson"
	"github.com/rotblauer/trailplay/params"
	"github.com/tidwall/gjson"
)

func serve(t *testing.T, h http.Handler, method, target, body string) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	resp := w.Result()
	b, _ := io.ReadAll(resp.Body)
	return resp, b
}

func TestWebDaemon_ping(t *testing.T) {
	req := httptest.NewRequest("GET", "http://localhost/ping", nil)
	w := httptest.NewRecorder()
	pingPong(w, req)
	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != 200 {
		t.Fatalf("status code not 200")
	}
	if string(body) != "pong" {
		t.Errorf("body is not pong: %s", string(body))
	}
}

func TestWebDaemon_statusReport(t *testing.T) {
	d := newTestWebDaemon(t)
	d.started = time.Now().Add(-time.Minute)
	resp, body := serve(t, d.NewRouter(), "GET", "/api/status", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	status := webDaemonStatus{}
	if err := json.Unmarshal(body, &status); err != nil {
		t.Fatal(err)
	}
	if status.Uptime == "" {
		t.Fatal("uptime is empty")
	}
	if status.Provider != params.ProviderNone {
		t.Errorf("provider %q", status.Provider)
	}
}

func TestWebDaemon_postThenGetLocations(t *testing.T) {
	d := newTestWebDaemon(t)
	router := d.NewRouter()

	posts := []string{
		`{"lat":21.1,"lng":79.1,"routeId":"a","timestamp":"2026-01-12T09:21:00Z","flag":"check_out"}`,
		`{"lat":21.0,"lng":79.0,"routeId":"a","timestamp":"2026-01-12T09:20:00Z","flag":"check_in"}`,
		`{"lat":22.0,"lng":80.0,"routeId":"b","timestamp":1768209600000}`,
	}
	for _, p := range posts {
		resp, body := serve(t, router, "POST", "/api/location", p)
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("post %s: status %d %s", p, resp.StatusCode, body)
		}
		if msg := gjson.GetBytes(body, "message").String(); msg != "Location saved" {
			t.Errorf("message %q", msg)
		}
	}

	resp, body := serve(t, router, "GET", "/api/locations?routeId=a", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type %q", ct)
	}
	data := gjson.GetBytes(body, "data").Array()
	if len(data) != 2 {
		t.Fatalf("want 2 points, got %d: %s", len(data), body)
	}
	if data[0].Get("flag").String() != "check_in" {
		t.Errorf("points not sorted by time: %s", body)
	}
	if n := gjson.GetBytes(body, "routes.a.totalPoints").Int(); n != 2 {
		t.Errorf("route summary: %s", gjson.GetBytes(body, "routes.a").Raw)
	}

	_, body = serve(t, router, "GET", "/api/locations?startDate=2026-01-12T09:20:30Z&endDate=2026-01-12T10:00:00Z", "")
	if n := len(gjson.GetBytes(body, "data").Array()); n != 1 {
		t.Errorf("time filter: want 1 point, got %d", n)
	}

	_, body = serve(t, router, "GET", "/api/routes", "")
	if got := gjson.GetBytes(body, "data").Raw; got != `["a","b"]` {
		t.Errorf("routes %s", got)
	}
}

func TestWebDaemon_postDuplicate(t *testing.T) {
	d := newTestWebDaemon(t)
	router := d.NewRouter()
	p := `{"lat":21.1,"lng":79.1,"routeId":"a","timestamp":"2026-01-12T09:21:00Z"}`
	if resp, _ := serve(t, router, "POST", "/api/location", p); resp.StatusCode != http.StatusCreated {
		t.Fatalf("first post status %d", resp.StatusCode)
	}
	if resp, _ := serve(t, router, "POST", "/api/location", p); resp.StatusCode != http.StatusOK {
		t.Fatalf("duplicate post status %d", resp.StatusCode)
	}
	_, body := serve(t, router, "GET", "/api/locations", "")
	if n := len(gjson.GetBytes(body, "data").Array()); n != 1 {
		t.Errorf("want 1 stored point, got %d", n)
	}
}

func TestWebDaemon_repostAfterClear(t *testing.T) {
	for _, reset := range []string{"/api/clear", "/api/sample-data"} {
		t.Run(reset, func(t *testing.T) {
			d := newTestWebDaemon(t)
			router := d.NewRouter()
			p := `{"lat":21.1,"lng":79.1,"routeId":"a","timestamp":"2026-01-12T09:21:00Z"}`
			if resp, _ := serve(t, router, "POST", "/api/location", p); resp.StatusCode != http.StatusCreated {
				t.Fatalf("first post status %d", resp.StatusCode)
			}
			if resp, _ := serve(t, router, "POST", reset, ""); resp.StatusCode != http.StatusOK {
				t.Fatalf("%s status %d", reset, resp.StatusCode)
			}
			if d.recent.Len() != 0 {
				t.Errorf("recent ingests should be dropped, have %d", d.recent.Len())
			}
			if resp, body := serve(t, router, "POST", "/api/location", p); resp.StatusCode != http.StatusCreated {
				t.Fatalf("repost status %d %s", resp.StatusCode, body)
			}
			_, body := serve(t, router, "GET", "/api/locations?routeId=a", "")
			if n := len(gjson.GetBytes(body, "data").Array()); n != 1 {
				t.Errorf("want 1 stored point, got %d", n)
			}
		})
	}
}

func TestWebDaemon_retryAfterFailedSave(t *testing.T) {
	d := newTestWebDaemon(t)
	router := d.NewRouter()
	p := `{"lat":21.1,"lng":79.1,"routeId":"a","timestamp":"2026-01-12T09:21:00Z"}`

	// A read-only data dir fails the write.
	dir := filepath.Dir(d.store.Path())
	if err := os.Chmod(dir, 0o500); err != nil {
		t.Fatal(err)
	}
	resp, _ := serve(t, router, "POST", "/api/location", p)
	if err := os.Chmod(dir, 0o700); err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusInternalServerError {
		t.Skipf("store stayed writable (status %d); running as root?", resp.StatusCode)
	}
	if resp, body := serve(t, router, "POST", "/api/location", p); resp.StatusCode != http.StatusCreated {
		t.Fatalf("retry status %d %s", resp.StatusCode, body)
	}
}

func TestWebDaemon_postInvalid(t *testing.T) {
	d := newTestWebDaemon(t)
	router := d.NewRouter()
	for _, p := range []string{
		`not json`,
		`{"lng":79.1}`,
		`{"lat":91,"lng":79.1}`,
		`{"lat":21,"lng":"east"}`,
	} {
		resp, body := serve(t, router, "POST", "/api/location", p)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: status %d", p, resp.StatusCode)
		}
		if gjson.GetBytes(body, "success").Bool() {
			t.Errorf("%s: success should be false", p)
		}
		if msg := gjson.GetBytes(body, "message").String(); msg != "Invalid data format" {
			t.Errorf("%s: message %q", p, msg)
		}
	}
}

func TestWebDaemon_badDateFilter(t *testing.T) {
	d := newTestWebDaemon(t)
	resp, _ := serve(t, d.NewRouter(), "GET", "/api/locations?startDate=whenever", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status %d", resp.StatusCode)
	}
}

func TestWebDaemon_sampleDataAndClear(t *testing.T) {
	d := newTestWebDaemon(t)
	router := d.NewRouter()

	resp, body := serve(t, router, "POST", "/api/sample-data", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if n := gjson.GetBytes(body, "count").Int(); n != 40 {
		t.Errorf("count %d", n)
	}
	_, body = serve(t, router, "GET", "/api/routes", "")
	if n := len(gjson.GetBytes(body, "data").Array()); n != 2 {
		t.Errorf("want 2 sample routes, got %d", n)
	}

	resp, body = serve(t, router, "POST", "/api/clear", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if msg := gjson.GetBytes(body, "message").String(); msg != "All data cleared" {
		t.Errorf("message %q", msg)
	}
	_, body = serve(t, router, "GET", "/api/locations", "")
	if got := gjson.GetBytes(body, "data").Raw; got != "[]" {
		t.Errorf("data after clear %s", got)
	}
}

func TestWebDaemon_routeSegments(t *testing.T) {
	d := newTestWebDaemon(t)
	router := d.NewRouter()
	serve(t, router, "POST", "/api/sample-data", "")

	resp, body := serve(t, router, "GET", "/api/routes/Sandeep/segments", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	fc, err := geojson.UnmarshalFeatureCollection(body)
	if err != nil {
		t.Fatal(err)
	}
	if len(fc.Features) != 1 {
		t.Fatalf("want one active segment, got %d", len(fc.Features))
	}
	if fc.Features[0].Properties.MustString("kind") != "active" {
		t.Errorf("kind %v", fc.Features[0].Properties["kind"])
	}

	resp, _ = serve(t, router, "GET", "/api/routes/nobody/segments", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown route status %d", resp.StatusCode)
	}

	resp, body = serve(t, router, "GET", "/api/routes/Rupesh/summary", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("summary status %d", resp.StatusCode)
	}
	if n := gjson.GetBytes(body, "data.totalPoints").Int(); n != 20 {
		t.Errorf("summary %s", body)
	}
}

func TestWebDaemon_routeSnappedDisabled(t *testing.T) {
	d := newTestWebDaemon(t)
	router := d.NewRouter()
	serve(t, router, "POST", "/api/sample-data", "")
	resp, _ := serve(t, router, "GET", "/api/routes/Sandeep/snapped", "")
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("status %d", resp.StatusCode)
	}
}

func TestWebDaemon_routeSnappedFallback(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer failing.Close()

	config := newTestConfig(t)
	config.Snap = params.DefaultSnapConfig(params.ProviderOSRM)
	config.Snap.BaseURL = failing.URL
	config.Snap.BatchTimeout = time.Second
	d := newTestWebDaemonConfig(t, config)
	router := d.NewRouter()
	serve(t, router, "POST", "/api/sample-data", "")

	resp, body := serve(t, router, "GET", "/api/routes/Sandeep/snapped", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d %s", resp.StatusCode, body)
	}
	fc, err := geojson.UnmarshalFeatureCollection(body)
	if err != nil {
		t.Fatal(err)
	}
	if len(fc.Features) == 0 {
		t.Fatal("no features")
	}
	if snapped, _ := fc.Features[0].Properties["snapped"].(bool); snapped {
		t.Error("failed provider should fall back to straight lines")
	}
	if f := gjson.GetBytes(body, "fallbacks").Int(); f < 1 {
		t.Errorf("fallbacks %d", f)
	}
}

func TestWebDaemon_notFoundAndPreflight(t *testing.T) {
	d := newTestWebDaemon(t)
	router := d.NewRouter()

	resp, body := serve(t, router, "GET", "/api/nope", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status %d", resp.StatusCode)
	}
	if msg := gjson.GetBytes(body, "message").String(); msg != "Not found" {
		t.Errorf("message %q", msg)
	}

	resp, _ = serve(t, router, "OPTIONS", "/api/location", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("preflight status %d", resp.StatusCode)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("missing CORS headers")
	}
}

func TestWebDaemon_static(t *testing.T) {
	config := newTestConfig(t)
	config.Web.PublicDir = t.TempDir()
	if err := os.MkdirAll(filepath.Join(config.Web.PublicDir, "leaflet"), 0o755); err != nil {
		t.Fatal(err)
	}
	write := func(name, content string) {
		if err := os.WriteFile(filepath.Join(config.Web.PublicDir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("index.html", "root")
	write("leaflet/index.html", "leaflet")
	write("app.js", "js")
	router := newTestWebDaemonConfig(t, config).NewRouter()

	for target, want := range map[string]string{
		"/":         "root",
		"/leaflet/": "leaflet",
		"/leaflet":  "leaflet",
		"/app.js":   "js",
	} {
		resp, body := serve(t, router, "GET", target, "")
		if resp.StatusCode != http.StatusOK || string(body) != want {
			t.Errorf("%s: %d %q", target, resp.StatusCode, body)
		}
	}
	if resp, _ := serve(t, router, "GET", "/missing.css", ""); resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing file: status %d", resp.StatusCode)
	}

	// The router cleans paths itself, so traversal is checked on the handler.
	req := httptest.NewRequest("GET", "/", nil)
	req.URL.Path = "/../../etc/passwd"
	w := httptest.NewRecorder()
	staticHandler(config.Web.PublicDir).ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("traversal: status %d", w.Code)
	}
}
