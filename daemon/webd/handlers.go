package webd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/paulmach/orb/geojson"
	"github.com/rotblauer/trailplay/conceptual"
	"github.com/rotblauer/trailplay/geo/segment"
	"github.com/rotblauer/trailplay/metrics"
	"github.com/rotblauer/trailplay/trail"
	"github.com/rotblauer/trailplay/types"
	"github.com/rotblauer/trailplay/types/locpoint"
)

// maxBodyBytes bounds a posted location.
const maxBodyBytes = 1 << 20

type response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Routes  any    `json:"routes,omitempty"`
	Count   *int   `json:"count,omitempty"`
}

func (s *WebDaemon) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("Failed to write response", "error", err)
	}
}

func (s *WebDaemon) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, response{Success: false, Message: message})
}

func pingPong(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("pong"))
}

func notFound(w http.ResponseWriter, r *http.Request) {
	setCorsHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	_ = json.NewEncoder(w).Encode(response{Success: false, Message: "Not found"})
}

type webDaemonStatus struct {
	StartedAt time.Time `json:"started_at"`
	Uptime    string    `json:"uptime"`
	Started   string    `json:"started"`
	Provider  string    `json:"provider"`
	DataFile  string    `json:"data_file"`
	WSConns   int       `json:"ws_conns"`
}

func (s *WebDaemon) statusReport(w http.ResponseWriter, r *http.Request) {
	st := webDaemonStatus{
		StartedAt: s.started,
		Uptime:    time.Since(s.started).Round(time.Second).String(),
		Started:   humanize.Time(s.started),
		Provider:  s.Config.Snap.Provider,
		DataFile:  s.store.Path(),
	}
	if s.melodyInstance != nil {
		st.WSConns = s.melodyInstance.Len()
	}
	s.writeJSON(w, http.StatusOK, st)
}

// locations reads and normalizes the store, logging what normalization dropped.
func (s *WebDaemon) locations() []locpoint.LocationPoint {
	n := s.store.Locations(time.Now())
	if len(n.Dropped) > 0 || len(n.Unparsed) > 0 {
		s.logger.Debug("Store rows need attention",
			"dropped", len(n.Dropped), "unparsed_timestamps", len(n.Unparsed), "error", n.Err())
	}
	return n.Points
}

func parseQueryTime(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	ts, err := types.ParseTimestamp(v, time.Now())
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339Nano, ts)
}

func (s *WebDaemon) getLocations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, err := parseQueryTime(q.Get("startDate"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid startDate")
		return
	}
	end, err := parseQueryTime(q.Get("endDate"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid endDate")
		return
	}
	query := trail.Query{RouteID: conceptual.RouteID(q.Get("routeId")), Start: start, End: end}

	points := trail.Sort(trail.Filter(s.locations(), query))
	if points == nil {
		points = []locpoint.LocationPoint{}
	}
	summaries := trail.Summaries(trail.Group(points))
	s.writeJSON(w, http.StatusOK, response{Success: true, Data: points, Routes: summaries})
}

// locationRequest is a location posted by a tracking client.
type locationRequest struct {
	Lat              *float64 `json:"lat" validate:"required,latitude"`
	Lng              *float64 `json:"lng" validate:"required,longitude"`
	Address          string   `json:"address" validate:"max=1024"`
	RouteID          string   `json:"routeId" validate:"max=256"`
	Timestamp        any      `json:"timestamp"`
	Flag             string   `json:"flag"`
	LocationProvider string   `json:"locationProvider" validate:"max=64"`
}

var validate = validator.New()

func (req *locationRequest) point(now time.Time) locpoint.LocationPoint {
	// Unparseable timestamps are kept verbatim.
	ts, _ := types.ParseTimestamp(req.Timestamp, now)
	return locpoint.LocationPoint{
		Lat:              *req.Lat,
		Lng:              *req.Lng,
		Address:          req.Address,
		RouteID:          conceptual.RouteID(req.RouteID).OrDefault(),
		Timestamp:        ts,
		Flag:             locpoint.ParseFlag(req.Flag),
		LocationProvider: req.LocationProvider,
	}
}

func (s *WebDaemon) postLocation(w http.ResponseWriter, r *http.Request) {
	req := &locationRequest{}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(req); err != nil {
		s.logger.Warn("Failed to decode location", "error", err)
		metrics.PointsDroppedTotal.WithLabelValues("decode").Inc()
		s.writeError(w, http.StatusBadRequest, "Invalid data format")
		return
	}
	if err := validate.Struct(req); err != nil {
		s.logger.Warn("Invalid location", "error", err)
		metrics.PointsDroppedTotal.WithLabelValues("invalid").Inc()
		s.writeError(w, http.StatusBadRequest, "Invalid data format")
		return
	}

	p := req.point(time.Now())
	if !s.dedupe.Pass(p) {
		s.logger.Debug("Dropping duplicate location", "point", p)
		metrics.PointsDroppedTotal.WithLabelValues("duplicate").Inc()
		s.writeJSON(w, http.StatusOK, response{Success: true, Message: "Location already saved", Data: p})
		return
	}
	saved, err := s.store.Add(p)
	if err != nil {
		s.dedupe.Forget(p)
		s.logger.Error("Failed to save location", "error", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to save location")
		return
	}
	metrics.PointsIngestedTotal.Inc()
	s.recent.Add(saved)
	s.feedIngested.Send([]locpoint.LocationPoint{saved})
	s.writeJSON(w, http.StatusCreated, response{Success: true, Message: "Location saved", Data: saved})
}

func (s *WebDaemon) getRoutes(w http.ResponseWriter, r *http.Request) {
	routes := trail.Routes(s.locations())
	if routes == nil {
		routes = []conceptual.RouteID{}
	}
	s.writeJSON(w, http.StatusOK, response{Success: true, Data: routes})
}

// requestTrail finds the trail named by the routeId path variable.
// It writes a 404 and returns nil when the route has no points.
func (s *WebDaemon) requestTrail(w http.ResponseWriter, r *http.Request) *trail.Trail {
	id := conceptual.RouteID(mux.Vars(r)["routeId"])
	t := trail.Find(trail.Group(s.locations()), id.OrDefault())
	if t == nil {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("No points for route %s", id.OrDefault()))
		return nil
	}
	return t
}

func (s *WebDaemon) getRouteSummary(w http.ResponseWriter, r *http.Request) {
	t := s.requestTrail(w, r)
	if t == nil {
		return
	}
	s.writeJSON(w, http.StatusOK, struct {
		Success bool               `json:"success"`
		Data    trail.RouteSummary `json:"data"`
		Stats   trail.Stats        `json:"stats"`
	}{true, trail.Summarize(t), trail.Inspect(t)})
}

func segmentsCollection(segs segment.Segments) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for i, ls := range segs.LineStrings() {
		f := geojson.NewFeature(ls)
		f.Properties["kind"] = "active"
		f.Properties["index"] = i
		f.Properties["points"] = len(ls)
		fc.Append(f)
	}
	for _, ls := range segs.GapLines() {
		f := geojson.NewFeature(ls)
		f.Properties["kind"] = "gap"
		fc.Append(f)
	}
	return fc
}

func (s *WebDaemon) getRouteSegments(w http.ResponseWriter, r *http.Request) {
	t := s.requestTrail(w, r)
	if t == nil {
		return
	}
	s.writeJSON(w, http.StatusOK, segmentsCollection(segment.Segment(t.Points)))
}

func (s *WebDaemon) getRouteSnapped(w http.ResponseWriter, r *http.Request) {
	t := s.requestTrail(w, r)
	if t == nil {
		return
	}
	if !t.Playable() {
		s.writeError(w, http.StatusUnprocessableEntity, "Route has too few points to snap")
		return
	}
	if s.snapper == nil {
		s.writeError(w, http.StatusUnprocessableEntity, "Road-snapping is disabled")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*s.Config.Snap.BatchTimeout)
	defer cancel()
	segs := segment.Segment(t.Points)
	res, err := s.snapper.SnapTrail(ctx, segs)
	if err != nil {
		s.logger.Warn("Snap abandoned", "route", t.RouteID, "error", err)
		s.writeError(w, http.StatusGatewayTimeout, "Road-snapping did not finish")
		return
	}

	fc := geojson.NewFeatureCollection()
	for i, leg := range res.Legs {
		f := geojson.NewFeature(leg.Coords)
		f.Properties["kind"] = "snapped"
		f.Properties["index"] = i
		f.Properties["snapped"] = leg.Snapped
		fc.Append(f)
	}
	for _, ls := range segs.GapLines() {
		f := geojson.NewFeature(ls)
		f.Properties["kind"] = "gap"
		fc.Append(f)
	}
	fc.ExtraMembers = geojson.Properties{
		"provider":  res.Provider,
		"batches":   res.Batches,
		"cached":    res.Cached,
		"fallbacks": res.Fallbacks,
	}
	s.writeJSON(w, http.StatusOK, fc)
}

// forgetIngested drops the dedupe marks and recent points of a store that was replaced,
// so re-posts are saved and new websocket clients are not sent removed points.
func (s *WebDaemon) forgetIngested() {
	s.dedupe.Purge()
	s.recent.Reset()
}

func (s *WebDaemon) postClear(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Clear(); err != nil {
		s.logger.Error("Failed to clear store", "error", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to clear data")
		return
	}
	s.forgetIngested()
	s.writeJSON(w, http.StatusOK, response{Success: true, Message: "All data cleared"})
}

func (s *WebDaemon) postSampleData(w http.ResponseWriter, r *http.Request) {
	n, err := s.store.ReplaceWithSample(rand.New(rand.NewSource(time.Now().UnixNano())))
	if err != nil {
		s.logger.Error("Failed to write sample data", "error", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to add sample data")
		return
	}
	s.forgetIngested()
	s.writeJSON(w, http.StatusOK, response{Success: true, Message: "Sample data added", Count: &n})
}

// staticHandler serves the front ends. Directory paths and extensionless
// paths resolve to their index.html.
func staticHandler(root string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := path.Clean("/" + r.URL.Path)
		name := filepath.Join(root, filepath.FromSlash(p))
		if p == "/" || path.Ext(p) == "" {
			name = filepath.Join(name, "index.html")
		}
		fi, err := os.Stat(name)
		if errors.Is(err, os.ErrNotExist) || (err == nil && fi.IsDir()) {
			notFound(w, r)
			return
		}
		if err != nil {
			http.Error(w, "Server Error", http.StatusInternalServerError)
			return
		}
		http.ServeFile(w, r, name)
	})
}
