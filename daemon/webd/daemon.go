package webd

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/event"
	"github.com/gorilla/mux"
	"github.com/olahol/melody"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotblauer/trailplay/common"
	"github.com/rotblauer/trailplay/params"
	"github.com/rotblauer/trailplay/roadsnap"
	"github.com/rotblauer/trailplay/store/cache"
	"github.com/rotblauer/trailplay/store/flat"
	"github.com/rotblauer/trailplay/types/locpoint"
	"log/slog"
)

// recentIngestSize is how many recent posts a new websocket client is sent.
const recentIngestSize = 100

type WebDaemon struct {
	Config *params.Config
	logger *slog.Logger

	store          *flat.Store
	snapper        *roadsnap.Snapper
	dedupe         *cache.Dedupe
	recent         *common.RingBuffer[locpoint.LocationPoint]
	melodyInstance *melody.Melody
	feedIngested   event.FeedOf[[]locpoint.LocationPoint]

	started     time.Time
	server      *http.Server
	done        chan struct{}
	interrupt   chan struct{}
	interrupted atomic.Bool
}

// NewWebDaemon opens the store and the configured road-snap provider.
// A nil config uses the defaults.
func NewWebDaemon(config *params.Config) (*WebDaemon, error) {
	if config == nil {
		config = params.DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	logger := slog.With("d", "web")

	store, err := flat.Open(config.Web.DataFile)
	if err != nil {
		return nil, err
	}

	var snapper *roadsnap.Snapper
	provider, err := roadsnap.NewProvider(config.Snap, nil)
	switch {
	case errors.Is(err, roadsnap.ErrNoProvider):
		logger.Info("Road-snapping disabled")
	case err != nil:
		return nil, err
	default:
		snapper = roadsnap.NewSnapper(provider, config.Snap)
		logger.Info("Road-snapping enabled", "provider", provider.Name(),
			"max_waypoints", provider.Limits().MaxWaypoints, "strategy", provider.Limits().Strategy)
	}

	return &WebDaemon{
		Config:       config,
		logger:       logger,
		store:        store,
		snapper:      snapper,
		dedupe:       cache.NewDedupe(config.Web.DedupeCacheSize),
		recent:       common.NewRingBuffer[locpoint.LocationPoint](recentIngestSize),
		feedIngested: event.FeedOf[[]locpoint.LocationPoint]{},
		done:         make(chan struct{}),
		interrupt:    make(chan struct{}, 1),
	}, nil
}

// Start listens and serves in the background.
// Stop it with Interrupt, then Wait.
func (s *WebDaemon) Start() error {
	listen, err := net.Listen(s.Config.Web.Network, s.Config.Web.Address)
	if err != nil {
		return err
	}
	s.started = time.Now()
	s.server = &http.Server{
		Handler:           s.NewRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		err := s.server.Serve(listen)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Web daemon serve error", "error", err)
			s.Interrupt()
		}
	}()
	go s.run()
	s.logger.Info("Web daemon started",
		slog.Group("listen", "network", s.Config.Web.Network, "address", listen.Addr().String()))
	return nil
}

// Run starts the daemon and blocks until it is interrupted.
func (s *WebDaemon) Run() error {
	if err := s.Start(); err != nil {
		return err
	}
	s.Wait()
	return nil
}

func (s *WebDaemon) run() {
	defer func() {
		if s.snapper != nil {
			s.snapper.Close()
		}
		close(s.done)
	}()

	<-s.interrupt
	s.interrupted.Store(true)
	s.logger.Info("Web daemon interrupted")

	ctx, cancel := context.WithTimeout(context.Background(), s.Config.Web.ShutdownTimeout)
	defer cancel()
	if err := s.melodyInstance.Close(); err != nil {
		s.logger.Warn("Failed to close websockets", "error", err)
	}
	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Error("Web daemon shutdown", "error", err)
	}
	s.logger.Info("Web daemon stopped")
}

func (s *WebDaemon) Wait() {
	<-s.done
}

// Interrupt begins a graceful shutdown. It is safe to call more than once.
func (s *WebDaemon) Interrupt() {
	select {
	case s.interrupt <- struct{}{}:
	default:
	}
}

func (s *WebDaemon) NewRouter() *mux.Router {
	s.initMelody()

	router := mux.NewRouter().StrictSlash(false)
	router.Use(loggingMiddleware)
	router.Use(metricsMiddleware)
	router.Use(permissiveCorsMiddleware)

	// CORS preflight is answered for any path.
	router.Methods(http.MethodOptions).HandlerFunc(preflight)

	router.Path("/ping").HandlerFunc(pingPong)
	router.Path("/socket").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = s.melodyInstance.HandleRequest(w, r)
	})
	router.Path("/metrics").Handler(promhttp.Handler()).Methods(http.MethodGet)

	apiJSONRoutes := router.PathPrefix("/api").Subrouter()
	apiJSONRoutes.Use(contentTypeMiddlewareFunc("application/json"))

	apiJSONRoutes.Path("/status").HandlerFunc(s.statusReport).Methods(http.MethodGet)
	apiJSONRoutes.Path("/locations").HandlerFunc(s.getLocations).Methods(http.MethodGet)
	apiJSONRoutes.Path("/location").HandlerFunc(s.postLocation).Methods(http.MethodPost)
	apiJSONRoutes.Path("/routes").HandlerFunc(s.getRoutes).Methods(http.MethodGet)
	apiJSONRoutes.Path("/routes/{routeId}/summary").HandlerFunc(s.getRouteSummary).Methods(http.MethodGet)
	apiJSONRoutes.Path("/routes/{routeId}/segments").HandlerFunc(s.getRouteSegments).Methods(http.MethodGet)
	apiJSONRoutes.Path("/routes/{routeId}/snapped").HandlerFunc(s.getRouteSnapped).Methods(http.MethodGet)
	apiJSONRoutes.Path("/clear").HandlerFunc(s.postClear).Methods(http.MethodPost)
	apiJSONRoutes.Path("/sample-data").HandlerFunc(s.postSampleData).Methods(http.MethodPost)

	if s.Config.Web.PublicDir != "" {
		router.Methods(http.MethodGet).Handler(staticHandler(s.Config.Web.PublicDir))
	}
	router.NotFoundHandler = http.HandlerFunc(notFound)
	router.MethodNotAllowedHandler = http.HandlerFunc(notFound)
	return router
}
