package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"airq-service/internal/analytics"
	"airq-service/internal/catalog"
	"airq-service/internal/config"
	"airq-service/internal/models"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const version = "1.0.0"

// Store keeps the recent-analyses feed. *cache.RedisClient implements it.
type Store interface {
	StoreAnalysis(ctx context.Context, rec models.AnalysisRecord) error
	RecentAnalyses(ctx context.Context, count int64) ([]models.AnalysisRecord, error)
	Ping(ctx context.Context) error
}

type Options struct {
	Catalogs *catalog.Registry
	// Store may be nil, which disables the recent-analyses feed.
	Store       Store
	Tracker     *analytics.Tracker
	QueueSize   int
	CORSOrigins []string
	Logger      *slog.Logger
}

type Server struct {
	router   *mux.Router
	handler  http.Handler
	catalogs *catalog.Registry
	engines  map[string]*analytics.Engine
	store    Store
	tracker  *analytics.Tracker
	readings chan models.Reading
	log      *slog.Logger

	closeOnce sync.Once
	workerWG  sync.WaitGroup
}

// NewEngines builds one engine per loaded locale from the default tables.
func NewEngines(reg *catalog.Registry) (map[string]*analytics.Engine, error) {
	engines := make(map[string]*analytics.Engine)
	for _, locale := range reg.Locales() {
		cat, _ := reg.Get(locale)
		e, err := analytics.New(analytics.DefaultTables(), cat)
		if err != nil {
			return nil, fmt.Errorf("failed to build %s engine: %w", locale, err)
		}
		engines[locale] = e
	}
	return engines, nil
}

func NewServer(opts Options) (*Server, error) {
	if opts.Catalogs == nil {
		return nil, errors.New("catalog registry is required")
	}
	if opts.Tracker == nil {
		return nil, errors.New("tracker is required")
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 10000
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	engines, err := NewEngines(opts.Catalogs)
	if err != nil {
		return nil, err
	}

	s := &Server{
		router:   mux.NewRouter(),
		catalogs: opts.Catalogs,
		engines:  engines,
		store:    opts.Store,
		tracker:  opts.Tracker,
		readings: make(chan models.Reading, opts.QueueSize),
		log:      logger,
	}

	s.setupRoutes()

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.handler = handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "Accept-Language"}),
	)(s.router)

	s.workerWG.Add(1)
	go s.processReadings()

	return s, nil
}

func (s *Server) setupRoutes() {
	s.router.Use(instrument)

	s.router.HandleFunc("/health", s.healthHandler).Methods("GET")
	s.router.HandleFunc("/analysis", s.analysisHandler).Methods("POST")
	s.router.HandleFunc("/analysis/improvement", s.improvementHandler).Methods("POST")
	s.router.HandleFunc("/analysis/recent", s.recentAnalysesHandler).Methods("GET")
	s.router.HandleFunc("/readings", s.ingestReadingHandler).Methods("POST")
	s.router.HandleFunc("/analytics/current", s.getAnalyticsHandler).Methods("GET")
	s.router.HandleFunc("/analytics/drops", s.getDropsHandler).Methods("GET")
	s.router.HandleFunc("/reference", s.referenceHandler).Methods("GET")
	s.router.Handle("/metrics/prometheus", promhttp.Handler())
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// engineFor picks the engine for ?lang= or, failing that, Accept-Language.
func (s *Server) engineFor(r *http.Request) *analytics.Engine {
	cat := s.catalogs.Match(r.URL.Query().Get("lang"), r.Header.Get("Accept-Language"))
	return s.engines[cat.Locale]
}

func (s *Server) defaultEngine() *analytics.Engine {
	return s.engines[s.catalogs.Default().Locale]
}

func (s *Server) processReadings() {
	defer s.workerWG.Done()

	for reading := range s.readings {
		queueDepth.Set(float64(len(s.readings)))

		result := s.defaultEngine().Analyze(reading.Inputs)
		observeResult(result, "ingest")
		readingsProcessed.Inc()

		ev := s.tracker.Observe(reading.DeviceID, reading.Timestamp, result)
		if result.Success {
			rollingAverage.Set(ev.RollingAverage)
		}
		if ev.IsDrop {
			scoreDrops.Inc()
			s.log.Warn("score drop detected",
				"device_id", reading.DeviceID,
				"score", ev.Score,
				"rolling_average", ev.RollingAverage,
				"z_score", ev.ZScore)
		}

		if !result.Success {
			s.log.Debug("invalid reading", "id", reading.ID, "errors", result.Errors)
			continue
		}
		s.storeRecord(context.Background(), models.AnalysisRecord{
			ID:        reading.ID,
			DeviceID:  reading.DeviceID,
			Timestamp: reading.Timestamp,
			Locale:    s.catalogs.Default().Locale,
			Inputs:    reading.Inputs,
			Result:    result,
		})
	}
}

// storeRecord writes to the feed when one is configured. Failures are
// logged only.
func (s *Server) storeRecord(ctx context.Context, rec models.AnalysisRecord) {
	if s.store == nil {
		return
	}
	if err := s.store.StoreAnalysis(ctx, rec); err != nil {
		s.log.Error("failed to cache analysis", "id", rec.ID, "error", err)
	}
}

func observeResult(result models.AnalysisResult, source string) {
	analysesTotal.WithLabelValues(result.Level, source).Inc()
	if !result.Success {
		validationFailures.Inc()
		return
	}
	scoreHistogram.Observe(result.Score)
	for _, rec := range result.Recommendations {
		recommendationsTotal.WithLabelValues(string(rec.Priority)).Inc()
	}
}

// Close stops accepting queued readings and waits for the worker to drain.
// It must only be called once no handler can still enqueue.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		close(s.readings)
	})
	s.workerWG.Wait()
}

func (s *Server) Run(cfg config.ServerConfig) error {
	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      s,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	done := make(chan struct{})
	stop := make(chan struct{})
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	var shutdownErr error
	go func() {
		select {
		case <-quit:
		case <-stop:
			return
		}
		s.log.Info("server is shutting down")

		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		srv.SetKeepAlivesEnabled(false)
		if err := srv.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("could not gracefully shutdown the server: %w", err)
		}
		close(done)
	}()

	s.log.Info("server is ready to handle requests", "addr", cfg.Addr())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		close(stop)
		s.Close()
		return fmt.Errorf("could not listen on %s: %w", cfg.Addr(), err)
	}

	<-done
	s.Close()
	s.log.Info("server stopped")
	return shutdownErr
}

func newID() string {
	return uuid.NewString()
}

func now() time.Time {
	return time.Now().UTC()
}
