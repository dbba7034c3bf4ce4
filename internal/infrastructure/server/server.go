package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	api "github.com/GriffinCanCode/AgentOS/bundles/internal/api/http"
	"github.com/GriffinCanCode/AgentOS/bundles/internal/api/middleware"
	"github.com/GriffinCanCode/AgentOS/bundles/internal/domain/bundle"
	"github.com/GriffinCanCode/AgentOS/bundles/internal/domain/catalog"
	"github.com/GriffinCanCode/AgentOS/bundles/internal/domain/manifest"
	"github.com/GriffinCanCode/AgentOS/bundles/internal/domain/monitor"
	"github.com/GriffinCanCode/AgentOS/bundles/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentOS/bundles/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/bundles/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/bundles/internal/providers/archive"
	"github.com/GriffinCanCode/AgentOS/bundles/internal/providers/remote"
)

const shutdownTimeout = 10 * time.Second

// Server wraps the HTTP server and dependencies
type Server struct {
	router   *gin.Engine
	catalog  *catalog.Catalog
	recorder *monitor.Recorder
	fetcher  *remote.Fetcher
	logger   *logging.Logger
	config   *config.Config
	metrics  *monitoring.Metrics
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config) (*Server, error) {
	logger := logging.FromLevel(cfg.Logging.Level, cfg.Logging.Development)

	logger.Info("Initializing bundle server",
		zap.String("port", cfg.Server.Port),
		zap.String("root", cfg.Bundles.Root),
		zap.Strings("manifests", cfg.Bundles.ManifestPaths),
	)

	// Metrics get their own registry so tests can build several servers.
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := monitoring.NewMetrics(reg)
	recorder := monitor.NewRecorder(0)

	var fetcher *remote.Fetcher
	if cfg.Remote.URL != "" {
		f, err := remote.New(remote.Config{
			BaseURL:  cfg.Remote.URL,
			Root:     cfg.Bundles.Root,
			Timeout:  cfg.Remote.Timeout,
			Retries:  cfg.Remote.Retries,
			Cooldown: cfg.Remote.Cooldown,
		}, remote.WithLogger(logger.Component("remote")))
		if err != nil {
			return nil, err
		}
		fetcher = f
		logger.Info("Remote bundle origin enabled", zap.String("url", cfg.Remote.URL))
	}

	caches, err := buildCaches(cfg, logger, metrics, recorder, fetcher)
	if err != nil {
		return nil, err
	}
	cat := catalog.New(caches...)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(middleware.Recovery(logger.Component("http")))
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(logger.Component("http")))
	router.Use(monitoring.Middleware(metrics, "/metrics"))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		rl := middleware.DefaultRateLimitConfig()
		rl.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		rl.Burst = cfg.RateLimit.Burst
		router.Use(middleware.RateLimit(rl))
	}

	handlers := api.NewHandlers(cat, recorder, metrics, logger.Component("api")).
		WithStore(cfg.Bundles.Root, cfg.Bundles.ManifestPaths...)
	if fetcher != nil {
		handlers.WithPrefetcher(fetcher)
	}
	handlers.Register(router)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))
	router.GET("/log/level", gin.WrapH(logger.LevelHandler()))
	router.PUT("/log/level", gin.WrapH(logger.LevelHandler()))

	logger.Info("Server initialized successfully", zap.Int("manifests", len(caches)))

	return &Server{
		router:   router,
		catalog:  cat,
		recorder: recorder,
		fetcher:  fetcher,
		logger:   logger,
		config:   cfg,
		metrics:  metrics,
	}, nil
}

// buildCaches creates one cache per manifest file, in lookup order.
func buildCaches(cfg *config.Config, logger *logging.Logger, metrics *monitoring.Metrics, recorder *monitor.Recorder, fetcher *remote.Fetcher) ([]*bundle.Cache, error) {
	duplicates, err := manifest.ParseDuplicatePolicy(cfg.Bundles.Duplicates)
	if err != nil {
		return nil, err
	}
	policy, err := bundle.ParseDependencyPolicy(cfg.Bundles.DependencyPolicy)
	if err != nil {
		return nil, err
	}

	caches := make([]*bundle.Cache, 0, len(cfg.Bundles.ManifestPaths))
	for _, path := range cfg.Bundles.ManifestPaths {
		m, err := manifest.LoadFile(path,
			manifest.WithLogger(logger.Component("manifest")),
			manifest.WithDuplicatePolicy(duplicates),
		)
		if err != nil {
			return nil, fmt.Errorf("load manifest %s: %w", path, err)
		}

		loaderOpts := []archive.Option{archive.WithLogger(logger.Component("archive"))}
		if fetcher != nil {
			loaderOpts = append(loaderOpts, archive.WithFileReader(fetcher.ReadFile))
		}
		providers, err := archive.Providers(m.Document(), loaderOpts...)
		if err != nil {
			return nil, fmt.Errorf("manifest %s: %w", path, err)
		}

		cacheLogger := logger.Component("cache").With(zap.String("manifest", path))
		caches = append(caches, bundle.NewCache(m, providers,
			bundle.WithLogger(cacheLogger),
			bundle.WithRoot(cfg.Bundles.Root),
			bundle.WithExpiry(cfg.Bundles.Expire),
			bundle.WithDependencyPolicy(policy),
			bundle.WithObserver(monitor.NewLogObserver(cacheLogger)),
			bundle.WithObserver(recorder),
			bundle.WithObserver(monitoring.NewBundleObserver(metrics)),
		))
	}
	return caches, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Catalog returns the bundle catalog.
func (s *Server) Catalog() *catalog.Catalog {
	return s.catalog
}

// Run serves HTTP and runs the background sweepers until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	addr := net.JoinHostPort(s.config.Server.Host, s.config.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		return s.metrics.Run(ctx)
	})

	if s.fetcher != nil && s.config.Remote.Prefetch {
		g.Go(func() error {
			paths := make([]string, 0)
			for _, p := range s.catalog.BundlePaths() {
				paths = append(paths, p)
			}
			n, err := s.fetcher.Prefetch(ctx, paths, s.config.Remote.PrefetchWorkers)
			if err != nil {
				// Bundles still download on first use.
				s.logger.Warn("Prefetch incomplete", zap.Int("fetched", n), zap.Error(err))
				return nil
			}
			s.logger.Info("Prefetch finished", zap.Int("fetched", n))
			return nil
		})
	}

	if s.config.Bundles.SweepInterval > 0 {
		for _, cache := range s.catalog.Caches() {
			g.Go(func() error {
				return cache.RunSweeper(ctx, s.config.Bundles.SweepInterval, s.config.Bundles.UnloadContents)
			})
		}
	}

	return g.Wait()
}

// Close unloads every bundle and flushes the logger.
func (s *Server) Close() error {
	s.logger.Info("Shutting down server...")
	s.catalog.UnloadAll(s.config.Bundles.UnloadContents)
	_ = s.logger.Sync()
	return nil
}
