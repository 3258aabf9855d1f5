package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"registro/internal/cache"
	"registro/internal/core"
	"registro/internal/kv"
	"registro/internal/log"
	"registro/internal/middleware/cors"
	"registro/internal/middleware/ratelimit"
	"registro/internal/middleware/security"
	"registro/internal/middleware/trace"
	"registro/internal/registry"
	"registro/internal/settings"
	"registro/internal/theme"
)

// Deps are the services the API exposes. Store is checked by /readyz when
// it implements kv.Pinger.
type Deps struct {
	Registry *registry.Registry
	Settings *settings.Service
	Theme    *theme.State
	Store    kv.Store
	Logger   *log.Logger
}

// Options tune the HTTP layer.
type Options struct {
	RateLimitRPM   int
	AllowedOrigins []string
	TrustedProxies []string
	WindowSize     int
	CacheSize      int
	CacheTTL       time.Duration
}

type Server struct {
	http.Server
	registry *registry.Registry
	settings *settings.Service
	theme    *theme.State
	store    kv.Store
	logger   *log.Logger

	windowSize int
	now        func() time.Time
	started    time.Time

	summaries    *cache.LRUCache[core.Summary]
	summaryView  *cache.View[core.Summary]
	cacheManager *cache.Manager
	stopInvalid  func()

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer wires the middleware chain and routes, returning a ready-to-run
// server.
func NewServer(addr string, deps Deps, opts Options) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.Default(log.ComponentHTTP)
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	if opts.WindowSize <= 0 {
		opts.WindowSize = core.DefaultWindowSize
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 128
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = time.Minute
	}

	s := &Server{
		registry:     deps.Registry,
		settings:     deps.Settings,
		theme:        deps.Theme,
		store:        deps.Store,
		logger:       logger,
		windowSize:   opts.WindowSize,
		now:          time.Now,
		started:      time.Now(),
		summaries:    cache.NewLRUCache[core.Summary](opts.CacheSize, opts.CacheTTL),
		cacheManager: cache.NewManager(logger.WithComponent(log.ComponentCache)),
		limiter:      ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitRPM}),
		detector:     security.NewDetector(logger),
	}
	for _, cidr := range opts.TrustedProxies {
		if err := s.detector.AddTrustedProxy(cidr); err != nil {
			logger.Warn("Ignoring trusted proxy", log.FieldError, err.Error())
		}
	}
	s.tracer = trace.NewMiddleware(logger, s.detector.ClientIP)
	s.summaryView = cache.NewView[core.Summary](s.summaries)
	s.stopInvalid = s.summaryView.InvalidateOn(s.registry.Bus())
	s.cacheManager.Register(s.summaries)
	s.cacheManager.StartCleanup(10 * time.Minute)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(opts.AllowedOrigins),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) routes(allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.tracer.Middleware)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(s.detector.Middleware)
	r.Use(cors.Middleware(allowedOrigins))
	r.Use(middleware.Compress(5))
	r.Use(s.limitWrites)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "risorsa non trovata")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "metodo non consentito")
	})

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", s.handleMetrics)

	r.Route("/registry/{collection}", func(r chi.Router) {
		r.Get("/", s.handleList)
		r.Post("/", s.handleAdd)
		r.Get("/total", s.handleTotal)
		r.Get("/summary", s.handleSummary)
		r.Put("/{index}", s.handleReplace)
		r.Delete("/{index}", s.handleDelete)
	})

	r.Get("/window", s.handleWindow)
	r.Get("/months/{yearMonth}", s.handleMonth)
	r.Get("/report/{year}", s.handleYearReport)

	r.Route("/budget/{kind}", func(r chi.Router) {
		r.Get("/", s.handleGetBudget)
		r.Put("/", s.handleSetBudget)
		r.Delete("/", s.handleResetBudget)
		r.Get("/status", s.handleBudgetStatus)
	})

	r.Route("/settings", func(r chi.Router) {
		r.Get("/", s.handleListSettings)
		r.Delete("/", s.handleResetSettings)
		r.Get("/{key}", s.handleGetSetting)
		r.Put("/{key}", s.handleSetSetting)
	})

	r.Get("/theme", s.handleGetTheme)
	r.Put("/theme", s.handleSetTheme)
	r.Get("/currencies", s.handleCurrencies)
	r.Get("/convert", s.handleConvert)

	return r
}

// limitWrites rate limits the methods that change state.
func (s *Server) limitWrites(next http.Handler) http.Handler {
	limited := s.limiter.Middleware(s.detector.ClientIP, func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusTooManyRequests, "troppe richieste, riprova più tardi")
	})(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
		default:
			limited.ServeHTTP(w, r)
		}
	})
}

// Shutdown stops background cleanup and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.stopInvalid()
		s.cacheManager.Stop()
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
