package api

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/tagarr/tagarr/internal/api/handlers"
	apimw "github.com/tagarr/tagarr/internal/api/middleware"
	"github.com/tagarr/tagarr/internal/api/ratelimit"
	"github.com/tagarr/tagarr/internal/config"
	"github.com/tagarr/tagarr/internal/health"
	"github.com/tagarr/tagarr/internal/logger"
	"github.com/tagarr/tagarr/internal/tagging"
	"github.com/tagarr/tagarr/internal/websocket"
)

// Runner is the tagging service as seen by the HTTP layer.
type Runner interface {
	RunItem(ctx context.Context, itemID int64) (*tagging.Summary, error)
	TryRunBatch(ctx context.Context) (*tagging.Summary, error)
	IsRunning() bool
	LastStatus() tagging.Status
}

// Options carries the optional collaborators of the server.
type Options struct {
	Health    *health.Service
	Logs      *logger.Recent
	Scheduler handlers.TaskScheduler
	// Hub streams log entries and run events over /api/v1/ws.
	Hub *websocket.Hub
}

// Server handles HTTP requests for the tagarr API.
type Server struct {
	echo   *echo.Echo
	logger zerolog.Logger
	cfg    config.ServerConfig
	runner Runner
	opts   Options

	items   singleflight.Group
	limiter *ratelimit.IPLimiter

	// ctx outlives requests; background runs are cancelled on Shutdown.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer creates a new API server instance.
func NewServer(cfg config.ServerConfig, runner Runner, opts Options, logger *zerolog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		echo:    e,
		logger:  logger.With().Str("component", "api").Logger(),
		cfg:     cfg,
		runner:  runner,
		opts:    opts,
		limiter: ratelimit.NewIPLimiter(ratelimit.DefaultRequestsPerSecond, ratelimit.DefaultBurst),
		ctx:     ctx,
		cancel:  cancel,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestID())
	s.echo.Use(apimw.SecurityHeaders())

	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogMethod:   true,
		LogError:    true,
		HandleError: true,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics"
		},
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			event := s.logger.Debug()
			if v.Error != nil {
				event = s.logger.Error().Err(v.Error)
			}
			event.
				Str("method", v.Method).
				Str("uri", redactToken(v.URI)).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("request")
			return nil
		},
	}))
}

func (s *Server) setupRoutes() {
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := s.echo.Group("/api/v1")
	api.GET("/health", s.getHealth)
	api.GET("/logs", s.getLogs)

	triggers := api.Group("", s.limiter.Middleware())
	triggers.POST("/webhook/radarr", s.radarrWebhook, s.requireToken)
	triggers.POST("/run", s.triggerRun, s.requireToken)

	if s.opts.Hub != nil {
		api.GET("/ws", s.opts.Hub.HandleWebSocket, s.requireToken)
	}

	if s.opts.Scheduler != nil {
		h := handlers.NewSchedulerHandler(s.opts.Scheduler)
		api.GET("/tasks", h.ListTasks)
		api.GET("/tasks/:id", h.GetTask)
		triggers.POST("/tasks/:id/run", h.RunTask, s.requireToken)
	}
}

// Start begins listening for HTTP requests.
func (s *Server) Start(address string) error {
	s.logger.Info().Str("address", address).Msg("Starting HTTP server")
	return s.echo.Start(address)
}

// Shutdown stops accepting requests, cancels background runs and waits
// for them to return.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.echo.Shutdown(ctx)
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn().Msg("Background runs still active at shutdown")
	}
	return err
}

// Echo returns the underlying router.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// background runs fn detached from the request.
func (s *Server) background(fn func(ctx context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn(s.ctx)
	}()
}

type healthResponse struct {
	Status     string         `json:"status"`
	Version    string         `json:"version"`
	Time       time.Time      `json:"time"`
	Run        tagging.Status `json:"run"`
	Components *health.Report `json:"components,omitempty"`
}

func (s *Server) getHealth(c echo.Context) error {
	resp := healthResponse{
		Status:  "ok",
		Version: config.Version,
		Time:    time.Now().UTC(),
		Run:     s.runner.LastStatus(),
	}
	if s.opts.Health != nil {
		report := s.opts.Health.Report()
		resp.Components = &report
		if !report.Healthy {
			resp.Status = "degraded"
		}
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) getLogs(c echo.Context) error {
	if s.opts.Logs == nil {
		return c.JSON(http.StatusOK, []logger.Entry{})
	}
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a non-negative integer")
		}
		limit = n
	}
	return c.JSON(http.StatusOK, s.opts.Logs.Tail(c.QueryParam("level"), limit))
}
