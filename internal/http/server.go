package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jmehdipour/leadsync/internal/http/middleware"
	"github.com/jmehdipour/leadsync/internal/repository"
	"github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Opts struct {
	Addr            string
	APIKey          string
	Store           repository.SnapshotRepository
	Redis           *redis.Client // optional, enables the rate limit
	RateLimit       int
	RateWindow      time.Duration
	Gatherer        prometheus.Gatherer
	IntervalMinutes int
	AffiliateID     string
	Credentials     int
	ShutdownTimeout time.Duration
	LogLevel        string
	Logger          *zap.Logger
	Now             func() time.Time
}

// Server is the read-only reporting API. It never calls upstreams; every
// answer comes from the last persisted snapshot.
type Server struct {
	e    *echo.Echo
	opts Opts

	started time.Time
}

func NewServer(opts Opts) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 5 * time.Second
	}

	s := &Server{opts: opts, started: opts.Now()}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.JSONSerializer = jsonSerializer{}
	e.Logger.SetLevel(echoLevel(opts.LogLevel))
	e.Use(echoMid.Recover(), requestLogger(opts.Logger))

	e.Use(middleware.SharedSecret(opts.APIKey))
	e.Use(middleware.RateLimitMiddleware(middleware.RateLimitConfig{
		Redis:          opts.Redis,
		Limit:          opts.RateLimit,
		KeyPrefix:      "rl:client:",
		Window:         opts.RateWindow,
		RetryAfterHint: true,
	}))

	e.GET("/reports", s.deltaReport)
	e.GET("/reports/full", s.fullReport)
	e.GET("/health", s.health)
	e.GET("/meta", s.meta)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))

	s.e = e
	return s
}

func (s *Server) Handler() http.Handler { return s.e }

func (s *Server) String() string { return "http:" + s.opts.Addr }

// Serve runs the listener until ctx is done, then shuts down gracefully.
// It implements suture.Service.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.opts.Logger.Info("http listening", zap.String("addr", s.opts.Addr))
		if err := s.e.Start(s.opts.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		if err := s.e.Shutdown(shutdownCtx); err != nil {
			s.opts.Logger.Error("http shutdown", zap.Error(err))
		}
		return ctx.Err()
	}
}

func echoLevel(level string) log.Lvl {
	switch level {
	case "debug":
		return log.DEBUG
	case "warn":
		return log.WARN
	case "error":
		return log.ERROR
	default:
		return log.INFO
	}
}

func requestLogger(l *zap.Logger) echo.MiddlewareFunc {
	return echoMid.RequestLoggerWithConfig(echoMid.RequestLoggerConfig{
		LogURI:      true,
		LogMethod:   true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogValuesFunc: func(c echo.Context, v echoMid.RequestLoggerValues) error {
			l.Info("request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("remote_ip", v.RemoteIP),
			)
			return nil
		},
	})
}
