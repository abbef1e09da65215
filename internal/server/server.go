package server

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"market-relay/internal/ingest"
	"market-relay/internal/model"
)

const shutdownTimeout = 5 * time.Second

// Publisher accepts control commands without blocking. *bus.Queue
// satisfies it.
type Publisher interface {
	TryPublish(cmd model.Command) error
}

// Session exposes the upstream session for introspection.
// *ingest.Connection satisfies it.
type Session interface {
	State() ingest.State
	Subscriptions() *ingest.Subscriptions
}

// InFlighter reports outstanding broker sends. *relay.Engine satisfies it.
type InFlighter interface {
	InFlight() int64
}

type Config struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// CommandBuffer is the capacity of the command queue behind the routes.
	CommandBuffer int `yaml:"command_buffer"`
}

func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

type Option struct {
	Debug    bool
	Session  Session
	InFlight InFlighter
	Gatherer prometheus.Gatherer
}

// Server is the HTTP control surface of the relay.
type Server struct {
	cfg    Config
	pub    Publisher
	opt    Option
	engine *gin.Engine
}

func New(cfg Config, pub Publisher, opt Option) *Server {
	if !opt.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:    cfg,
		pub:    pub,
		opt:    opt,
		engine: gin.New(),
	}
	s.engine.Use(gin.Recovery(), requestLogger())
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.engine.GET("/health_check", s.healthCheck)
	s.engine.GET("/subscribe", s.subscribe)
	s.engine.GET("/unsubscribe", s.unsubscribe)
	s.engine.POST("/stop", s.stop)
	s.engine.GET("/state", s.state)

	if s.opt.Gatherer != nil {
		s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.opt.Gatherer, promhttp.HandlerOpts{})))
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx ends, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logs.Infof("control server listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "listen").With("addr", srv.Addr)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown control server")
	}
	logs.Info("control server stopped")
	return nil
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logs.With(
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
		).Debug("http request")
	}
}
