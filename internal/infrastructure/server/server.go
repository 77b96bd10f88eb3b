package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzhttp"
	"go.uber.org/zap"
	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"

	apihttp "github.com/GriffinCanCode/AgentOS/devtools-bridge/internal/api/http"
	"github.com/GriffinCanCode/AgentOS/devtools-bridge/internal/api/middleware"
	"github.com/GriffinCanCode/AgentOS/devtools-bridge/internal/api/ws"
	"github.com/GriffinCanCode/AgentOS/devtools-bridge/internal/devtools"
	"github.com/GriffinCanCode/AgentOS/devtools-bridge/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentOS/devtools-bridge/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/devtools-bridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/devtools-bridge/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/AgentOS/devtools-bridge/internal/proxy"
)

// BindError means a listener could not be bound at Start.
type BindError struct {
	Addr string
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("failed to bind %s: %v", e.Addr, e.Err)
}

func (e *BindError) Unwrap() error {
	return e.Err
}

// Server owns the public listener, the forwarding proxy and the optional
// metrics listener.
type Server struct {
	config  *config.Config
	logger  *logging.Logger
	metrics *monitoring.Metrics
	tracer  *tracing.Tracer

	discovery *devtools.Client
	proxy     *proxy.Proxy
	router    *gin.Engine

	front       *http.Server
	listener    net.Listener
	metricsSrv  *http.Server
	metricsLn   net.Listener
	serveErrors chan error
}

// New wires the bridge for cfg. Nothing is bound until Start.
func New(cfg *config.Config, logger *logging.Logger) *Server {
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	metrics := monitoring.NewMetrics()
	tracer := tracing.New("devtools-bridge", logger)

	discovery := devtools.NewClient(devtools.ClientConfig{
		Host:       cfg.Target.Host,
		Port:       cfg.Target.Port,
		Timeout:    cfg.Discovery.Timeout,
		Retries:    cfg.Discovery.Retries,
		RetryDelay: cfg.Discovery.RetryDelay,
	}, logger).WithObserver(metrics).WithTracer(tracer)

	fwd := proxy.New(proxy.Config{
		TargetHost:  cfg.Target.Host,
		TargetPort:  cfg.Target.Port,
		DialTimeout: cfg.Target.DialTimeout,
	}, logger).WithRecorder(metrics).WithTracer(tracer)

	s := &Server{
		config:      cfg,
		logger:      logger,
		metrics:     metrics,
		tracer:      tracer,
		discovery:   discovery,
		proxy:       fwd,
		serveErrors: make(chan error, 2),
	}
	s.router = s.setupRouter()

	s.front = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          logger.Named("http").StdLog(),
		ConnState:         s.trackConn,
	}

	if cfg.Metrics.Addr != "" {
		s.metricsSrv = &http.Server{
			Handler:           gzhttp.GzipHandler(s.metricsRouter()),
			ReadHeaderTimeout: 10 * time.Second,
			ErrorLog:          logger.Named("metrics").StdLog(),
		}
	}

	return s
}

func (s *Server) setupRouter() *gin.Engine {
	router := gin.New()
	// Paths belong to the target; never rewrite them.
	router.RedirectTrailingSlash = false
	router.RedirectFixedPath = false
	_ = router.SetTrustedProxies(nil)

	router.Use(middleware.RequestID())
	router.Use(tracing.HTTPMiddleware(s.tracer))
	router.Use(monitoring.Middleware(s.metrics))
	router.Use(middleware.AccessLog(s.logger))
	router.Use(middleware.Recovery(s.logger))
	router.Use(ws.Upgrades(s.proxy))

	landing := apihttp.NewLanding(s.discovery, devtools.RewriteOptions{
		ExternalHost:      s.config.Server.ExternalHost,
		TargetPort:        s.config.Target.Port,
		InsecureWebSocket: s.config.Target.InsecureWebSocket,
	}, s.logger)

	var handlers []gin.HandlerFunc
	if s.config.RateLimit.Enabled {
		s.logger.Info("Rate limiting enabled",
			zap.Int("rps", s.config.RateLimit.RequestsPerSecond),
			zap.Int("burst", s.config.RateLimit.Burst),
		)
		limits := middleware.DefaultRateLimitConfig()
		limits.RequestsPerSecond = s.config.RateLimit.RequestsPerSecond
		limits.Burst = s.config.RateLimit.Burst
		handlers = append(handlers, middleware.RateLimit(limits))
	}
	handlers = append(handlers, landing.Serve)

	router.GET("/", handlers...)
	router.NoRoute(gin.WrapF(s.proxy.ForwardHTTP))

	return router
}

func (s *Server) metricsRouter() *gin.Engine {
	router := gin.New()
	router.Use(middleware.Recovery(s.logger))
	router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	router.GET("/stats", apihttp.Stats(s.metrics))
	router.GET("/healthz", apihttp.Health)
	return router
}

// Handler returns the public handler, for tests that skip the listener.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Metrics returns the server's metrics collector.
func (s *Server) Metrics() *monitoring.Metrics {
	return s.metrics
}

// Start binds the public listener (and the metrics listener, if configured)
// and returns once they accept connections. A listener that cannot be bound
// yields *BindError and nothing is left open; an unreadable TLS key pair
// fails before anything is bound.
func (s *Server) Start() error {
	addr := s.config.Server.Addr()
	ln, err := s.listen(addr)
	if err != nil {
		return err
	}

	if s.metricsSrv != nil {
		mln, err := net.Listen("tcp", s.config.Metrics.Addr)
		if err != nil {
			ln.Close()
			return &BindError{Addr: s.config.Metrics.Addr, Err: err}
		}
		s.metricsLn = mln
		go s.serve("metrics", s.metricsSrv, mln)
		s.logger.Info("Metrics listener started", zap.String("addr", mln.Addr().String()))
	}

	s.listener = ln
	go s.serve("front", s.front, ln)

	s.logger.Info("DevTools bridge listening",
		zap.String("addr", ln.Addr().String()),
		zap.String("external_host", s.config.Server.ExternalHost),
		zap.String("target", s.proxy.Target().Host),
		zap.Bool("insecure_ws", s.config.Target.InsecureWebSocket),
		zap.Bool("tls", s.config.Server.TLSEnabled()),
	)
	return nil
}

// listen binds the public address, applying the connection cap and TLS.
func (s *Server) listen(addr string) (net.Listener, error) {
	var tlsConfig *tls.Config
	if s.config.Server.TLSEnabled() {
		cert, err := tls.LoadX509KeyPair(s.config.Server.TLSCertFile, s.config.Server.TLSKeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load TLS key pair: %w", err)
		}
		tlsConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
			// Upgrades are hijacked, which HTTP/2 does not allow.
			NextProtos: []string{"http/1.1"},
		}
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, &BindError{Addr: addr, Err: err}
	}
	if n := s.config.Server.MaxConnections; n > 0 {
		ln = netutil.LimitListener(ln, n)
	}
	if tlsConfig != nil {
		ln = tls.NewListener(ln, tlsConfig)
	}
	return ln, nil
}

func (s *Server) serve(name string, srv *http.Server, ln net.Listener) {
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error("Listener stopped", zap.String("listener", name), zap.Error(err))
		s.serveErrors <- fmt.Errorf("%s listener: %w", name, err)
	}
}

// Addr returns the bound public address. Valid after Start.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// MetricsAddr returns the bound metrics address, or nil.
func (s *Server) MetricsAddr() net.Addr {
	if s.metricsLn == nil {
		return nil
	}
	return s.metricsLn.Addr()
}

// Err reports listeners that stopped on their own.
func (s *Server) Err() <-chan error {
	return s.serveErrors
}

// Stop closes the listeners to new connections, then drains the front
// server and the proxy's target connections concurrently. Whatever is still
// open when the shutdown grace period ends is closed. Call only after Start
// succeeded.
func (s *Server) Stop() error {
	s.logger.Info("Shutting down", zap.Duration("grace", s.config.Server.ShutdownGrace))

	ctx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownGrace)
	defer cancel()

	g := new(errgroup.Group)
	g.Go(func() error {
		return s.shutdown(ctx, "front", s.front)
	})
	g.Go(func() error {
		if err := s.proxy.Drain(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("proxy drain: %w", err)
		}
		return nil
	})
	if s.metricsSrv != nil {
		g.Go(func() error {
			return s.shutdown(ctx, "metrics", s.metricsSrv)
		})
	}

	err := g.Wait()
	s.tracer.Close()
	if err != nil {
		s.logger.Error("Shutdown finished with errors", zap.Error(err))
	} else {
		s.logger.Info("Shutdown complete")
	}
	return err
}

func (s *Server) shutdown(ctx context.Context, name string, srv *http.Server) error {
	err := srv.Shutdown(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		s.logger.Warn("Grace period over, closing remaining connections", zap.String("listener", name))
		err = srv.Close()
	}
	if err != nil {
		return fmt.Errorf("%s shutdown: %w", name, err)
	}
	return nil
}

func (s *Server) trackConn(_ net.Conn, state http.ConnState) {
	switch state {
	case http.StateNew:
		s.metrics.IncConnections()
	case http.StateHijacked, http.StateClosed:
		s.metrics.DecConnections()
	}
}
