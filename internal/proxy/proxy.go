package proxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/devtools-bridge/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/devtools-bridge/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/AgentOS/devtools-bridge/internal/shared/id"
)

// TargetHostHeader is sent as Host on every forwarded request. The debug
// port rejects requests addressed to any other name.
const TargetHostHeader = "localhost"

// Request kinds passed to Recorder.RecordProxyError.
const (
	KindHTTP    = "http"
	KindUpgrade = "upgrade"
)

// ErrDraining is reported for requests that arrive after Drain started.
var ErrDraining = errors.New("proxy is draining")

// Recorder receives forwarding metrics.
type Recorder interface {
	RecordProxyError(kind string)
	IncTunnels()
	DecTunnels()
}

// Config configures a Proxy.
type Config struct {
	TargetHost string
	TargetPort int
	// DialTimeout bounds connection setup to the target.
	DialTimeout time.Duration

	// OnError is called after a forwarding failure has been logged, before
	// the inbound connection is closed.
	OnError func(r *http.Request, err error)
	// OnUpgrade is called once a WebSocket upgrade has been accepted for
	// forwarding, before the tunnel is opened.
	OnUpgrade func(r *http.Request, tunnel id.TunnelID)
}

// Proxy forwards HTTP requests and WebSocket upgrades to one fixed target.
// It tracks every connection it opens to the target so Drain can release
// them.
type Proxy struct {
	cfg       Config
	target    *url.URL
	rp        *httputil.ReverseProxy
	transport *http.Transport
	logger    *logging.Logger
	recorder  Recorder
	tracer    *tracing.Tracer

	mu       sync.Mutex
	conns    map[*trackedConn]struct{}
	draining bool
	inflight sync.WaitGroup
}

// New creates a proxy for cfg.TargetHost:cfg.TargetPort.
func New(cfg Config, logger *logging.Logger) *Proxy {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	logger = logger.Named("proxy")

	p := &Proxy{
		cfg: cfg,
		target: &url.URL{
			Scheme: "http",
			Host:   net.JoinHostPort(cfg.TargetHost, strconv.Itoa(cfg.TargetPort)),
		},
		logger: logger,
		conns:  make(map[*trackedConn]struct{}),
	}

	dialer := &net.Dialer{Timeout: cfg.DialTimeout, KeepAlive: 30 * time.Second}
	p.transport = &http.Transport{
		DialContext:         p.dialer(dialer),
		MaxIdleConns:        32,
		MaxIdleConnsPerHost: 32,
		IdleConnTimeout:     90 * time.Second,
		// The target only speaks plain HTTP/1.1.
		ForceAttemptHTTP2: false,
	}

	p.rp = &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(p.target)
			pr.Out.Host = TargetHostHeader
		},
		Transport:     p.transport,
		FlushInterval: -1,
		ErrorLog:      logger.StdLog(),
		ErrorHandler:  p.handleError,
	}

	return p
}

// WithRecorder attaches a metrics recorder.
func (p *Proxy) WithRecorder(r Recorder) *Proxy {
	p.recorder = r
	return p
}

// WithTracer records a span per forward and per tunnel.
func (p *Proxy) WithTracer(t *tracing.Tracer) *Proxy {
	p.tracer = t
	return p
}

// DialTimeout returns the bound on connection setup to the target.
func (p *Proxy) DialTimeout() time.Duration {
	return p.cfg.DialTimeout
}

// Target returns the URL requests are forwarded to.
func (p *Proxy) Target() *url.URL {
	u := *p.target
	return &u
}

// ForwardHTTP forwards a plain HTTP request and copies the response back.
func (p *Proxy) ForwardHTTP(w http.ResponseWriter, r *http.Request) {
	if !p.begin() {
		p.reject(w, r, KindHTTP)
		return
	}
	defer p.inflight.Done()

	span, ctx := p.tracer.StartSpan(r.Context(), "proxy.forward")
	defer func() {
		span.Finish()
		p.tracer.Submit(span)
	}()

	p.rp.ServeHTTP(w, r.WithContext(ctx))
}

// ForwardUpgrade forwards a WebSocket upgrade and then pipes bytes in both
// directions until either side closes. It returns when the tunnel is gone.
func (p *Proxy) ForwardUpgrade(w http.ResponseWriter, r *http.Request) {
	if !p.begin() {
		p.reject(w, r, KindUpgrade)
		return
	}
	defer p.inflight.Done()

	tunnel := id.NewTunnelID()
	if p.cfg.OnUpgrade != nil {
		p.cfg.OnUpgrade(r, tunnel)
	}

	span, ctx := p.tracer.StartSpan(withKind(r.Context(), KindUpgrade), "proxy.tunnel")
	span.SetTag("tunnel_id", tunnel.String())
	defer func() {
		span.Finish()
		p.tracer.Submit(span)
	}()

	logger := p.logger.With(
		zap.String("tunnel_id", tunnel.String()),
		zap.String("trace_id", string(span.TraceID)),
		zap.String("path", r.URL.Path),
	)
	logger.Debug("Opening tunnel")
	if p.recorder != nil {
		p.recorder.IncTunnels()
		defer p.recorder.DecTunnels()
	}

	start := time.Now()
	p.rp.ServeHTTP(w, r.WithContext(ctx))
	logger.Debug("Tunnel closed", zap.Duration("duration", time.Since(start)))
}

// Drain stops accepting new forwards and waits for in-flight ones,
// tunnels included. When ctx expires first, every open target connection
// is closed, which ends the remaining tunnels, and ctx.Err() is returned.
func (p *Proxy) Drain(ctx context.Context) error {
	p.mu.Lock()
	p.draining = true
	p.mu.Unlock()

	p.transport.CloseIdleConnections()

	done := make(chan struct{})
	go func() {
		p.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.transport.CloseIdleConnections()
		return nil
	case <-ctx.Done():
		closed := p.closeConns()
		p.transport.CloseIdleConnections()
		p.logger.Warn("Drain deadline reached, closed target connections", zap.Int("connections", closed))
		return ctx.Err()
	}
}

// OpenConns returns the number of open connections to the target.
func (p *Proxy) OpenConns() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.conns)
}

func (p *Proxy) begin() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.draining {
		return false
	}
	p.inflight.Add(1)
	return true
}

func (p *Proxy) reject(w http.ResponseWriter, r *http.Request, kind string) {
	p.logger.Debug("Rejecting request while draining", zap.String("kind", kind), zap.String("path", r.URL.Path))
	w.Header().Set("Connection", "close")
	http.Error(w, ErrDraining.Error(), http.StatusServiceUnavailable)
}

// handleError logs a forwarding failure and closes the client connection.
// Client-side cancellations are expected and only logged at debug.
func (p *Proxy) handleError(w http.ResponseWriter, r *http.Request, err error) {
	kind := kindFrom(r.Context())
	if span := tracing.SpanFromContext(r.Context()); span != nil {
		span.SetError(err)
	}

	if errors.Is(err, context.Canceled) {
		p.logger.Debug("Client went away", zap.String("kind", kind), zap.String("path", r.URL.Path))
	} else {
		p.logger.Warn("Forwarding failed",
			zap.String("kind", kind),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		if p.recorder != nil {
			p.recorder.RecordProxyError(kind)
		}
		if p.cfg.OnError != nil {
			p.cfg.OnError(r, err)
		}
	}

	conn, _, hjErr := http.NewResponseController(w).Hijack()
	switch {
	case hjErr == nil:
		conn.Close()
	case errors.Is(hjErr, http.ErrHijacked):
		// Tunnel already owns the connection and closes it on return.
	default:
		// Not hijackable, e.g. HTTP/2: fail the request instead.
		w.Header().Set("Connection", "close")
		w.WriteHeader(http.StatusBadGateway)
	}
}

func (p *Proxy) dialer(d *net.Dialer) func(ctx context.Context, network, addr string) (net.Conn, error) {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := d.DialContext(ctx, network, addr)
		if err != nil {
			return nil, fmt.Errorf("dial target %s: %w", addr, err)
		}
		tc := &trackedConn{Conn: conn, release: p.release}
		p.mu.Lock()
		p.conns[tc] = struct{}{}
		p.mu.Unlock()
		return tc, nil
	}
}

func (p *Proxy) release(tc *trackedConn) {
	p.mu.Lock()
	delete(p.conns, tc)
	p.mu.Unlock()
}

func (p *Proxy) closeConns() int {
	p.mu.Lock()
	conns := make([]*trackedConn, 0, len(p.conns))
	for tc := range p.conns {
		conns = append(conns, tc)
	}
	p.mu.Unlock()

	for _, tc := range conns {
		tc.Close()
	}
	return len(conns)
}

// trackedConn removes itself from the proxy's set on first Close.
type trackedConn struct {
	net.Conn
	once    sync.Once
	release func(*trackedConn)
}

func (c *trackedConn) Close() error {
	err := c.Conn.Close()
	c.once.Do(func() { c.release(c) })
	return err
}

type kindKey struct{}

func withKind(ctx context.Context, kind string) context.Context {
	return context.WithValue(ctx, kindKey{}, kind)
}

func kindFrom(ctx context.Context) string {
	if kind, ok := ctx.Value(kindKey{}).(string); ok {
		return kind
	}
	return KindHTTP
}
