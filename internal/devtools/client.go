package devtools

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/GriffinCanCode/AgentOS/devtools-bridge/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/devtools-bridge/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/AgentOS/devtools-bridge/internal/infrastructure/tracing"
)

const (
	introspectionPath = "/json"
	listPath          = "/json/list"
	versionPath       = "/json/version"
)

// Discovery outcomes, used as metric labels.
const (
	OutcomeOK        = "ok"
	OutcomeTransport = "transport_error"
	OutcomeParse     = "parse_error"
	OutcomeNotReady  = "not_ready"
	OutcomeCanceled  = "canceled"
	OutcomeOther     = "error"
)

// Observer receives one call per Discover.
type Observer interface {
	ObserveDiscovery(outcome string, duration time.Duration)
}

// BreakerObserver is optionally implemented by an Observer to follow the
// circuit breaker guarding the target.
type BreakerObserver interface {
	SetBreakerState(name string, state int)
}

// ClientConfig configures a discovery client.
type ClientConfig struct {
	Host string
	Port int
	// Timeout bounds each introspection request.
	Timeout time.Duration
	// Retries is the number of extra attempts while no page is ready.
	Retries    int
	RetryDelay time.Duration

	// BreakerThreshold is the number of failed attempts in a row that opens
	// the circuit breaker. Defaults to 5.
	BreakerThreshold uint32
	// BreakerCooldown is how long an open breaker rejects attempts before
	// letting one probe through. Defaults to 10s.
	BreakerCooldown time.Duration
	// Now is the breaker's clock. Defaults to time.Now.
	Now func() time.Time
}

// Client queries a target's introspection endpoints.
type Client struct {
	http     *resty.Client
	breaker  *resilience.Breaker
	policy   resilience.Policy
	logger   *logging.Logger
	observer Observer
	tracer   *tracing.Tracer
}

// NewClient creates a discovery client for the target at cfg.Host:cfg.Port.
func NewClient(cfg ClientConfig, logger *logging.Logger) *Client {
	logger = logger.Named("discovery")

	// Pooled transport only; retries are decided by Discover, not per request.
	transport := retryablehttp.NewClient().HTTPClient.Transport

	restyClient := resty.New().
		SetBaseURL(fmt.Sprintf("http://%s:%d", cfg.Host, cfg.Port)).
		SetTimeout(cfg.Timeout).
		SetRetryCount(0).
		SetHeader("Accept", "application/json").
		SetLogger(logger.Sugar()).
		SetTransport(transport)

	c := &Client{
		http: restyClient,
		policy: resilience.Policy{
			MaxAttempts: 1 + cfg.Retries,
			Delay:       cfg.RetryDelay,
			Retryable:   IsRetryable,
		},
		logger: logger,
	}
	if cfg.BreakerThreshold == 0 {
		cfg.BreakerThreshold = 5
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = 10 * time.Second
	}
	c.breaker = resilience.New("devtools-target", resilience.Settings{
		FailureThreshold: cfg.BreakerThreshold,
		Cooldown:         cfg.BreakerCooldown,
		IsFailure:        countsAgainstTarget,
		OnStateChange:    c.breakerChanged,
		Now:              cfg.Now,
	})
	return c
}

// WithObserver attaches a metrics observer.
func (c *Client) WithObserver(o Observer) *Client {
	c.observer = o
	return c
}

// WithTracer records a span per Discover.
func (c *Client) WithTracer(t *tracing.Tracer) *Client {
	c.tracer = t
	return c
}

// Breaker exposes the circuit breaker guarding the target.
func (c *Client) Breaker() *resilience.Breaker {
	return c.breaker
}

func (c *Client) breakerChanged(name string, from, to resilience.State) {
	c.logger.Warn("Circuit breaker state changed",
		zap.String("breaker", name),
		zap.Stringer("from", from),
		zap.Stringer("to", to),
	)
	if bo, ok := c.observer.(BreakerObserver); ok {
		bo.SetBreakerState(name, int(to))
	}
}

// Discover finds the build hash and the frontend path of the first
// debuggable page. Only ErrPageNotReady is retried.
func (c *Client) Discover(ctx context.Context) (Target, error) {
	span, ctx := c.tracer.StartSpan(ctx, "devtools.discover")
	defer func() {
		span.Finish()
		c.tracer.Submit(span)
	}()

	start := time.Now()
	target, err := resilience.Retry(ctx, c.policy, c.discoverOnce)
	elapsed := time.Since(start)

	outcome := Classify(err)
	span.SetTag("outcome", outcome)
	if c.observer != nil {
		c.observer.ObserveDiscovery(outcome, elapsed)
	}

	if err != nil {
		span.SetError(err)
		c.logger.Warn("Discovery failed",
			zap.String("trace_id", string(span.TraceID)),
			zap.String("outcome", outcome),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		return Target{}, err
	}

	span.SetTag("build_hash", target.BuildHash)
	c.logger.Debug("Discovered target",
		zap.String("trace_id", string(span.TraceID)),
		zap.String("build_hash", target.BuildHash),
		zap.String("frontend_path", target.FrontendPath),
		zap.Duration("elapsed", elapsed),
	)
	return target, nil
}

// discoverOnce is one attempt. Both fetches run inside a single breaker
// call, so an attempt made while half-open is exactly one probe.
func (c *Client) discoverOnce(ctx context.Context) (Target, error) {
	var target Target
	err := c.breaker.Do(func() error {
		var err error
		target, err = c.attempt(ctx)
		return err
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return Target{}, &TransportError{Resource: introspectionPath, Err: err}
	}
	return target, err
}

func (c *Client) attempt(ctx context.Context) (Target, error) {
	var (
		pages   []PageDescriptor
		version VersionInfo
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.fetch(gctx, listPath, &pages) })
	g.Go(func() error { return c.fetch(gctx, versionPath, &version) })
	if err := g.Wait(); err != nil {
		return Target{}, err
	}

	hash, err := ParseBuildHash(version.WebKitVersion)
	if err != nil {
		return Target{}, err
	}

	path, err := SelectPage(pages)
	if err != nil {
		c.logger.Debug("No debuggable page yet", zap.Int("entries", len(pages)))
		return Target{}, err
	}

	return Target{BuildHash: hash, FrontendPath: path}, nil
}

// fetch GETs one introspection resource and decodes its JSON body into v.
func (c *Client) fetch(ctx context.Context, resource string, v interface{}) error {
	resp, err := c.http.R().SetContext(ctx).Get(resource)
	if err != nil {
		return &TransportError{Resource: resource, Err: err}
	}
	if resp.StatusCode() != http.StatusOK {
		return &TransportError{Resource: resource, Err: fmt.Errorf("unexpected status %s", resp.Status())}
	}
	if err := sonic.Unmarshal(resp.Body(), v); err != nil {
		return &TransportError{Resource: resource, Err: fmt.Errorf("invalid JSON: %w", err)}
	}
	return nil
}

// countsAgainstTarget reports whether an attempt failed because the target
// could not be reached. A target that answers, even with no page or an
// unparsable version, is up. Cancellation by the caller says nothing about
// the target.
func countsAgainstTarget(err error) bool {
	var transportErr *TransportError
	return errors.As(err, &transportErr) && !errors.Is(err, context.Canceled)
}

// Classify maps a discovery error to an outcome label.
func Classify(err error) string {
	var (
		transportErr *TransportError
		parseErr     *ParseError
	)
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, context.Canceled):
		return OutcomeCanceled
	case errors.As(err, &transportErr):
		return OutcomeTransport
	case errors.As(err, &parseErr):
		return OutcomeParse
	case errors.Is(err, ErrPageNotReady):
		return OutcomeNotReady
	case errors.Is(err, context.DeadlineExceeded):
		return OutcomeCanceled
	default:
		return OutcomeOther
	}
}
