package devtools_test

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/GriffinCanCode/AgentOS/devtools-bridge/internal/devtools"
	"github.com/GriffinCanCode/AgentOS/devtools-bridge/internal/devtools/devtoolstest"
	"github.com/GriffinCanCode/AgentOS/devtools-bridge/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/devtools-bridge/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/AgentOS/devtools-bridge/internal/infrastructure/tracing"
)

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []string
	breaker  []int
}

func (o *recordingObserver) SetBreakerState(_ string, state int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.breaker = append(o.breaker, state)
}

func (o *recordingObserver) breakerStates() []int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]int(nil), o.breaker...)
}

func (o *recordingObserver) ObserveDiscovery(outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}

func newClient(f *devtoolstest.Target, retries int) *devtools.Client {
	return devtools.NewClient(devtools.ClientConfig{
		Host:       f.Host(),
		Port:       f.Port(),
		Timeout:    2 * time.Second,
		Retries:    retries,
		RetryDelay: 10 * time.Millisecond,
	}, logging.NewNop())
}

func TestDiscover(t *testing.T) {
	f := devtoolstest.New(t)
	client := newClient(f, 0)

	target, err := client.Discover(context.Background())
	require.NoError(t, err)

	assert.Equal(t, devtoolstest.DefaultBuildHash, target.BuildHash)
	assert.Equal(t, fmt.Sprintf("inspector.html?ws=localhost:%d/devtools/page/ABC", f.Port()), target.FrontendPath)
	assert.Equal(t, 1, f.Calls("/json/list"))
	assert.Equal(t, 1, f.Calls("/json/version"))
}

func TestDiscoverIsDeterministic(t *testing.T) {
	f := devtoolstest.New(t)
	client := newClient(f, 0)

	first, err := client.Discover(context.Background())
	require.NoError(t, err)
	second, err := client.Discover(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestDiscoverSkipsBlankPages(t *testing.T) {
	f := devtoolstest.New(t)
	f.SetPages(
		devtools.PageDescriptor{ID: "blank", Type: "page", URL: "about:blank"},
		f.Page("SECOND", "https://example.com/"),
		f.Page("THIRD", "https://example.org/"),
	)

	target, err := newClient(f, 0).Discover(context.Background())
	require.NoError(t, err)
	assert.Contains(t, target.FrontendPath, "/devtools/page/SECOND")
}

func TestDiscoverNotReady(t *testing.T) {
	f := devtoolstest.New(t)
	f.SetPages()

	_, err := newClient(f, 0).Discover(context.Background())
	require.ErrorIs(t, err, devtools.ErrPageNotReady)
	assert.Equal(t, "target is not ready: no debuggable page found", err.Error())
	assert.Equal(t, 1, f.Calls("/json/list"))
}

func TestDiscoverRetriesUntilReady(t *testing.T) {
	f := devtoolstest.New(t)
	f.NotReadyFor(2)

	target, err := newClient(f, 2).Discover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, devtoolstest.DefaultBuildHash, target.BuildHash)
	assert.Equal(t, 3, f.Calls("/json/list"))
	assert.Equal(t, 3, f.Calls("/json/version"))
}

func TestDiscoverRetriesExhausted(t *testing.T) {
	f := devtoolstest.New(t)
	f.NotReadyFor(10)

	_, err := newClient(f, 1).Discover(context.Background())
	require.ErrorIs(t, err, devtools.ErrPageNotReady)
	assert.Contains(t, err.Error(), "gave up after 2 attempts")
	assert.Contains(t, err.Error(), "not ready")
	assert.Equal(t, 2, f.Calls("/json/list"))
}

func TestDiscoverTransportErrorIsNotRetried(t *testing.T) {
	f := devtoolstest.New(t)
	f.SetStatus("/json/list", http.StatusInternalServerError)

	_, err := newClient(f, 3).Discover(context.Background())

	var transportErr *devtools.TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, "/json/list", transportErr.Resource)
	assert.Contains(t, err.Error(), "500")
	assert.Equal(t, 1, f.Calls("/json/list"))
}

func TestDiscoverParseErrorIsNotRetried(t *testing.T) {
	f := devtoolstest.New(t)
	f.SetWebKitVersion("537.36")

	_, err := newClient(f, 3).Discover(context.Background())

	var parseErr *devtools.ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, 1, f.Calls("/json/version"))
}

func TestDiscoverInvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, "<html>not json</html>")
	}))
	defer srv.Close()

	host, portStr, err := net.SplitHostPort(srv.Listener.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	client := devtools.NewClient(devtools.ClientConfig{Host: host, Port: port, Timeout: time.Second}, logging.NewNop())
	_, err = client.Discover(context.Background())

	var transportErr *devtools.TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Contains(t, err.Error(), "invalid JSON")
}

func TestDiscoverUnreachableTarget(t *testing.T) {
	f := devtoolstest.New(t)
	host, port := f.Host(), f.Port()
	f.Close()

	client := devtools.NewClient(devtools.ClientConfig{Host: host, Port: port, Timeout: time.Second}, logging.NewNop())
	_, err := client.Discover(context.Background())

	var transportErr *devtools.TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.False(t, devtools.IsRetryable(err))
}

func TestDiscoverReportsOutcome(t *testing.T) {
	f := devtoolstest.New(t)
	observer := &recordingObserver{}
	client := newClient(f, 0).WithObserver(observer)

	_, err := client.Discover(context.Background())
	require.NoError(t, err)

	f.SetPages()
	_, err = client.Discover(context.Background())
	require.Error(t, err)

	f.SetStatus("/json/version", http.StatusNotFound)
	_, err = client.Discover(context.Background())
	require.Error(t, err)

	assert.Equal(t, []string{
		devtools.OutcomeOK,
		devtools.OutcomeNotReady,
		devtools.OutcomeTransport,
	}, observer.outcomes)
}

func TestDiscoverOpensBreaker(t *testing.T) {
	f := devtoolstest.New(t)
	f.SetStatus("/json/list", http.StatusInternalServerError)
	f.SetStatus("/json/version", http.StatusInternalServerError)

	observer := &recordingObserver{}
	client := newClient(f, 0).WithObserver(observer)

	for i := 0; i < 10 && client.Breaker().State() != resilience.StateOpen; i++ {
		_, err := client.Discover(context.Background())
		require.Error(t, err)
	}
	require.Equal(t, resilience.StateOpen, client.Breaker().State())
	assert.Equal(t, []int{int(resilience.StateOpen)}, observer.breakerStates())

	calls := f.Calls("/json/list")
	_, err := client.Discover(context.Background())

	var transportErr *devtools.TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, calls, f.Calls("/json/list"), "open breaker must not reach the target")
}

type manualClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *manualClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *manualClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func TestDiscoverBreakerClosesAfterTargetRecovers(t *testing.T) {
	f := devtoolstest.New(t)
	f.SetStatus("/json/list", http.StatusInternalServerError)
	f.SetStatus("/json/version", http.StatusInternalServerError)

	clock := &manualClock{t: time.Unix(1700000000, 0)}
	observer := &recordingObserver{}
	client := devtools.NewClient(devtools.ClientConfig{
		Host:             f.Host(),
		Port:             f.Port(),
		Timeout:          2 * time.Second,
		BreakerThreshold: 2,
		BreakerCooldown:  time.Minute,
		Now:              clock.now,
	}, logging.NewNop()).WithObserver(observer)

	for i := 0; i < 2; i++ {
		_, err := client.Discover(context.Background())
		require.Error(t, err)
	}
	require.Equal(t, resilience.StateOpen, client.Breaker().State())

	f.SetStatus("/json/list", 0)
	f.SetStatus("/json/version", 0)

	// Still cooling down.
	_, err := client.Discover(context.Background())
	require.ErrorIs(t, err, resilience.ErrCircuitOpen)

	clock.advance(time.Minute + time.Second)

	target, err := client.Discover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, devtoolstest.DefaultBuildHash, target.BuildHash)
	assert.Equal(t, resilience.StateClosed, client.Breaker().State())
	assert.Equal(t, []int{
		int(resilience.StateOpen),
		int(resilience.StateHalfOpen),
		int(resilience.StateClosed),
	}, observer.breakerStates())
}

func TestDiscoverNotReadyDoesNotOpenBreaker(t *testing.T) {
	f := devtoolstest.New(t)
	f.SetPages()

	client := devtools.NewClient(devtools.ClientConfig{
		Host:             f.Host(),
		Port:             f.Port(),
		Timeout:          2 * time.Second,
		BreakerThreshold: 1,
	}, logging.NewNop())

	for i := 0; i < 3; i++ {
		_, err := client.Discover(context.Background())
		require.ErrorIs(t, err, devtools.ErrPageNotReady)
	}
	assert.Equal(t, resilience.StateClosed, client.Breaker().State())
}

func TestDiscoverCanceledDoesNotOpenBreaker(t *testing.T) {
	f := devtoolstest.New(t)
	client := devtools.NewClient(devtools.ClientConfig{
		Host:             f.Host(),
		Port:             f.Port(),
		Timeout:          2 * time.Second,
		BreakerThreshold: 1,
	}, logging.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.Discover(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, resilience.StateClosed, client.Breaker().State())
}

func TestDiscoverRecordsSpan(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	tracer := tracing.New("test", &logging.Logger{Logger: zap.New(core)})

	f := devtoolstest.New(t)
	client := newClient(f, 0).WithTracer(tracer)

	parent, ctx := tracer.StartSpan(context.Background(), "http GET /")
	_, err := client.Discover(ctx)
	require.NoError(t, err)

	f.SetPages()
	_, err = client.Discover(context.Background())
	require.Error(t, err)

	tracer.Close()

	spans := logs.FilterField(zap.String("operation", "devtools.discover")).All()
	require.Len(t, spans, 2)

	assert.Equal(t, string(parent.TraceID), spans[0].ContextMap()["trace_id"])
	assert.Equal(t, string(parent.SpanID), spans[0].ContextMap()["parent_id"])
	assert.Equal(t, devtools.OutcomeOK, spans[0].ContextMap()["outcome"])
	assert.Equal(t, devtoolstest.DefaultBuildHash, spans[0].ContextMap()["build_hash"])

	assert.Equal(t, zapcore.WarnLevel, spans[1].Level)
	assert.Equal(t, devtools.OutcomeNotReady, spans[1].ContextMap()["outcome"])
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, devtools.OutcomeOK},
		{"not ready", devtools.ErrPageNotReady, devtools.OutcomeNotReady},
		{"wrapped not ready", fmt.Errorf("gave up after 2 attempts: %w", devtools.ErrPageNotReady), devtools.OutcomeNotReady},
		{"transport", &devtools.TransportError{Resource: "/json/list", Err: errors.New("refused")}, devtools.OutcomeTransport},
		{"parse", &devtools.ParseError{Input: "x"}, devtools.OutcomeParse},
		{"canceled transport", &devtools.TransportError{Resource: "/json/list", Err: context.Canceled}, devtools.OutcomeCanceled},
		{"interrupted retry", fmt.Errorf("retry interrupted after 1 attempts: %w", context.DeadlineExceeded), devtools.OutcomeCanceled},
		{"other", errors.New("boom"), devtools.OutcomeOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, devtools.Classify(tt.err))
		})
	}
}
