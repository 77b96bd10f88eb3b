package tracing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/GriffinCanCode/AgentOS/devtools-bridge/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/devtools-bridge/internal/shared/id"
)

func observedTracer() (*Tracer, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return New("test", &logging.Logger{Logger: zap.New(core)}), logs
}

func TestStartSpanNewTrace(t *testing.T) {
	tracer, _ := observedTracer()
	defer tracer.Close()

	span, ctx := tracer.StartSpan(context.Background(), "devtools.discover")

	assert.True(t, strings.HasPrefix(string(span.TraceID), id.TracePrefix+"_"))
	_, err := uuid.Parse(string(span.SpanID))
	assert.NoError(t, err)
	assert.Empty(t, span.ParentID)
	assert.Equal(t, "test", span.Service)

	assert.Equal(t, span.TraceID, GetTraceID(ctx))
	assert.Equal(t, span.SpanID, GetSpanID(ctx))
	assert.Same(t, span, SpanFromContext(ctx))
}

func TestStartSpanChild(t *testing.T) {
	tracer, _ := observedTracer()
	defer tracer.Close()

	parent, ctx := tracer.StartSpan(context.Background(), "http GET /")
	child, childCtx := tracer.StartSpan(ctx, "devtools.discover")

	assert.Equal(t, parent.TraceID, child.TraceID)
	assert.Equal(t, parent.SpanID, child.ParentID)
	assert.NotEqual(t, parent.SpanID, child.SpanID)
	assert.Same(t, child, SpanFromContext(childCtx))
	assert.Same(t, parent, SpanFromContext(ctx))
}

func TestWithRemoteParent(t *testing.T) {
	ctx := WithRemoteParent(context.Background(), "trc_upstream", "span-1")
	assert.Equal(t, TraceID("trc_upstream"), GetTraceID(ctx))
	assert.Equal(t, SpanID("span-1"), GetSpanID(ctx))
	assert.Nil(t, SpanFromContext(ctx))

	ctx = WithRemoteParent(context.Background(), "", "")
	assert.Empty(t, GetTraceID(ctx))
	assert.Empty(t, GetSpanID(ctx))
}

func TestSubmitLogsSpans(t *testing.T) {
	tracer, logs := observedTracer()

	ok, _ := tracer.StartSpan(context.Background(), "proxy.forward")
	ok.SetTag("tunnel_id", "tun_1")
	ok.SetStatus(http.StatusOK)
	ok.Finish()
	tracer.Submit(ok)

	failed, _ := tracer.StartSpan(context.Background(), "devtools.discover")
	failed.SetError(errors.New("connection refused"))
	failed.SetError(errors.New("ignored"))
	failed.Finish()
	tracer.Submit(failed)

	tracer.Close()

	entries := logs.All()
	require.Len(t, entries, 2)

	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, "proxy.forward", entries[0].ContextMap()["operation"])
	assert.Equal(t, "tun_1", entries[0].ContextMap()["tunnel_id"])
	assert.EqualValues(t, http.StatusOK, entries[0].ContextMap()["status"])

	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "connection refused", entries[1].ContextMap()["error"])
}

func TestSubmitAfterClose(t *testing.T) {
	tracer, logs := observedTracer()
	tracer.Close()
	tracer.Close()

	span, _ := tracer.StartSpan(context.Background(), "late")
	span.Finish()
	assert.NotPanics(t, func() { tracer.Submit(span) })
	assert.Equal(t, 0, logs.Len())
}

func TestNilTracer(t *testing.T) {
	var tracer *Tracer

	span, ctx := tracer.StartSpan(context.Background(), "devtools.discover")
	require.NotNil(t, span)
	assert.Equal(t, span.TraceID, GetTraceID(ctx))
	assert.NotPanics(t, func() {
		span.Finish()
		tracer.Submit(span)
		tracer.Close()
	})
}

func TestHTTPMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tracer, logs := observedTracer()

	var seen TraceID
	router := gin.New()
	router.Use(HTTPMiddleware(tracer))
	router.GET("/", func(c *gin.Context) {
		seen = GetTraceID(c.Request.Context())
		c.String(http.StatusOK, "landing")
	})
	router.NoRoute(func(c *gin.Context) {
		_ = c.Error(errors.New("dial target: connection refused"))
		c.Status(http.StatusBadGateway)
	})

	t.Run("new trace", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, string(seen), w.Header().Get(TraceHeader))
		assert.True(t, strings.HasPrefix(w.Header().Get(TraceHeader), id.TracePrefix+"_"))
		assert.NotEmpty(t, w.Header().Get(SpanHeader))
	})

	t.Run("inbound trace joined", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(TraceHeader, "trc_upstream")
		req.Header.Set(SpanHeader, "caller-span")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, "trc_upstream", w.Header().Get(TraceHeader))
		assert.Equal(t, TraceID("trc_upstream"), seen)
		assert.NotEqual(t, "caller-span", w.Header().Get(SpanHeader))
	})

	t.Run("forward error", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/json/list", nil))
		assert.Equal(t, http.StatusBadGateway, w.Code)
	})

	tracer.Close()

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, "http GET /", entries[0].ContextMap()["operation"])
	assert.Equal(t, "200", entries[0].ContextMap()["http.status"])
	assert.Equal(t, "caller-span", entries[1].ContextMap()["parent_id"])
	assert.Equal(t, "http GET forward", entries[2].ContextMap()["operation"])
	assert.Equal(t, zapcore.WarnLevel, entries[2].Level)
}
