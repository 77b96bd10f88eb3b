package tracing

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/devtools-bridge/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/devtools-bridge/internal/shared/id"
)

// Propagation headers.
const (
	TraceHeader = "X-Trace-ID"
	SpanHeader  = "X-Span-ID"
)

const spanBuffer = 1000

// TraceID represents a unique trace identifier
type TraceID string

// SpanID represents a unique span identifier
type SpanID string

// Span represents a single operation in a trace. A span belongs to the
// goroutine that started it until it is submitted.
type Span struct {
	TraceID    TraceID
	SpanID     SpanID
	ParentID   SpanID
	Name       string
	Service    string
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
	Tags       map[string]string
	Error      error
	StatusCode int
}

// Tracer hands out spans and logs them once submitted. A nil *Tracer is
// valid: spans are still created but never logged.
type Tracer struct {
	service string
	logger  *logging.Logger
	spans   chan *Span
	done    chan struct{}

	mu     sync.RWMutex
	closed bool
}

// New creates a tracer and starts its collector. Call Close to flush.
func New(service string, logger *logging.Logger) *Tracer {
	t := &Tracer{
		service: service,
		logger:  logger.Named("trace"),
		spans:   make(chan *Span, spanBuffer),
		done:    make(chan struct{}),
	}
	go t.collectSpans()
	return t
}

// StartSpan starts a span under the trace and span carried by ctx, or a
// new trace when ctx has none.
func (t *Tracer) StartSpan(ctx context.Context, name string) (*Span, context.Context) {
	traceID := GetTraceID(ctx)
	if traceID == "" {
		traceID = TraceID(id.NewTraceID())
	}

	span := &Span{
		TraceID:   traceID,
		SpanID:    SpanID(uuid.NewString()),
		ParentID:  GetSpanID(ctx),
		Name:      name,
		StartTime: time.Now(),
		Tags:      make(map[string]string),
	}
	if t != nil {
		span.Service = t.service
	}

	ctx = context.WithValue(ctx, traceIDKey, traceID)
	ctx = context.WithValue(ctx, spanIDKey, span.SpanID)
	ctx = context.WithValue(ctx, spanKey, span)
	return span, ctx
}

// Finish marks the span as complete
func (s *Span) Finish() {
	s.EndTime = time.Now()
	s.Duration = s.EndTime.Sub(s.StartTime)
}

// SetTag adds a tag to the span
func (s *Span) SetTag(key, value string) {
	s.Tags[key] = value
}

// SetError records an error in the span. The first error wins.
func (s *Span) SetError(err error) {
	if s.Error == nil {
		s.Error = err
	}
}

// SetStatus sets the HTTP status code
func (s *Span) SetStatus(code int) {
	s.StatusCode = code
}

// Submit queues a finished span for logging. Spans are dropped when the
// buffer is full or the tracer is closed.
func (t *Tracer) Submit(span *Span) {
	if t == nil {
		return
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		return
	}

	select {
	case t.spans <- span:
	default:
		t.logger.Warn("Span buffer full, dropping span",
			zap.String("trace_id", string(span.TraceID)),
			zap.String("span_id", string(span.SpanID)),
		)
	}
}

// Close stops accepting spans and waits until queued ones are logged.
func (t *Tracer) Close() {
	if t == nil {
		return
	}

	t.mu.Lock()
	if !t.closed {
		t.closed = true
		close(t.spans)
	}
	t.mu.Unlock()
	<-t.done
}

func (t *Tracer) collectSpans() {
	defer close(t.done)
	for span := range t.spans {
		t.processSpan(span)
	}
}

func (t *Tracer) processSpan(span *Span) {
	fields := []zap.Field{
		zap.String("trace_id", string(span.TraceID)),
		zap.String("span_id", string(span.SpanID)),
		zap.String("operation", span.Name),
		zap.Duration("duration", span.Duration),
		zap.String("service", span.Service),
	}
	if span.ParentID != "" {
		fields = append(fields, zap.String("parent_id", string(span.ParentID)))
	}
	if span.StatusCode != 0 {
		fields = append(fields, zap.Int("status", span.StatusCode))
	}
	for k, v := range span.Tags {
		fields = append(fields, zap.String(k, v))
	}

	if span.Error != nil {
		fields = append(fields, zap.Error(span.Error))
		t.logger.Warn("Span completed with error", fields...)
		return
	}
	t.logger.Debug("Span completed", fields...)
}

type contextKey string

const (
	traceIDKey contextKey = "trace_id"
	spanIDKey  contextKey = "span_id"
	spanKey    contextKey = "span"
)

// WithRemoteParent returns ctx carrying a trace and parent span received
// from a caller. Empty values are ignored.
func WithRemoteParent(ctx context.Context, traceID TraceID, parentID SpanID) context.Context {
	if traceID != "" {
		ctx = context.WithValue(ctx, traceIDKey, traceID)
	}
	if parentID != "" {
		ctx = context.WithValue(ctx, spanIDKey, parentID)
	}
	return ctx
}

// GetTraceID retrieves the trace ID from context
func GetTraceID(ctx context.Context) TraceID {
	if traceID, ok := ctx.Value(traceIDKey).(TraceID); ok {
		return traceID
	}
	return ""
}

// GetSpanID retrieves the span ID from context
func GetSpanID(ctx context.Context) SpanID {
	if spanID, ok := ctx.Value(spanIDKey).(SpanID); ok {
		return spanID
	}
	return ""
}

// SpanFromContext returns the innermost span started in ctx, or nil.
func SpanFromContext(ctx context.Context) *Span {
	span, _ := ctx.Value(spanKey).(*Span)
	return span
}
