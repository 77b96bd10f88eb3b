/*
Package tracing provides lightweight request tracing for the bridge.

A trace follows one inbound request through the front server, page
discovery and the forwarding proxy. Spans are logged through zap once
finished, so a trace is read by filtering logs on trace_id.

# Usage

	tracer := tracing.New("devtools-bridge", logger)
	defer tracer.Close()

	router.Use(tracing.HTTPMiddleware(tracer))

	span, ctx := tracer.StartSpan(ctx, "devtools.discover")
	defer func() {
		span.Finish()
		tracer.Submit(span)
	}()

# Trace Format

Trace context travels in HTTP headers:
  - X-Trace-ID: time-ordered id of the whole request flow ("trc_01H...")
  - X-Span-ID: opaque id of the current operation (UUID)

# Performance

Spans are buffered (1000) and logged by a single collector goroutine.
Submit never blocks; spans are dropped with a warning when the buffer is full.
*/
package tracing
