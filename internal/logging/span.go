package logging

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Span times one composition, toggle or cascade and logs its outcome.
type Span struct {
	name   string
	logger *slog.Logger
	start  time.Time
}

// StartSpan derives a child span. The request id doubles as the trace id when no trace has
// been started yet.
func StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := FromContext(ctx)

	if TraceIDFromContext(ctx) == "" {
		traceID := RequestIDFromContext(ctx)
		if traceID == "" {
			traceID = uuid.NewString()
		}
		ctx = WithTraceID(ctx, traceID)
		logger = logger.With(slog.String("trace_id", traceID))
	}

	spanID := uuid.NewString()
	attrs := []any{slog.String("span_id", spanID), slog.String("span", name)}
	if parent := SpanIDFromContext(ctx); parent != "" {
		attrs = append(attrs, slog.String("parent_span_id", parent))
	}
	logger = logger.With(attrs...)

	ctx = withSpanID(WithLogger(ctx, logger), spanID)
	return ctx, &Span{name: name, logger: logger, start: time.Now()}
}

// Elapsed reports the time since the span started.
func (s *Span) Elapsed() time.Duration {
	return time.Since(s.start)
}

// End logs completion at debug level.
func (s *Span) End() {
	if s == nil {
		return
	}
	s.logger.Debug("span completed", slog.Duration("duration", s.Elapsed()))
}

// EndErr logs completion, at warn level when *errp holds an error. Use it deferred with a
// named error result.
func (s *Span) EndErr(errp *error) {
	if s == nil {
		return
	}
	if errp != nil && *errp != nil {
		s.logger.Warn("span failed", slog.Duration("duration", s.Elapsed()), slog.Any("error", *errp))
		return
	}
	s.End()
}
