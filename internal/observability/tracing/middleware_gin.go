package tracing

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/spinwheel/internal/observability/context"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// GinMiddleware instruments inbound HTTP requests.
func GinMiddleware() gin.HandlerFunc {
	tracer := otel.Tracer("spinwheel/http")
	return func(c *gin.Context) {
		ctx := ExtractContext(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))

		ctx, span := tracer.Start(ctx, "HTTP "+strings.ToUpper(c.Request.Method), trace.WithSpanKind(trace.SpanKindServer))

		requestID := obscontext.RequestIDFromContext(ctx)
		if requestID != "" {
			member, err := baggage.NewMember("request_id", requestID)
			if err == nil {
				bag, bagErr := baggage.New(member)
				if bagErr == nil {
					ctx = baggage.ContextWithBaggage(ctx, bag)
				}
			}
			span.SetAttributes(attribute.String("request_id", requestID))
		}
		if cid := obscontext.CorrelationIDFromContext(ctx); cid != "" {
			span.SetAttributes(attribute.String("correlation_id", cid))
		}

		c.Request = c.Request.WithContext(ctx)
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		status := c.Writer.Status()
		span.SetName("HTTP " + strings.ToUpper(c.Request.Method) + " " + route)
		attrs := []attribute.KeyValue{
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", route),
			attribute.Int("http.status_code", status),
			attribute.Int64("http.server_duration_ms", time.Since(start).Milliseconds()),
		}
		attrs = append(attrs, spinAttributes(c, status)...)
		span.SetAttributes(SafeAttributes(attrs...)...)

		if status >= http.StatusInternalServerError {
			if lastErr := c.Errors.Last(); lastErr != nil {
				if safeErr := SafeError(lastErr.Err); safeErr != nil {
					span.RecordError(safeErr)
				}
			}
			span.SetStatus(codes.Error, "request error")
		}
		span.End()
	}
}

// spinAttributes tags spin requests with their allocation result.
func spinAttributes(c *gin.Context, status int) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	if outcome := strings.TrimSpace(c.GetString(obscontext.SpinOutcomeKey)); outcome != "" {
		attrs = append(attrs, attribute.String("spin.outcome", outcome))
	}
	switch status {
	case http.StatusTooManyRequests:
		attrs = append(attrs, attribute.Bool("spin.rate_limited", true))
	case http.StatusConflict:
		attrs = append(attrs, attribute.Bool("spin.duplicate", true))
	}
	return attrs
}
