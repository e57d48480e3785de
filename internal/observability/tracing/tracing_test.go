package tracing

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/spinwheel/internal/observability/context"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestSafeAttributesDropsIdentity(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("session_id", "abc"),
		attribute.String("http.route", "/api/spin"),
		attribute.String("client_ip", "203.0.113.1"),
	)
	if len(attrs) != 1 || attrs[0].Key != "http.route" {
		t.Fatalf("unexpected attributes: %v", attrs)
	}
}

func TestSafeErrorKeepsFirstLine(t *testing.T) {
	err := SafeError(errors.New("insert failed\nDETAIL: Key (session_id)=(abc) already exists"))
	if err == nil || err.Error() != "insert failed" {
		t.Fatalf("unexpected error: %v", err)
	}
	if SafeError(nil) != nil {
		t.Fatalf("expected nil")
	}
}

func TestGinMiddlewareNamesSpanByRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	r := gin.New()
	r.Use(GinMiddleware())
	r.POST("/api/spin", func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/spin", nil))

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected one span, got %d", len(spans))
	}
	if spans[0].Name() != "HTTP POST /api/spin" {
		t.Fatalf("unexpected span name %q", spans[0].Name())
	}
}

func TestGinMiddlewareTagsSpinOutcome(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	r := gin.New()
	r.Use(GinMiddleware())
	r.POST("/api/spin", func(c *gin.Context) {
		c.Set(obscontext.SpinOutcomeKey, "prize")
		c.Status(http.StatusOK)
	})
	r.GET("/api/limited", func(c *gin.Context) { c.Status(http.StatusTooManyRequests) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/spin", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/limited", nil))

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("expected two spans, got %d", len(spans))
	}
	if v, ok := spanAttr(spans[0].Attributes(), "spin.outcome"); !ok || v.AsString() != "prize" {
		t.Fatalf("expected spin.outcome=prize, got %v", spans[0].Attributes())
	}
	if v, ok := spanAttr(spans[1].Attributes(), "spin.rate_limited"); !ok || !v.AsBool() {
		t.Fatalf("expected spin.rate_limited=true, got %v", spans[1].Attributes())
	}
	if _, ok := spanAttr(spans[1].Attributes(), "spin.outcome"); ok {
		t.Fatalf("expected no outcome on a rejected request")
	}
}

func spanAttr(attrs []attribute.KeyValue, key attribute.Key) (attribute.Value, bool) {
	for _, attr := range attrs {
		if attr.Key == key {
			return attr.Value, true
		}
	}
	return attribute.Value{}, false
}
