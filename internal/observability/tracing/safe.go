package tracing

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
)

// Attribute keys that may carry participant identity never reach spans.
var blockedAttributeKeys = map[attribute.Key]struct{}{
	"session_id": {},
	"client_ip":  {},
	"ip":         {},
	"cookie":     {},
}

// ExtractContext reads W3C trace context from carrier into ctx.
func ExtractContext(ctx context.Context, carrier propagation.TextMapCarrier) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}

// SafeAttributes drops attributes that could identify a participant.
func SafeAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, blocked := blockedAttributeKeys[attr.Key]; blocked {
			continue
		}
		out = append(out, attr)
	}
	return out
}

// SafeError reduces err to its message with anything after the first line
// removed, so driver errors carrying bound values stay out of traces.
func SafeError(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.TrimSpace(err.Error())
	if idx := strings.IndexAny(msg, "\r\n"); idx >= 0 {
		msg = strings.TrimSpace(msg[:idx])
	}
	if msg == "" {
		return nil
	}
	return errors.New(msg)
}
