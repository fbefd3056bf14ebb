package middleware

import (
	"net/http"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/hindsight/hub/internal/telemetry"
)

// Tracing records a server span per API request on the hub's own
// operational tracer. With telemetry disabled the global provider is a
// no-op, so the span is free. These spans are exported outward only and
// never enter the hub's own ingest path.
func Tracing() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Continue a trace a caller propagated via HTTP headers
			propagator := otel.GetTextMapPropagator()
			ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

			tracer := otel.Tracer("hindsight.http")

			ctx, span := tracer.Start(ctx, "HTTP "+r.Method,
				trace.WithSpanKind(trace.SpanKindServer),
			)

			span.SetAttributes(
				attribute.String(telemetry.AttrHTTPMethod, r.Method),
				attribute.String(telemetry.AttrHTTPRoute, r.URL.Path),
				attribute.String(telemetry.AttrHTTPUserAgent, r.UserAgent()),
			)

			ww := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(ww, r.WithContext(ctx))

			span.SetAttributes(
				attribute.Int(telemetry.AttrHTTPStatusCode, ww.statusCode),
				attribute.Int(telemetry.AttrHTTPResponseSize, ww.written),
			)
			if ww.statusCode >= 400 {
				span.SetStatus(codes.Error, "HTTP "+strconv.Itoa(ww.statusCode))
			} else {
				span.SetStatus(codes.Ok, "")
			}
			span.End()
		})
	}
}
