package httpmiddleware

import (
	"net/http"

	sdkapp "github.com/go-faster/sdk/app"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Instrument returns a middleware that wraps the handler with otelhttp,
// producing spans and metrics named after the matched route pattern rather
// than the raw URL path.
func Instrument(serviceName string, find RouteFinder, m *sdkapp.Telemetry) Middleware {
	return func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, serviceName,
			otelhttp.WithTracerProvider(m.TracerProvider()),
			otelhttp.WithMeterProvider(m.MeterProvider()),
			otelhttp.WithPropagators(m.TextMapPropagator()),
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				if route, ok := find(r); ok {
					return route
				}
				return operation
			}),
		)
	}
}

// Labeler returns a middleware that attaches the matched route pattern to the
// otelhttp metric labeler, so request metrics are grouped by route.
func Labeler(find RouteFinder) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if route, ok := find(r); ok {
				labeler, _ := otelhttp.LabelerFromContext(r.Context())
				labeler.Add(semconv.HTTPRouteKey.String(route))
				labeler.Add(attribute.String("http.method", r.Method))
			}
			next.ServeHTTP(w, r)
		})
	}
}
