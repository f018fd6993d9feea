package httpmiddleware

import (
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Instrument starts an otelhttp server span and records otelhttp metrics for
// every request. Place it outside RequestID and InjectLogger so logs carry
// the trace id.
func Instrument(service string, tp trace.TracerProvider, mp metric.MeterProvider) Middleware {
	return func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, service,
			otelhttp.WithTracerProvider(tp),
			otelhttp.WithMeterProvider(mp),
		)
	}
}

// Routes labels spans and metrics with the chi route pattern and counts
// requests per route and status. Like LogRequests it runs inside the router.
type Routes struct {
	requests metric.Int64Counter
}

// NewRoutes creates the per-route request counter.
func NewRoutes(mp metric.MeterProvider) (*Routes, error) {
	counter, err := mp.Meter("github.com/xenking/shop-api/pkg/httpmiddleware").Int64Counter(
		"shop.http.requests",
		metric.WithDescription("HTTP requests by route and status"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create request counter")
	}
	return &Routes{requests: counter}, nil
}

// Middleware returns the labeling middleware.
func (rt *Routes) Middleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := &statusWriter{ResponseWriter: w}
			next.ServeHTTP(sw, r)

			ctx := r.Context()
			route := routePattern(r)
			routeAttr := attribute.String("http.route", route)

			span := trace.SpanFromContext(ctx)
			span.SetName(r.Method + " " + route)
			span.SetAttributes(routeAttr)

			if labeler, ok := otelhttp.LabelerFromContext(ctx); ok {
				labeler.Add(routeAttr)
			}

			rt.requests.Add(ctx, 1, metric.WithAttributes(
				routeAttr,
				attribute.String("http.request.method", r.Method),
				attribute.String("http.response.status_code", strconv.Itoa(sw.Status())),
			))
		})
	}
}
