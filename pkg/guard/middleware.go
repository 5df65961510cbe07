package guard

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// MiddlewareConfig configures the HTTP middleware adapter.
type MiddlewareConfig struct {
	// Namespace is the Prometheus metrics namespace (default: "narvik").
	Namespace string

	// Registry is the Prometheus registry (default: DefaultRegisterer).
	Registry prometheus.Registerer

	// TracerName names the OpenTelemetry tracer (default: "narvik/guard").
	TracerName string
}

// MiddlewareOption configures the middleware.
type MiddlewareOption func(*MiddlewareConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MiddlewareOption {
	return func(c *MiddlewareConfig) { c.Namespace = namespace }
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MiddlewareOption {
	return func(c *MiddlewareConfig) { c.Registry = registry }
}

// WithTracerName sets the tracer name.
func WithTracerName(name string) MiddlewareOption {
	return func(c *MiddlewareConfig) { c.TracerName = name }
}

// metrics holds the guard's Prometheus instruments.
type metrics struct {
	decisions *prometheus.CounterVec
}

var (
	globalMetrics   *metrics
	globalMetricsMu sync.Mutex
)

func initMetrics(cfg MiddlewareConfig) *metrics {
	factory := promauto.With(cfg.Registry)
	return &metrics{
		decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "guard_decisions_total",
			Help:      "Route guard decisions by outcome",
		}, []string{"outcome"}),
	}
}

// Middleware adapts the guard to net/http (chi-compatible). Each request is
// evaluated against the full path (including the query string); denials are
// turned into redirects carrying the decision's status code. Outcomes are
// counted in Prometheus and traced with OpenTelemetry.
//
// The guard instruments are registered once per process: the first Middleware
// call's Namespace and Registry win, and later calls share the same
// instruments regardless of their options.
//
// When the session is logged in but the principal has not been loaded yet
// (fresh process, restored token pair), the profile is fetched before
// evaluating, mirroring the navigation preamble of the web client.
func (g *Guard) Middleware(opts ...MiddlewareOption) func(http.Handler) http.Handler {
	cfg := MiddlewareConfig{
		Namespace:  "narvik",
		Registry:   prometheus.DefaultRegisterer,
		TracerName: "narvik/guard",
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	globalMetricsMu.Lock()
	if globalMetrics == nil {
		globalMetrics = initMetrics(cfg)
	}
	m := globalMetrics
	globalMetricsMu.Unlock()

	tracer := otel.Tracer(cfg.TracerName)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fullPath := r.URL.Path
			if r.URL.RawQuery != "" {
				fullPath += "?" + r.URL.RawQuery
			}

			ctx, span := tracer.Start(r.Context(), "guard "+r.URL.Path,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(attribute.String("guard.path", fullPath)),
			)
			defer span.End()

			if g.session.User() == nil && g.session.Snapshot().IsLogged() {
				if err := g.session.Refresh(ctx); err != nil {
					g.logger.Warn("profile load before guard failed", "error", err)
					span.RecordError(err)
				}
			}

			decision := g.Evaluate(fullPath)

			if decision.Allowed {
				m.decisions.WithLabelValues("allow").Inc()
				span.SetStatus(codes.Ok, "")
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			outcome := "redirect"
			if decision.StatusCode == http.StatusUnauthorized {
				outcome = "unauthorized"
			}
			m.decisions.WithLabelValues(outcome).Inc()
			span.SetAttributes(attribute.String("guard.redirect_to", decision.RedirectTo))
			span.SetStatus(codes.Ok, "")

			status := decision.StatusCode
			if status == 0 {
				status = http.StatusSeeOther
			}
			w.Header().Set("Location", decision.RedirectTo)
			w.WriteHeader(status)
		})
	}
}
