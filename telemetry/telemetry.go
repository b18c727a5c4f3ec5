// Package telemetry publishes statement execution metrics and traces
// through the engine middleware chain.
package telemetry

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/satishbabariya/sqlmapper-go/runtime"
)

// MetricsBuilder builds a middleware publishing per-statement latency
// summaries.
type MetricsBuilder struct {
	Namespace string
	Subsystem string
	Name      string
	Help      string

	// Registerer defaults to the global prometheus registerer.
	Registerer prometheus.Registerer
}

// Build registers the summary vector and returns the middleware. The
// vector is labeled by statement id, statement kind and outcome.
func (b MetricsBuilder) Build() runtime.Middleware {
	if b.Name == "" {
		b.Name = "statement_duration_ms"
	}
	if b.Registerer == nil {
		b.Registerer = prometheus.DefaultRegisterer
	}
	vector := prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Namespace: b.Namespace,
		Subsystem: b.Subsystem,
		Name:      b.Name,
		Help:      b.Help,
		Objectives: map[float64]float64{
			0.5:   0.01,
			0.75:  0.01,
			0.90:  0.01,
			0.99:  0.001,
			0.999: 0.0001,
		},
	}, []string{"statement", "kind", "status"})
	b.Registerer.MustRegister(vector)

	return func(next runtime.Handler) runtime.Handler {
		return func(ctx context.Context, info *runtime.ExecInfo) *runtime.ExecResult {
			start := time.Now()
			res := next(ctx, info)
			status := "ok"
			if res.Err != nil {
				status = "error"
			}
			vector.WithLabelValues(info.Statement, info.Kind.String(), status).
				Observe(float64(time.Since(start).Milliseconds()))
			return res
		}
	}
}
