// Package metrics adapts circuitbus's Factory listener hook to
// Prometheus, grounded on the custom prometheus.Collector pattern from
// 1mb-dev-autobreaker's examples/prometheus (a pull-model Collector
// reading breaker.Metrics() on scrape). circuitbus has no poll surface
// of its own — circuits live behind a Factory's UnitOfWork, not a
// single struct with a Metrics() method — so this package instead
// pushes updates into standard GaugeVec/CounterVec collectors as
// listener events arrive, and registers those collectors the ordinary
// way via prometheus.MustRegister.
package metrics

import (
	"github.com/1mb-dev/circuitbus/internal/breaker"
	"github.com/prometheus/client_golang/prometheus"
)

// Recorder exposes circuitbus's event stream as four Prometheus
// series, matching SPEC_FULL.md's observability section:
//
//	circuitbus_state{name}               gauge   0=closed 1=opened 2=half-opened
//	circuitbus_failures_total{name}      counter cumulative non-excluded failures
//	circuitbus_state_changes_total{name,to} counter transitions by destination state
//	circuitbus_recoveries_total{name}    counter failure streaks reset to zero
type Recorder struct {
	state         *prometheus.GaugeVec
	failures      *prometheus.CounterVec
	stateChanges  *prometheus.CounterVec
	recoveries    *prometheus.CounterVec
}

// NewRecorder constructs the four collectors. Register them with a
// prometheus.Registerer (or the default one) via Register before
// wiring Listener into a Factory.
func NewRecorder() *Recorder {
	return &Recorder{
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "circuitbus_state",
			Help: "Current circuit state: 0=closed, 1=opened, 2=half-opened.",
		}, []string{"name"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "circuitbus_failures_total",
			Help: "Total non-excluded failures recorded against a circuit.",
		}, []string{"name"}),
		stateChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "circuitbus_state_changes_total",
			Help: "Total state transitions, labeled by destination state.",
		}, []string{"name", "to"}),
		recoveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "circuitbus_recoveries_total",
			Help: "Total times a circuit's failure streak reset to zero.",
		}, []string{"name"}),
	}
}

// Register adds all four collectors to reg (use prometheus.DefaultRegisterer
// for the global registry, as 1mb-dev-autobreaker's example does via
// prometheus.MustRegister).
func (r *Recorder) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{r.state, r.failures, r.stateChanges, r.recoveries} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Listener is a breaker.Hook suitable for Factory.AddListener. It
// updates the recorder's series from the four public event kinds;
// anything else is ignored.
func (r *Recorder) Listener() breaker.Hook {
	return func(name string, kind breaker.EventKind, event breaker.Event) {
		switch kind {
		case breaker.EventStateChanged:
			ev, ok := event.(breaker.ContextChanged)
			if !ok {
				return
			}
			r.state.WithLabelValues(name).Set(float64(ev.State))
			r.stateChanges.WithLabelValues(name, ev.State.String()).Inc()
		case breaker.EventFailed:
			r.failures.WithLabelValues(name).Inc()
		case breaker.EventRecovered:
			r.recoveries.WithLabelValues(name).Inc()
		case breaker.EventCircuitBreakerCreated:
			r.state.WithLabelValues(name).Set(0)
		}
	}
}
