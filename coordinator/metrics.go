package coordinator

import "github.com/prometheus/client_golang/prometheus"

// Metrics instruments the four loops: an iteration and an error counter per
// loop, plus counters for witnessed failures, proxy pushes and committed
// migrations, mirroring broker.Metrics' per-collector registration
// convention.
type Metrics struct {
	LoopIterations *prometheus.CounterVec
	LoopErrors     *prometheus.CounterVec
	FailuresFound  prometheus.Counter
	ProxiesPushed  prometheus.Counter
	MigrationsCommitted prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LoopIterations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clustermeta", Subsystem: "coordinator", Name: "loop_iterations_total",
			Help: "Control loop iterations, by loop name.",
		}, []string{"loop"}),
		LoopErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clustermeta", Subsystem: "coordinator", Name: "loop_errors_total",
			Help: "Control loop iterations that hit a transient error, by loop name.",
		}, []string{"loop"}),
		FailuresFound: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clustermeta", Subsystem: "coordinator", Name: "failures_witnessed_total",
			Help: "Liveness failures witnessed and reported to the broker.",
		}),
		ProxiesPushed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clustermeta", Subsystem: "coordinator", Name: "proxy_pushes_total",
			Help: "SETCLUSTER+SETREPL batches pushed to proxies.",
		}),
		MigrationsCommitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clustermeta", Subsystem: "coordinator", Name: "migrations_committed_total",
			Help: "Migration tasks committed after every involved proxy reported completion.",
		}),
	}
	for _, c := range []prometheus.Collector{m.LoopIterations, m.LoopErrors, m.FailuresFound, m.ProxiesPushed, m.MigrationsCommitted} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			panic(err)
		}
	}
	return m
}
