package broker

import "github.com/prometheus/client_golang/prometheus"

// Metrics is a small set of collectors registered once at server
// construction and updated inline by the handlers that own the events
// they describe.
type Metrics struct {
	GlobalEpoch    prometheus.Gauge
	ClusterCount   prometheus.Gauge
	FailedProxies  prometheus.Gauge
	RequestsTotal  *prometheus.CounterVec
	MigrationTasks *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		GlobalEpoch: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "clustermeta", Subsystem: "broker", Name: "global_epoch",
			Help: "Current MetaStore global epoch.",
		}),
		ClusterCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "clustermeta", Subsystem: "broker", Name: "cluster_count",
			Help: "Number of clusters currently tracked.",
		}),
		FailedProxies: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "clustermeta", Subsystem: "broker", Name: "failed_proxies",
			Help: "Number of proxies currently reported failed by quorum.",
		}),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clustermeta", Subsystem: "broker", Name: "requests_total",
			Help: "HTTP requests handled, by route and status class.",
		}, []string{"route", "status"}),
		MigrationTasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clustermeta", Subsystem: "broker", Name: "migration_tasks_total",
			Help: "Migration tasks planned, by kind (expand, shrink, auto, auto_scale_up).",
		}, []string{"kind"}),
	}
	for _, c := range []prometheus.Collector{m.GlobalEpoch, m.ClusterCount, m.FailedProxies, m.RequestsTotal, m.MigrationTasks} {
		if err := reg.Register(c); err != nil {
			if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
				_ = are.ExistingCollector
				continue
			}
			panic(err)
		}
	}
	return m
}
