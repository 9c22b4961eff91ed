package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	stubs     prometheus.Gauge
	full      prometheus.Gauge
	periodNum prometheus.Gauge
	puts      *prometheus.CounterVec
	pruned    prometheus.Counter

	eventsDropped prometheus.Counter
}

func (m *metrics) init(reg prometheus.Registerer) {
	factory := promauto.With(reg)
	m.stubs = factory.NewGauge(prometheus.GaugeOpts{
		Name: "ornode_proposals_stub",
		Help: "proposals created on chain without uploaded content",
	})
	m.full = factory.NewGauge(prometheus.GaugeOpts{
		Name: "ornode_proposals_full",
		Help: "proposals with validated content",
	})
	m.periodNum = factory.NewGauge(prometheus.GaugeOpts{
		Name: "ornode_period_num",
		Help: "current governance period number",
	})
	m.puts = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "ornode_put_proposal_total",
		Help: "content uploads by result",
	}, []string{"result"})
	m.pruned = factory.NewCounter(prometheus.CounterOpts{
		Name: "ornode_proposals_pruned_total",
		Help: "stubs removed by the pruner",
	})
	m.eventsDropped = factory.NewCounter(prometheus.CounterOpts{
		Name: "ornode_store_events_dropped_total",
		Help: "store events dropped because the notification queue was full",
	})
}
