package indexer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	events  *prometheus.CounterVec
	ignored prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)
	return &metrics{
		events: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ornode_indexer_events_total",
			Help: "contract events applied by kind",
		}, []string{"kind"}),
		ignored: factory.NewCounter(prometheus.CounterOpts{
			Name: "ornode_indexer_ignored_signals_total",
			Help: "signals with an unrecognized type",
		}),
	}
}
