package indexer

import "github.com/prometheus/client_golang/prometheus"

var DispatchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "denorm",
	Subsystem: "indexer",
	Name:      "dispatch_total",
	Help:      "Reindex tasks dispatched, by outcome.",
}, []string{"parent", "child", "mode", "result"})

var FanOutDocs = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "denorm",
	Subsystem: "indexer",
	Name:      "fanout_docs_total",
	Help:      "Parent documents regenerated and written.",
}, []string{"parent"})

var FanOutDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "denorm",
	Subsystem: "indexer",
	Name:      "fanout_duration_seconds",
	Buckets:   prometheus.DefBuckets,
}, []string{"parent"})

// Collectors returns the metrics of this package, for the host process to
// register.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{DispatchTotal, FanOutDocs, FanOutDuration}
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
