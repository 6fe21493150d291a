package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

/*
 *  Operational counters shared by the Blink client, the device store and
 *  the accessory hosts
 */

var (
	APIRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "blink",
		Name:      "api_requests_total",
		Help:      "Requests made to the Blink REST API.",
	}, []string{"method", "code"})

	APICache = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "blink",
		Name:      "api_cache_lookups_total",
		Help:      "Staleness cache lookups by resource and result (hit/miss).",
	}, []string{"resource", "result"})

	CommandPolls = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "blink",
		Name:      "command_polls_total",
		Help:      "Command status polls issued while waiting for commands.",
	})

	CommandWaitSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "blink",
		Name:      "command_wait_seconds",
		Help:      "Time taken for remote commands to complete.",
		Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
	})

	Refreshes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "blink",
		Name:      "refreshes_total",
		Help:      "Account snapshot refreshes by result.",
	}, []string{"result"})

	CharacteristicWrites = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "blink",
		Name:      "characteristic_writes_total",
		Help:      "Characteristic writes from accessory hosts by host and result.",
	}, []string{"host", "characteristic", "result"})

	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "blink",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Status API requests by route template, method and status code.",
	}, []string{"route", "method", "code"})
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		APIRequests,
		APICache,
		CommandPolls,
		CommandWaitSeconds,
		Refreshes,
		CharacteristicWrites,
		HTTPRequests,
	}
}

// Register adds the operational counters to r.  Counters already present
// in r are left alone so a registry can be shared between commands.
func Register(r prometheus.Registerer) error {
	for _, c := range collectors() {
		if err := r.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}

	return nil
}

// Result is the label value for an outcome
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
