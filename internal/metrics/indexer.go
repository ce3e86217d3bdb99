package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	indexEventsEnqueued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "renoted",
			Name:      "index_events_enqueued_total",
			Help:      "Indexing events accepted onto the queue",
		},
		[]string{"kind"},
	)

	indexEventsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "renoted",
			Name:      "index_events_dropped_total",
			Help:      "Indexing events dropped because the queue was full",
		},
		[]string{"kind"},
	)

	indexEventsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "renoted",
			Name:      "index_events_processed_total",
			Help:      "Indexing events handled to completion",
		},
		[]string{"kind"},
	)

	indexEventsFailed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "renoted",
			Name:      "index_events_failed_total",
			Help:      "Indexing events whose handler returned an error or panicked",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(indexEventsEnqueued)
	prometheus.MustRegister(indexEventsDropped)
	prometheus.MustRegister(indexEventsProcessed)
	prometheus.MustRegister(indexEventsFailed)
}

// IndexEventEnqueued counts an event accepted onto the queue.
func IndexEventEnqueued(kind string) { indexEventsEnqueued.WithLabelValues(kind).Inc() }

// IndexEventDropped counts an event dropped on a full queue.
func IndexEventDropped(kind string) { indexEventsDropped.WithLabelValues(kind).Inc() }

// IndexEventProcessed counts a handled event.
func IndexEventProcessed(kind string) { indexEventsProcessed.WithLabelValues(kind).Inc() }

// IndexEventFailed counts a failed event.
func IndexEventFailed(kind string) { indexEventsFailed.WithLabelValues(kind).Inc() }
