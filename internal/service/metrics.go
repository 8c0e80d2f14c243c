package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	shipmentsResolved = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "meliprint",
		Subsystem: "reconcile",
		Name:      "shipments_resolved_total",
		Help:      "Total number of shipments resolved to full detail.",
	})

	shipmentsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "meliprint",
		Subsystem: "reconcile",
		Name:      "shipments_dropped_total",
		Help:      "Total number of discovered shipments dropped after a failed detail fetch.",
	})

	discoveryFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "meliprint",
		Subsystem: "reconcile",
		Name:      "discovery_failures_total",
		Help:      "Total number of failed discovery strategy runs.",
	}, []string{"strategy"})

	labelDocuments = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "meliprint",
		Subsystem: "labels",
		Name:      "documents_total",
		Help:      "Total number of label documents produced.",
	}, []string{"format"})
)
