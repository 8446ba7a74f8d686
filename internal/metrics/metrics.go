// Package metrics exposes the tick loop's Prometheus counters and gauges.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "palisade_ticks_total",
		Help: "Completed evaluation ticks.",
	})

	SizingDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "palisade_sizing_decisions_total",
		Help: "Sizing decisions by outcome reason.",
	}, []string{"reason"})

	ExitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "palisade_exits_total",
		Help: "Full position exits by trigger.",
	}, []string{"reason"})

	PartialExitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "palisade_partial_exits_total",
		Help: "Executed partial exit tiers.",
	})

	PyramidAddsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "palisade_pyramid_adds_total",
		Help: "Executed pyramid adds.",
	})

	OrderFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "palisade_order_failures_total",
		Help: "Order placements that returned an error.",
	}, []string{"side"})

	OpenPositions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "palisade_open_positions",
		Help: "Currently open positions.",
	})

	DailyRealizedPnL = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "palisade_daily_realized_pnl",
		Help: "Realized PnL for the current UTC day in quote units.",
	})

	EntriesHalted = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "palisade_entries_halted",
		Help: "1 when a fatal inconsistency has halted new entries.",
	})
)
