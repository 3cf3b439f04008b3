// Package metrics exposes Prometheus instrumentation for the signal engine.
// Everything is registered through promauto; the API layer serves the
// /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PumpsDetected counts pump signals by admission outcome.
var PumpsDetected = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "cryptopump",
		Subsystem: "signals",
		Name:      "pumps_detected_total",
		Help:      "Total pump signals detected",
	},
	[]string{"outcome"},
)

// MoversDetected counts top-mover analyses by final signal.
var MoversDetected = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "cryptopump",
		Subsystem: "signals",
		Name:      "movers_detected_total",
		Help:      "Total top-mover analyses produced",
	},
	[]string{"signal"},
)

// TradesOpened counts opened trades.
var TradesOpened = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "cryptopump",
		Subsystem: "trading",
		Name:      "trades_opened_total",
		Help:      "Total trades opened",
	},
	[]string{"strategy", "side"},
)

// TradesClosed counts closed trades by exit reason.
var TradesClosed = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "cryptopump",
		Subsystem: "trading",
		Name:      "trades_closed_total",
		Help:      "Total trades closed",
	},
	[]string{"strategy", "reason"},
)

// TradesSkipped counts signals rejected by admission control.
var TradesSkipped = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "cryptopump",
		Subsystem: "trading",
		Name:      "trades_skipped_total",
		Help:      "Total qualifying signals rejected by the risk gate",
	},
	[]string{"strategy"},
)

// OpenTrades tracks the number of currently open trades.
var OpenTrades = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "cryptopump",
		Subsystem: "trading",
		Name:      "open_trades",
		Help:      "Number of currently open trades",
	},
)

// CurrentBalance tracks the running account balance.
var CurrentBalance = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "cryptopump",
		Subsystem: "balance",
		Name:      "current_balance",
		Help:      "Current account balance in quote units",
	},
)

// DailyPnL tracks today's realized profit and loss.
var DailyPnL = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "cryptopump",
		Subsystem: "balance",
		Name:      "daily_pnl",
		Help:      "Realized P&L since the last daily rollover",
	},
)

// ScanDuration observes how long each periodic scan takes.
var ScanDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "cryptopump",
		Subsystem: "engine",
		Name:      "scan_duration_seconds",
		Help:      "Duration of periodic scans",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	},
	[]string{"scan"},
)

// ScanErrors counts per-scan failures that were recovered by skipping.
var ScanErrors = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "cryptopump",
		Subsystem: "engine",
		Name:      "scan_errors_total",
		Help:      "Total recovered errors during periodic scans",
	},
	[]string{"scan"},
)
