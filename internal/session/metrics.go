package session

import "github.com/prometheus/client_golang/prometheus"

// Metrics: Prometheus-метрики сессии
type Metrics struct {
	moves          *prometheus.CounterVec
	coinsCollected prometheus.Counter
	coinsDeposited prometheus.Counter
	emptyActions   *prometheus.CounterVec
	saves          prometheus.Counter
	saveFailures   prometheus.Counter
	resets         prometheus.Counter
	inventory      prometheus.Gauge
	visibleCaches  prometheus.Gauge
}

// NewMetrics создаёт и регистрирует метрики в reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		moves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "geocoin",
			Name:      "player_moves_total",
			Help:      "Player moves by source (manual, live).",
		}, []string{"source"}),
		coinsCollected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "geocoin",
			Name:      "coins_collected_total",
			Help:      "Coins taken from caches.",
		}),
		coinsDeposited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "geocoin",
			Name:      "coins_deposited_total",
			Help:      "Coins put into caches.",
		}),
		emptyActions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "geocoin",
			Name:      "empty_actions_total",
			Help:      "Collect/deposit attempts that had nothing to transfer.",
		}, []string{"action"}),
		saves: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "geocoin",
			Name:      "session_saves_total",
			Help:      "Successful session checkpoints.",
		}),
		saveFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "geocoin",
			Name:      "session_save_failures_total",
			Help:      "Failed session checkpoints.",
		}),
		resets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "geocoin",
			Name:      "session_resets_total",
			Help:      "Explicit session resets.",
		}),
		inventory: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "geocoin",
			Name:      "inventory_coins",
			Help:      "Coins currently held by the player.",
		}),
		visibleCaches: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "geocoin",
			Name:      "visible_caches",
			Help:      "Caches materialized in the current neighborhood.",
		}),
	}

	reg.MustRegister(m.moves, m.coinsCollected, m.coinsDeposited, m.emptyActions,
		m.saves, m.saveFailures, m.resets, m.inventory, m.visibleCaches)
	return m
}
