// Package mmetrics exposes the Prometheus instrumentation the core
// components publish: pool saturation, authorization cache hit rate, and
// transaction/posting outcomes.
package mmetrics

import "github.com/prometheus/client_golang/prometheus"

// Registry bundles the metrics the core updates. The hosting application
// registers it with its own prometheus.Registerer.
type Registry struct {
	PoolIdle      prometheus.Gauge
	PoolInUse     prometheus.Gauge
	PoolWaiters   prometheus.Gauge
	PoolTimeouts  prometheus.Counter

	AuthCacheHits   prometheus.Counter
	AuthCacheMisses prometheus.Counter

	TxCommits   prometheus.Counter
	TxRollbacks prometheus.Counter

	JournalPosted prometheus.Counter
}

// NewRegistry constructs and registers the core's metrics on reg.
func NewRegistry(reg prometheus.Registerer) *Registry {
	r := &Registry{
		PoolIdle: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "erpcore_pool_idle_connections",
			Help: "Number of idle connections currently in the pool.",
		}),
		PoolInUse: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "erpcore_pool_in_use_connections",
			Help: "Number of connections currently checked out of the pool.",
		}),
		PoolWaiters: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "erpcore_pool_waiters",
			Help: "Number of goroutines currently blocked on pool acquisition.",
		}),
		PoolTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "erpcore_pool_acquire_timeouts_total",
			Help: "Number of pool acquisitions that timed out.",
		}),
		AuthCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "erpcore_auth_cache_hits_total",
			Help: "Role permission lookups served from cache.",
		}),
		AuthCacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "erpcore_auth_cache_misses_total",
			Help: "Role permission lookups that required a repository load.",
		}),
		TxCommits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "erpcore_transactions_committed_total",
			Help: "Transactional operations that committed successfully.",
		}),
		TxRollbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "erpcore_transactions_rolled_back_total",
			Help: "Transactional operations that rolled back.",
		}),
		JournalPosted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "erpcore_journal_entries_posted_total",
			Help: "Journal entries successfully posted.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			r.PoolIdle, r.PoolInUse, r.PoolWaiters, r.PoolTimeouts,
			r.AuthCacheHits, r.AuthCacheMisses,
			r.TxCommits, r.TxRollbacks, r.JournalPosted,
		)
	}

	return r
}
