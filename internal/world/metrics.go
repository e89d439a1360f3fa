package world

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts what the world does. A nil *Metrics records nothing.
type Metrics struct {
	spawned       prometheus.Counter
	despawned     prometheus.Counter
	cacheHits     prometheus.Counter
	watcherEvents *prometheus.CounterVec
	jobs          *prometheus.CounterVec
}

// NewMetrics registers the world's collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		spawned: f.NewCounter(prometheus.CounterOpts{
			Name: "dirworld_nodes_spawned_total",
			Help: "Nodes spawned for filesystem entries",
		}),
		despawned: f.NewCounter(prometheus.CounterOpts{
			Name: "dirworld_nodes_despawned_total",
			Help: "Node subtrees despawned",
		}),
		cacheHits: f.NewCounter(prometheus.CounterOpts{
			Name: "dirworld_cache_hits_total",
			Help: "Entries whose payload came from the eviction cache",
		}),
		watcherEvents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dirworld_watcher_events_total",
			Help: "Coalesced watcher events handled, by kind",
		}, []string{"kind"}),
		jobs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dirworld_jobs_finished_total",
			Help: "Background jobs finished, by outcome",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) nodeSpawned() {
	if m != nil {
		m.spawned.Inc()
	}
}

func (m *Metrics) nodeDespawned() {
	if m != nil {
		m.despawned.Inc()
	}
}

func (m *Metrics) cacheHit() {
	if m != nil {
		m.cacheHits.Inc()
	}
}

func (m *Metrics) watcherEvent(kind string) {
	if m != nil {
		m.watcherEvents.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) jobFinished(err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "failed"
	}
	m.jobs.WithLabelValues(outcome).Inc()
}
