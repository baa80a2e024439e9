package syncengine

import "github.com/prometheus/client_golang/prometheus"

type metrics struct {
	fetches     *prometheus.CounterVec
	discarded   *prometheus.CounterVec
	superseded  prometheus.Counter
	sends       *prometheus.CounterVec
	pending     prometheus.Gauge
	readUpdates *prometheus.CounterVec
}

// newMetrics registers the engine collectors on reg. A nil reg gets a
// private registry.
func newMetrics(reg prometheus.Registerer) *metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &metrics{
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatsync_sync_fetch_total",
			Help: "Poll fetches by scope and result.",
		}, []string{"scope", "result"}),
		discarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatsync_sync_fetch_discarded_total",
			Help: "Fetch results dropped because their scope changed while in flight.",
		}, []string{"scope"}),
		superseded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chatsync_sync_superseded_total",
			Help: "Provisional messages replaced by their confirmed copy.",
		}),
		sends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatsync_sync_sends_total",
			Help: "Optimistic sends by final state.",
		}, []string{"state"}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chatsync_sync_pending_sends",
			Help: "Sends waiting for confirmation.",
		}),
		readUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chatsync_sync_read_updates_total",
			Help: "Read marker and read flag updates by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.fetches, m.discarded, m.superseded, m.sends, m.pending, m.readUpdates)
	return m
}
