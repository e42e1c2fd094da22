package netplay

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the Prometheus collectors exported by the netplay core.
// Labeled by match id so a host process running several matches (a lobby
// server, say) gets per-match series rather than one aggregate.
var (
	queueLength = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "netplay",
		Name:      "queue_length",
		Help:      "Current PairQueue length by side.",
	}, []string{"match", "side"})

	dtickGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "netplay",
		Name:      "dtick",
		Help:      "Signed drift estimate (local lag minus remote lag) at the last committed frame.",
	}, []string{"match"})

	rollbackDepth = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "netplay",
		Name:      "rollback_depth_frames",
		Help:      "Number of predicted frames re-simulated per Fastforward call.",
		Buckets:   []float64{0, 1, 2, 4, 8, 16, 32, 64, 128, 256},
	}, []string{"match"})

	pingRTT = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "netplay",
		Name:      "ping_rtt_seconds",
		Help:      "Observed ping/pong round-trip latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"match"})

	roundsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "netplay",
		Name:      "rounds_total",
		Help:      "Rounds completed, by outcome.",
	}, []string{"match", "outcome"})
)

func init() {
	prometheus.MustRegister(queueLength, dtickGauge, rollbackDepth, pingRTT, roundsTotal)
}
