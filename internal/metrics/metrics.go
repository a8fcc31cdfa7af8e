// Package metrics wires rectify.MetricsSink to Prometheus counters and
// gauges. Grounded on snapetech-plexTuner's health/metrics surface, the one
// example repo in the pack with a Prometheus registration pattern to
// imitate; the teacher itself only logs via slog, with no metrics surface.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"rectifier/rectify"
)

// Collector implements rectify.MetricsSink against a prometheus.Registerer.
type Collector struct {
	emitted         *prometheus.CounterVec
	repeated        *prometheus.CounterVec
	dropped         *prometheus.CounterVec
	queueDepth      *prometheus.GaugeVec
	discontinuities *prometheus.CounterVec
	rebaselined     *prometheus.CounterVec
}

// New registers the rectifier's metric families on reg and returns a
// Collector. Pass prometheus.DefaultRegisterer for the usual global
// registry, or a fresh prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		emitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rectifier",
			Name:      "frames_emitted_total",
			Help:      "Frames emitted on an output port with a rewritten presentation time.",
		}, []string{"port"}),
		repeated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rectifier",
			Name:      "frames_repeated_total",
			Help:      "Ticks where the previous frame was re-emitted because no new frame was available.",
		}, []string{"port"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rectifier",
			Name:      "frames_dropped_total",
			Help:      "Frames dropped, labeled by reason (backpressure, overflow).",
		}, []string{"port", "reason"}),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "rectifier",
			Name:      "port_queue_depth",
			Help:      "Current number of queued frames pending selection for a port.",
		}, []string{"port"}),
		discontinuities: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rectifier",
			Name:      "discontinuities_total",
			Help:      "Detected timestamp discontinuities, labeled by kind (forward, backward).",
		}, []string{"port", "kind"}),
		rebaselined: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rectifier",
			Name:      "rebaselines_total",
			Help:      "Times a port's epoch was re-anchored after a discontinuity or sustained gap.",
		}, []string{"port"}),
	}
	reg.MustRegister(c.emitted, c.repeated, c.dropped, c.queueDepth, c.discontinuities, c.rebaselined)
	return c
}

func (c *Collector) FrameEmitted(port int) {
	c.emitted.WithLabelValues(strconv.Itoa(port)).Inc()
}

func (c *Collector) FrameRepeated(port int) {
	c.repeated.WithLabelValues(strconv.Itoa(port)).Inc()
}

func (c *Collector) FrameDropped(port int, reason string) {
	c.dropped.WithLabelValues(strconv.Itoa(port), reason).Inc()
}

func (c *Collector) QueueDepth(port int, depth int) {
	c.queueDepth.WithLabelValues(strconv.Itoa(port)).Set(float64(depth))
}

func (c *Collector) DiscontinuityDetected(port int, kind string) {
	c.discontinuities.WithLabelValues(strconv.Itoa(port), kind).Inc()
}

func (c *Collector) Rebaselined(port int) {
	c.rebaselined.WithLabelValues(strconv.Itoa(port)).Inc()
}

var _ rectify.MetricsSink = (*Collector)(nil)
