package scribe

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics are registered on a per-Scribe registry so independent instances
// (and tests) never collide. A nil *metrics is a valid no-op receiver.
type metrics struct {
	registry *prometheus.Registry

	activeStreams     prometheus.Gauge
	windowsDispatched prometheus.Counter
	windowsFailed     prometheus.Counter
	segmentsEmitted   prometheus.Counter
}

func newMetrics() *metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &metrics{
		registry: registry,
		activeStreams: factory.NewGauge(prometheus.GaugeOpts{
			Name: "murmur_active_streams",
			Help: "Number of transcription pipelines currently running.",
		}),
		windowsDispatched: factory.NewCounter(prometheus.CounterOpts{
			Name: "murmur_windows_dispatched_total",
			Help: "Audio windows handed to the transcription model.",
		}),
		windowsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "murmur_windows_failed_total",
			Help: "Audio windows skipped after a transcription failure.",
		}),
		segmentsEmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "murmur_segments_emitted_total",
			Help: "Transcription segments delivered to output sinks.",
		}),
	}
}

func (m *metrics) streamStarted() {
	if m != nil {
		m.activeStreams.Inc()
	}
}

func (m *metrics) streamStopped() {
	if m != nil {
		m.activeStreams.Dec()
	}
}

func (m *metrics) windowDispatched() {
	if m != nil {
		m.windowsDispatched.Inc()
	}
}

func (m *metrics) windowFailed() {
	if m != nil {
		m.windowsFailed.Inc()
	}
}

func (m *metrics) segmentEmitted() {
	if m != nil {
		m.segmentsEmitted.Inc()
	}
}
