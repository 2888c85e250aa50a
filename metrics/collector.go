package metrics

import (
	"github.com/google/uuid"
	"github.com/opd-ai/neteq"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "neteq"

// Source is the engine surface the collector reads.
type Source interface {
	ID() uuid.UUID
	Statistics() neteq.Statistics
}

// Collector implements prometheus.Collector for one engine.
type Collector struct {
	source Source

	packetsReceived  *prometheus.Desc
	packetsDiscarded *prometheus.Desc
	frames           *prometheus.Desc
	concealedSamples *prometheus.Desc
	prolongedLoss    *prometheus.Desc
	transitions      *prometheus.Desc

	jitter        *prometheus.Desc
	lossRate      *prometheus.Desc
	bufferSize    *prometheus.Desc
	filteredLevel *prometheus.Desc
	targetDelay   *prometheus.Desc
	packets       *prometheus.Desc
	quality       *prometheus.Desc
}

// NewCollector creates a collector labelled with the engine's id.
func NewCollector(source Source) *Collector {
	labels := prometheus.Labels{"engine_id": source.ID().String()}
	desc := func(name, help string, variable ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, variable, labels)
	}

	return &Collector{
		source: source,

		packetsReceived:  desc("packets_received_total", "Packets stored in the jitter buffer."),
		packetsDiscarded: desc("packets_discarded_total", "Packets discarded on insertion, by reason.", "reason"),
		frames:           desc("frames_total", "Output frames produced, by playout operation.", "operation"),
		concealedSamples: desc("concealed_samples_total", "Samples synthesized for missing audio."),
		prolongedLoss:    desc("prolonged_loss_episodes_total", "Concealment episodes that reached the fade-out ceiling."),
		transitions:      desc("state_transitions_total", "Playout state machine transitions."),

		jitter:        desc("jitter_ms", "Smoothed inter-arrival jitter estimate."),
		lossRate:      desc("loss_rate", "Fraction of concealed frames over the trailing window."),
		bufferSize:    desc("buffer_size_ms", "Buffered audio not yet played."),
		filteredLevel: desc("filtered_buffer_level_ms", "Smoothed buffer level used for playout decisions."),
		targetDelay:   desc("target_delay_ms", "Current target buffer delay."),
		packets:       desc("packets_in_buffer", "Packets held in the jitter buffer."),
		quality:       desc("receive_quality", "Receive conditions from 0 (excellent) to 3 (poor)."),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.packetsReceived
	ch <- c.packetsDiscarded
	ch <- c.frames
	ch <- c.concealedSamples
	ch <- c.prolongedLoss
	ch <- c.transitions
	ch <- c.jitter
	ch <- c.lossRate
	ch <- c.bufferSize
	ch <- c.filteredLevel
	ch <- c.targetDelay
	ch <- c.packets
	ch <- c.quality
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.source.Statistics()

	counter := func(d *prometheus.Desc, v uint64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), labels...)
	}
	gauge := func(d *prometheus.Desc, v float64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v)
	}

	counter(c.packetsReceived, s.PacketsReceived)
	counter(c.packetsDiscarded, s.Duplicates, "duplicate")
	counter(c.packetsDiscarded, s.Stale, "stale")
	counter(c.packetsDiscarded, s.Evicted, "evicted")
	counter(c.packetsDiscarded, s.Invalid, "invalid")
	counter(c.frames, s.FramesNormal, "normal")
	counter(c.frames, s.FramesConcealed, "concealment")
	counter(c.frames, s.FramesAccelerated, "accelerate")
	counter(c.frames, s.FramesExpanded, "expand")
	counter(c.concealedSamples, s.ConcealedSamples)
	counter(c.prolongedLoss, s.ProlongedLossEpisodes)
	counter(c.transitions, s.StateTransitions)

	gauge(c.jitter, s.JitterMs)
	gauge(c.lossRate, s.LossRate)
	gauge(c.bufferSize, float64(s.CurrentBufferSizeMs))
	gauge(c.filteredLevel, s.FilteredBufferLevelMs)
	gauge(c.targetDelay, float64(s.TargetDelayMs))
	gauge(c.packets, float64(s.PacketsInBuffer))
	gauge(c.quality, float64(s.Quality()))
}
