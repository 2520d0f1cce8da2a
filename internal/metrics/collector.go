// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器
type Collector struct {
	// 会话指标
	sessionsTotal  prometheus.Counter
	sessionsActive prometheus.Gauge

	// 轮次指标
	turnsTotal    *prometheus.CounterVec
	turnDuration  *prometheus.HistogramVec
	interruptions prometheus.Counter

	// 识别指标
	recognizerDials  *prometheus.CounterVec
	transcriptEvents *prometheus.CounterVec

	// 合成指标
	synthSegmentsTotal *prometheus.CounterVec
	synthDuration      prometheus.Histogram
	queueDropped       prometheus.Counter

	// 智能体流指标
	replyStreamsTotal   *prometheus.CounterVec
	replyStreamDuration prometheus.Histogram

	logger *zap.Logger
}

// NewCollector 创建指标收集器
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// 会话指标
	c.sessionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total number of voice sessions",
		},
	)

	c.sessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of currently active voice sessions",
		},
	)

	// 轮次指标
	c.turnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Total number of conversation turns",
		},
		[]string{"input", "status"}, // input: text, audio; status: completed, superseded, failed
	)

	c.turnDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "Conversation turn duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"input"},
	)

	c.interruptions = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interruptions_total",
			Help:      "Total number of barge-in interruptions",
		},
	)

	// 识别指标
	c.recognizerDials = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recognizer_dials_total",
			Help:      "Total number of upstream recognizer dials",
		},
		[]string{"status"}, // status: success, error
	)

	c.transcriptEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcript_events_total",
			Help:      "Total number of transcript events by kind",
		},
		[]string{"kind"}, // kind: partial, final
	)

	// 合成指标
	c.synthSegmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "synth_segments_total",
			Help:      "Total number of synthesized segments by status",
		},
		[]string{"status"}, // status: completed, canceled, failed, stale
	)

	c.synthDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "synth_segment_duration_seconds",
			Help:      "Synthesis duration per segment in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
	)

	c.queueDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "synth_queue_dropped_total",
			Help:      "Total number of queued synthesis jobs dropped by barge-in",
		},
	)

	// 智能体流指标
	c.replyStreamsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reply_streams_total",
			Help:      "Total number of agent reply streams",
		},
		[]string{"status"}, // status: success, error
	)

	c.replyStreamDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reply_stream_duration_seconds",
			Help:      "Agent reply stream duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🎯 会话指标记录
// =============================================================================

// SessionStarted 记录会话开始
func (c *Collector) SessionStarted() {
	c.sessionsTotal.Inc()
	c.sessionsActive.Inc()
}

// SessionEnded 记录会话结束
func (c *Collector) SessionEnded() {
	c.sessionsActive.Dec()
}

// =============================================================================
// 🔄 轮次指标记录
// =============================================================================

// RecordTurn 记录一个对话轮次
func (c *Collector) RecordTurn(input, status string, duration time.Duration) {
	c.turnsTotal.WithLabelValues(input, status).Inc()
	c.turnDuration.WithLabelValues(input).Observe(duration.Seconds())
}

// RecordInterruption 记录一次打断
func (c *Collector) RecordInterruption() {
	c.interruptions.Inc()
}

// =============================================================================
// 🎙️ 识别指标记录
// =============================================================================

// RecordRecognizerDial 记录一次上游识别连接
func (c *Collector) RecordRecognizerDial(status string) {
	c.recognizerDials.WithLabelValues(status).Inc()
}

// RecordTranscript 记录一个转写事件
func (c *Collector) RecordTranscript(kind string) {
	c.transcriptEvents.WithLabelValues(kind).Inc()
}

// =============================================================================
// 🔊 合成指标记录
// =============================================================================

// RecordSynthSegment 记录一个合成分段
func (c *Collector) RecordSynthSegment(status string, duration time.Duration) {
	c.synthSegmentsTotal.WithLabelValues(status).Inc()
	c.synthDuration.Observe(duration.Seconds())
}

// RecordQueueDropped 记录被打断丢弃的排队任务数
func (c *Collector) RecordQueueDropped(n int) {
	if n > 0 {
		c.queueDropped.Add(float64(n))
	}
}

// =============================================================================
// 🤖 智能体流指标记录
// =============================================================================

// RecordReplyStream 记录一次智能体回复流
func (c *Collector) RecordReplyStream(status string, duration time.Duration) {
	c.replyStreamsTotal.WithLabelValues(status).Inc()
	c.replyStreamDuration.Observe(duration.Seconds())
}
