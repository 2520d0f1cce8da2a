package metrics

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

var collectorNamespaceSeq uint64

func nextTestNamespace() string {
	seq := atomic.AddUint64(&collectorNamespaceSeq, 1)
	return fmt.Sprintf("test_%d", seq)
}

// =============================================================================
// 🧪 Collector 测试
// =============================================================================

func TestNewCollector(t *testing.T) {
	logger := zap.NewNop()
	collector := NewCollector(nextTestNamespace(), logger)

	assert.NotNil(t, collector)
	assert.NotNil(t, collector.sessionsTotal)
	assert.NotNil(t, collector.sessionsActive)
	assert.NotNil(t, collector.turnsTotal)
	assert.NotNil(t, collector.synthSegmentsTotal)
	assert.NotNil(t, collector.replyStreamsTotal)
}

func TestCollector_SessionLifecycle(t *testing.T) {
	logger := zap.NewNop()
	collector := NewCollector(nextTestNamespace(), logger)

	collector.SessionStarted()
	collector.SessionStarted()
	collector.SessionEnded()

	assert.Equal(t, 2.0, testutil.ToFloat64(collector.sessionsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.sessionsActive))
}

func TestCollector_RecordTurn(t *testing.T) {
	logger := zap.NewNop()
	collector := NewCollector(nextTestNamespace(), logger)

	collector.RecordTurn("text", "completed", 500*time.Millisecond)
	collector.RecordTurn("audio", "superseded", 100*time.Millisecond)

	count := testutil.CollectAndCount(collector.turnsTotal)
	assert.Equal(t, 2, count)
}

func TestCollector_RecordInterruption(t *testing.T) {
	logger := zap.NewNop()
	collector := NewCollector(nextTestNamespace(), logger)

	collector.RecordInterruption()
	collector.RecordInterruption()

	assert.Equal(t, 2.0, testutil.ToFloat64(collector.interruptions))
}

func TestCollector_RecordSynthSegment(t *testing.T) {
	logger := zap.NewNop()
	collector := NewCollector(nextTestNamespace(), logger)

	collector.RecordSynthSegment("completed", 200*time.Millisecond)
	collector.RecordSynthSegment("canceled", 50*time.Millisecond)
	collector.RecordSynthSegment("failed", 10*time.Millisecond)

	count := testutil.CollectAndCount(collector.synthSegmentsTotal)
	assert.Equal(t, 3, count)
}

func TestCollector_RecordQueueDropped(t *testing.T) {
	logger := zap.NewNop()
	collector := NewCollector(nextTestNamespace(), logger)

	collector.RecordQueueDropped(3)
	collector.RecordQueueDropped(0) // 不应该计入

	assert.Equal(t, 3.0, testutil.ToFloat64(collector.queueDropped))
}

func TestCollector_RecordTranscript(t *testing.T) {
	logger := zap.NewNop()
	collector := NewCollector(nextTestNamespace(), logger)

	collector.RecordTranscript("partial")
	collector.RecordTranscript("partial")
	collector.RecordTranscript("final")

	count := testutil.CollectAndCount(collector.transcriptEvents)
	assert.Equal(t, 2, count)
}

func TestCollector_RecordReplyStream(t *testing.T) {
	logger := zap.NewNop()
	collector := NewCollector(nextTestNamespace(), logger)

	collector.RecordReplyStream("success", 2*time.Second)
	collector.RecordReplyStream("error", 100*time.Millisecond)

	count := testutil.CollectAndCount(collector.replyStreamsTotal)
	assert.Equal(t, 2, count)
}

func TestCollector_ConcurrentRecording(t *testing.T) {
	logger := zap.NewNop()
	collector := NewCollector(nextTestNamespace(), logger)

	// 并发记录多个指标
	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func() {
			collector.SessionStarted()
			collector.RecordTurn("audio", "completed", 100*time.Millisecond)
			collector.RecordSynthSegment("completed", 50*time.Millisecond)
			done <- true
		}()
	}

	// 等待所有 goroutine 完成
	for i := 0; i < 10; i++ {
		<-done
	}

	assert.Equal(t, 10.0, testutil.ToFloat64(collector.sessionsTotal))
	assert.Equal(t, 10.0, testutil.ToFloat64(collector.synthSegmentsTotal.WithLabelValues("completed")))
}
