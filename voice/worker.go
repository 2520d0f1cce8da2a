package voice

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// =============================================================================
// 🔊 合成工作协程
// =============================================================================

// synthTask 是一个进行中的合成任务的控制句柄。
// cancel 请求中止，done 在任务完全退出后关闭。
type synthTask struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// runWorker 串行消费合成队列，直到收到 Shutdown 或会话结束。
func (s *Session) runWorker() {
	defer s.wg.Done()

	for {
		job, err := s.queue.Pop(s.ctx)
		if err != nil {
			return
		}

		switch job.kind {
		case jobShutdown:
			return

		case jobTurnEnd:
			// 只有当前轮的 TurnEnd 才释放排空等待，过期的直接丢弃
			if t := s.cur.Load(); t != nil && t.id == job.turnID {
				t.finish()
			}

		case jobSegment:
			if s.turnSeq.Load() != job.turnID {
				s.rec.RecordSynthSegment("stale", 0)
				continue
			}
			s.speakSegment(job)
		}
	}
}

// speakSegment 合成一个分段并把音频流式推给客户端。
// 分段失败不致命：发 error 帧后继续消费队列。
func (s *Session) speakSegment(job synthJob) {
	if job.ctx.Err() != nil {
		s.rec.RecordSynthSegment("stale", 0)
		return
	}

	seq := s.seq.Add(1)
	start := time.Now()
	log := s.logger.With(zap.Int64("seq", seq), zap.Int64("turn", job.turnID))

	if !s.sendFrame(s.ctx, ServerFrame{Type: FrameTTSStart, Seq: seq, Text: job.text}) {
		return
	}

	jobCtx, cancel := context.WithCancel(job.ctx)
	task := &synthTask{cancel: cancel, done: make(chan struct{})}
	s.taskMu.Lock()
	s.task = task
	s.taskMu.Unlock()
	defer func() {
		s.taskMu.Lock()
		if s.task == task {
			s.task = nil
		}
		s.taskMu.Unlock()
		close(task.done)
		cancel()
	}()

	stream, err := s.providers.Synthesizer.Synthesize(jobCtx, SynthesisRequest{Text: job.text, Codec: job.codec})
	if err != nil {
		log.Warn("synthesis failed to open", zap.Error(err))
		s.sendError("tts_failed: " + err.Error())
		s.rec.RecordSynthSegment("failed", time.Since(start))
		return
	}
	defer stream.Close()

	failed := false
loop:
	for {
		var chunk SynthesisChunk
		var ok bool
		select {
		case chunk, ok = <-stream.Chunks():
			if !ok {
				break loop
			}
		case <-jobCtx.Done():
			break loop
		}
		if chunk.Err != nil {
			log.Warn("synthesis stream error", zap.Error(chunk.Err))
			s.sendError("tts_failed: " + chunk.Err.Error())
			failed = true
			break
		}
		if len(chunk.Audio) > 0 {
			if err := s.conn.WriteBinary(jobCtx, chunk.Audio); err != nil {
				if jobCtx.Err() != nil {
					break
				}
				log.Warn("client audio write failed", zap.Error(err))
				s.cancel()
				s.rec.RecordSynthSegment("failed", time.Since(start))
				return
			}
		}
		if len(chunk.Meta) > 0 {
			s.sendFrame(s.ctx, ServerFrame{Type: FrameTTSMeta, Seq: seq, Meta: chunk.Meta})
		}
	}

	switch {
	case jobCtx.Err() != nil:
		// 被打断：不发 tts_done
		log.Debug("synthesis canceled")
		s.rec.RecordSynthSegment("canceled", time.Since(start))
	case failed:
		s.rec.RecordSynthSegment("failed", time.Since(start))
	default:
		s.sendFrame(s.ctx, ServerFrame{Type: FrameTTSDone, Seq: seq})
		s.rec.RecordSynthSegment("completed", time.Since(start))
	}
}
