package voice

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// =============================================================================
// 🔄 对话轮次
// =============================================================================

// turn 表示一轮对话。done 在本轮合成排空（或被强制释放）时
// 关闭；cancel 取消本轮派生的上游回复流。
type turn struct {
	id      int64
	input   string
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	once    sync.Once
	started time.Time
}

// finish 释放排空等待，可安全多次调用。
func (t *turn) finish() {
	t.once.Do(func() { close(t.done) })
}

// StartTurn 打断当前回复并以给定文本开启新一轮对话。
// input 标记触发来源（text 或 audio），决定打断原因并用于日志与指标。
func (s *Session) StartTurn(input, content string) {
	content = strings.TrimSpace(content)
	if content == "" {
		return
	}

	reason := InterruptNewText
	if input == InputAudio {
		reason = InterruptNewTranscript
	}

	s.mu.Lock()
	if s.sessionID == "" || s.visitorBizID == "" {
		s.mu.Unlock()
		s.sendError("missing session_id / visitor_biz_id, please send init first")
		return
	}

	s.interruptLocked(reason)

	tctx, tcancel := context.WithCancel(s.ctx)
	t := &turn{
		id:      s.turnSeq.Add(1),
		input:   input,
		ctx:     tctx,
		cancel:  tcancel,
		done:    make(chan struct{}),
		started: time.Now(),
	}
	s.cur.Store(t)
	s.replying = true

	req := ReplyRequest{
		SessionID:    s.sessionID,
		VisitorBizID: s.visitorBizID,
		BotAppKey:    s.botKey,
		Content:      content,
		Throttle:     s.throttle,
	}
	replyMode := s.replyMode
	s.mu.Unlock()

	s.wg.Add(1)
	go s.runTurn(t, req, replyMode)
}

// interruptLocked 执行打断：排空合成队列，取消并等待进行中的
// 合成任务，清空分句缓冲与过滤器状态，强制释放上一轮的排空
// 等待。若确实打断了正在进行的回复，向客户端发带触发原因的
// tts_interrupted。调用方必须持有 s.mu。
func (s *Session) interruptLocked(reason string) {
	dropped := s.queue.Drain()
	s.rec.RecordQueueDropped(len(dropped))

	s.taskMu.Lock()
	task := s.task
	s.taskMu.Unlock()
	if task != nil {
		task.cancel()
		<-task.done
	}

	interrupted := s.replying || task != nil || len(dropped) > 0

	s.segBuf = ""
	s.filter.reset()

	if t := s.cur.Load(); t != nil {
		t.cancel()
		t.finish()
	}

	if interrupted {
		s.rec.RecordInterruption()
		s.sendFrame(s.ctx, ServerFrame{Type: FrameTTSInterrupted, Reason: reason})
		s.logger.Info("reply interrupted",
			zap.String("reason", reason),
			zap.Int("dropped_jobs", len(dropped)))
	}
}

// runTurn 消费一轮智能体回复流：文本增量直接推给客户端，
// 音频模式下同时切句入队合成，流结束后等待合成排空。
func (s *Session) runTurn(t *turn, req ReplyRequest, replyMode string) {
	defer s.wg.Done()
	defer t.cancel()

	log := s.logger.With(zap.Int64("turn", t.id))
	log.Info("turn started", zap.String("input", t.input))

	if !s.sendFrame(s.ctx, ServerFrame{Type: FrameBotStart}) {
		s.finishTurn(t, "failed", log)
		return
	}

	streamStart := time.Now()
	deltas, err := s.providers.Replier.Stream(t.ctx, req)
	if err != nil {
		log.Warn("reply stream failed to open", zap.Error(err))
		s.sendError("adp_failed: " + err.Error())
		s.rec.RecordReplyStream("error", time.Since(streamStart))
		s.finishTurn(t, "failed", log)
		return
	}

	aborted := false
	for d := range deltas {
		if d.Err != nil {
			log.Warn("reply stream error", zap.Error(d.Err))
			s.sendError("adp_failed: " + d.Err.Error())
			aborted = true
			break
		}
		if s.turnSeq.Load() != t.id {
			// 已被新一轮取代
			break
		}
		if d.Kind == DeltaThought {
			// 思考过程只在文本模式下透传，永不合成
			if replyMode == ReplyModeText {
				s.sendFrame(s.ctx, ServerFrame{Type: FrameBotDelta, Delta: d.Content})
			}
			continue
		}
		if !s.sendFrame(s.ctx, ServerFrame{Type: FrameBotDelta, Delta: d.Content}) {
			aborted = true
			break
		}
		if replyMode == ReplyModeAudio {
			s.enqueueSpeech(t, d.Content)
		}
	}

	if aborted {
		s.rec.RecordReplyStream("error", time.Since(streamStart))
	} else {
		s.rec.RecordReplyStream("success", time.Since(streamStart))
	}

	if replyMode == ReplyModeAudio {
		if !aborted {
			s.flushSpeech(t)
		}
		// 出错时同样等排空：出错前入队的分段照常播完，
		// 客户端不会被晾着
		s.queue.Push(newTurnEndJob(t.id))
		select {
		case <-t.done:
		case <-s.ctx.Done():
		}
	}

	s.mu.Lock()
	if cur := s.cur.Load(); cur != nil && cur.id == t.id {
		s.replying = false
	}
	s.mu.Unlock()

	switch {
	case aborted:
		s.finishTurn(t, "failed", log)
	case s.turnSeq.Load() != t.id:
		// 过期轮次不发 bot_done
		s.finishTurn(t, "superseded", log)
	default:
		s.sendFrame(s.ctx, ServerFrame{Type: FrameBotDone})
		s.finishTurn(t, "completed", log)
	}
}

func (s *Session) finishTurn(t *turn, status string, log *zap.Logger) {
	t.finish()
	s.rec.RecordTurn(t.input, status, time.Since(t.started))
	log.Info("turn finished", zap.String("status", status))
}

// enqueueSpeech 把回复增量过滤、切句后入队合成。
func (s *Session) enqueueSpeech(t *turn, delta string) {
	s.mu.Lock()
	if s.turnSeq.Load() != t.id {
		s.mu.Unlock()
		return
	}
	speakable := s.filter.feed(delta)
	var segments []string
	s.segBuf, segments = segmentFeed(s.segBuf, speakable)
	codec := s.codec
	s.mu.Unlock()

	for _, seg := range segments {
		s.queue.Push(newSegmentJob(t.ctx, t.id, seg, codec))
	}
}

// flushSpeech 在回复流结束后把缓冲里残留的半句作为最后一段入队。
func (s *Session) flushSpeech(t *turn) {
	s.mu.Lock()
	if s.turnSeq.Load() != t.id {
		s.mu.Unlock()
		return
	}
	seg, ok := segmentFlush(s.segBuf)
	s.segBuf = ""
	codec := s.codec
	s.mu.Unlock()

	if ok {
		s.queue.Push(newSegmentJob(t.ctx, t.id, seg, codec))
	}
}
