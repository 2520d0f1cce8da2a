package voice

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// =============================================================================
// 🔌 连接抽象
// =============================================================================

// MessageKind 标识一个 WebSocket 消息的类型。
type MessageKind int

const (
	// MessageText JSON 控制帧
	MessageText MessageKind = iota + 1
	// MessageBinary 音频帧
	MessageBinary
)

// Conn 抽象一条客户端连接。写方法必须可被多个 goroutine
// 并发调用；Read 只由会话的读循环调用。
type Conn interface {
	Read(ctx context.Context) (MessageKind, []byte, error)
	WriteText(ctx context.Context, data []byte) error
	WriteBinary(ctx context.Context, data []byte) error
}

// =============================================================================
// 🎛️ 会话编排器
// =============================================================================

// Options 控制会话行为，通常来自 config.VoiceConfig。
type Options struct {
	// 默认回复模式: audio, text
	DefaultReplyMode string
	// 默认流式节流值
	DefaultThrottle int
	// 默认合成编码
	DefaultCodec string
	// init app=="s" 时使用的 bot_app_key
	PrimaryBotKey string
	// 其余情况使用的 bot_app_key
	SecondaryBotKey string
	// 入站音频限速（字节/秒，0 表示不限速）
	AudioRateLimit int
	// 入站音频突发量（字节）
	AudioRateBurst int
}

// Session 编排单个客户端连接的完整生命周期：
// 读循环分发控制帧与音频帧，识别流触发对话轮次，
// 合成工作协程串行消费分段任务。
type Session struct {
	id        string
	opts      Options
	logger    *zap.Logger
	rec       Recorder
	conn      Conn
	providers Providers

	queue   *jobQueue
	limiter *rate.Limiter

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// mu 保护 init 注入的会话参数、分句缓冲与打断流程
	mu             sync.Mutex
	sessionID      string
	visitorBizID   string
	botKey         string
	throttle       int
	codec          string
	replyMode      string
	inputMode      string
	segBuf         string
	filter         blockFilter
	lastTranscript string
	replying       bool

	// 轮次状态：turnSeq 只由 StartTurn 递增
	turnSeq atomic.Int64
	cur     atomic.Pointer[turn]

	// 分段序号，会话内单调递增
	seq atomic.Int64

	// 进行中的合成任务
	taskMu sync.Mutex
	task   *synthTask

	// 惰性建立的上游识别流
	recogMu sync.Mutex
	recog   RecognitionStream
}

// NewSession 创建会话。rec 传 nil 时禁用指标。
func NewSession(id string, conn Conn, providers Providers, opts Options, rec Recorder, logger *zap.Logger) *Session {
	if rec == nil {
		rec = NopRecorder()
	}
	s := &Session{
		id:        id,
		opts:      opts,
		logger:    logger.With(zap.String("component", "voice_session"), zap.String("session", id)),
		rec:       rec,
		conn:      conn,
		providers: providers,
		queue:     newJobQueue(),
		throttle:  opts.DefaultThrottle,
		codec:     opts.DefaultCodec,
		replyMode: opts.DefaultReplyMode,
		inputMode: InputAudio,
	}
	if opts.AudioRateLimit > 0 {
		burst := opts.AudioRateBurst
		if burst <= 0 {
			burst = opts.AudioRateLimit
		}
		s.limiter = rate.NewLimiter(rate.Limit(opts.AudioRateLimit), burst)
	}
	return s
}

// Run 驱动会话直到客户端断开或发生致命错误。
// 返回时所有会话 goroutine 均已退出，上游连接均已关闭。
func (s *Session) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.ctx = ctx
	s.cancel = cancel
	defer cancel()

	s.rec.SessionStarted()
	defer s.rec.SessionEnded()
	s.logger.Info("session started")

	if !s.sendFrame(ctx, ServerFrame{Type: FrameReady}) {
		return
	}

	s.wg.Add(1)
	go s.runWorker()

	s.readLoop(ctx)

	// 拆除：取消所有派生 context，打断进行中的合成，
	// 关闭识别流，停止工作协程，等待全部 goroutine 退出
	cancel()
	s.mu.Lock()
	s.interruptLocked(InterruptSessionClosed)
	s.mu.Unlock()
	s.closeRecognizer()
	s.queue.Push(newShutdownJob())
	s.wg.Wait()

	s.logger.Info("session closed")
}

// readLoop 读取客户端帧并分发，直到连接关闭。
func (s *Session) readLoop(ctx context.Context) {
	for {
		kind, data, err := s.conn.Read(ctx)
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Info("client disconnected", zap.Error(err))
			}
			return
		}
		switch kind {
		case MessageText:
			s.handleControl(data)
		case MessageBinary:
			s.handleAudio(data)
		}
	}
}

// =============================================================================
// 🎮 控制帧处理
// =============================================================================

func (s *Session) handleControl(data []byte) {
	var f ClientFrame
	if err := json.Unmarshal(data, &f); err != nil {
		// 畸形帧只记录，不影响会话
		s.logger.Warn("malformed control frame ignored", zap.Error(err))
		return
	}

	switch f.Type {
	case FrameInit:
		s.handleInit(f)
	case FrameText:
		s.StartTurn(InputText, f.Content)
	case FrameAudio:
		s.enterAudioMode()
	case FrameEnd:
		s.handleEnd()
	default:
		s.logger.Warn("unknown control frame ignored", zap.String("type", f.Type))
	}
}

func (s *Session) handleInit(f ClientFrame) {
	s.mu.Lock()
	s.sessionID = f.SessionID
	s.visitorBizID = f.VisitorBizID
	if f.App == "s" {
		s.botKey = s.opts.PrimaryBotKey
	} else {
		s.botKey = s.opts.SecondaryBotKey
	}
	if f.StreamingThrottle > 0 {
		s.throttle = f.StreamingThrottle
	}
	if f.TTSCodec != "" {
		s.codec = f.TTSCodec
	}
	if f.InputMode != "" {
		s.inputMode = f.InputMode
	}
	if f.ReplyMode != "" {
		s.replyMode = f.ReplyMode
	}
	s.mu.Unlock()

	s.sendFrame(s.ctx, ServerFrame{Type: FrameInitOK})
	s.logger.Info("session initialized",
		zap.String("peer_session", f.SessionID),
		zap.String("app", f.App),
		zap.String("codec", s.codecValue()),
		zap.String("reply_mode", s.replyModeValue()),
	)
}

// enterAudioMode 切换到音频输入并打断当前回复。
func (s *Session) enterAudioMode() {
	s.mu.Lock()
	s.inputMode = InputAudio
	s.interruptLocked(InterruptAudioInput)
	s.mu.Unlock()
	s.ensureRecognizer()
}

func (s *Session) handleEnd() {
	s.recogMu.Lock()
	stream := s.recog
	s.recogMu.Unlock()
	if stream == nil {
		return
	}
	if err := stream.SendEnd(s.ctx); err != nil {
		s.logger.Warn("forwarding end of utterance failed", zap.Error(err))
	}
}

// =============================================================================
// 🎙️ 音频帧处理与识别流
// =============================================================================

func (s *Session) handleAudio(data []byte) {
	if len(data) == 0 {
		return
	}
	s.mu.Lock()
	mode := s.inputMode
	s.mu.Unlock()
	if mode != InputAudio {
		s.logger.Warn("binary frame rejected outside audio input mode", zap.Int("bytes", len(data)))
		s.sendError("binary frame rejected, input_mode is " + mode)
		return
	}

	if s.limiter != nil && len(data) <= s.limiter.Burst() {
		if err := s.limiter.WaitN(s.ctx, len(data)); err != nil {
			return
		}
	}

	stream := s.ensureRecognizer()
	if stream == nil {
		return
	}
	if err := stream.SendAudio(s.ctx, data); err != nil {
		// 上游断开是可恢复的：丢弃句柄，下一帧重新拨号
		s.logger.Warn("upstream audio send failed", zap.Error(err))
		s.sendError("receive_failed: " + err.Error())
		s.dropRecognizer(stream)
	}
}

// ensureRecognizer 惰性建立上游识别流。
func (s *Session) ensureRecognizer() RecognitionStream {
	s.recogMu.Lock()
	defer s.recogMu.Unlock()
	if s.recog != nil {
		return s.recog
	}

	stream, err := s.providers.Recognizer.Open(s.ctx)
	if err != nil {
		s.rec.RecordRecognizerDial("error")
		s.logger.Warn("recognizer dial failed", zap.Error(err))
		s.sendError("asr_connect_failed: " + err.Error())
		return nil
	}
	s.rec.RecordRecognizerDial("success")
	s.logger.Info("recognizer connected")

	s.recog = stream
	s.wg.Add(1)
	go s.consumeTranscripts(stream)
	return stream
}

// consumeTranscripts 消费一条识别流的事件直到其结束。
func (s *Session) consumeTranscripts(stream RecognitionStream) {
	defer s.wg.Done()

	for ev := range stream.Events() {
		switch ev.Kind {
		case TranscriptError:
			s.logger.Warn("recognizer stream error", zap.Error(ev.Err))
			s.sendError("tencent ws closed")

		case TranscriptPartial:
			s.rec.RecordTranscript("partial")
			s.mu.Lock()
			s.lastTranscript = ev.Text
			s.mu.Unlock()
			s.sendFrame(s.ctx, ServerFrame{Type: FrameASRPartial, Text: ev.Text})

		case TranscriptFinal:
			s.rec.RecordTranscript("final")
			text := strings.TrimSpace(ev.Text)
			s.mu.Lock()
			if text == "" {
				// 空的最终结果回退到最近一次中间结果
				text = strings.TrimSpace(s.lastTranscript)
			}
			s.lastTranscript = ""
			s.mu.Unlock()

			s.sendFrame(s.ctx, ServerFrame{Type: FrameASRFinal, Text: text})
			if text == "" {
				s.sendError("empty final_text")
				continue
			}
			s.StartTurn(InputAudio, text)
		}
	}

	// 上游流结束；下一个音频帧会重新建立连接
	s.dropRecognizer(stream)
	s.logger.Info("recognizer stream ended")
}

func (s *Session) dropRecognizer(stream RecognitionStream) {
	s.recogMu.Lock()
	if s.recog == stream {
		s.recog = nil
	}
	s.recogMu.Unlock()
	stream.Close()
}

func (s *Session) closeRecognizer() {
	s.recogMu.Lock()
	stream := s.recog
	s.recog = nil
	s.recogMu.Unlock()
	if stream != nil {
		stream.Close()
	}
}

// =============================================================================
// 📤 出站帧
// =============================================================================

// sendFrame 发送一个 JSON 通知帧。写客户端失败是致命错误，
// 直接取消整个会话。
func (s *Session) sendFrame(ctx context.Context, f ServerFrame) bool {
	data, err := json.Marshal(f)
	if err != nil {
		s.logger.Error("frame marshal failed", zap.Error(err))
		return false
	}
	if err := s.conn.WriteText(ctx, data); err != nil {
		s.logger.Warn("client write failed", zap.String("type", f.Type), zap.Error(err))
		if s.cancel != nil {
			s.cancel()
		}
		return false
	}
	return true
}

func (s *Session) sendError(detail string) {
	s.sendFrame(s.ctx, ServerFrame{Type: FrameError, Detail: detail})
}

func (s *Session) codecValue() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.codec
}

func (s *Session) replyModeValue() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replyMode
}
