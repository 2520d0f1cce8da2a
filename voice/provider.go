package voice

import (
	"context"
	"encoding/json"
	"time"
)

// =============================================================================
// 🎙️ 上游接口
// =============================================================================

// TranscriptKind 标识转写事件类型。
type TranscriptKind int

const (
	// TranscriptPartial 中间转写结果
	TranscriptPartial TranscriptKind = iota
	// TranscriptFinal 一句话的最终转写结果
	TranscriptFinal
	// TranscriptError 上游流异常
	TranscriptError
)

// RecognitionEvent 是识别流推送的单个事件。
type RecognitionEvent struct {
	Kind TranscriptKind
	Text string
	Err  error
}

// Recognizer 负责建立上游流式语音识别连接。
// 连接是惰性的：网关收到第一个音频帧时才调用 Open。
type Recognizer interface {
	Open(ctx context.Context) (RecognitionStream, error)
}

// RecognitionStream 是一条已建立的识别流。
// Events 通道关闭表示上游流结束（正常或异常均可）。
type RecognitionStream interface {
	// SendAudio 转发一帧 PCM 音频
	SendAudio(ctx context.Context, pcm []byte) error
	// SendEnd 通知上游本段语音结束
	SendEnd(ctx context.Context) error
	// Events 返回转写事件通道
	Events() <-chan RecognitionEvent
	// Close 关闭上游连接
	Close() error
}

// SynthesisRequest 描述一次分段合成。
type SynthesisRequest struct {
	Text  string
	Codec string
}

// SynthesisChunk 是合成流推送的单个分片：
// Audio 为音频数据，Meta 为上游元信息（字幕等），Err 为流异常。
type SynthesisChunk struct {
	Audio []byte
	Meta  json.RawMessage
	Err   error
}

// Synthesizer 负责流式语音合成。
type Synthesizer interface {
	Synthesize(ctx context.Context, req SynthesisRequest) (SynthesisStream, error)
}

// SynthesisStream 是一条已建立的合成流。
// Chunks 通道关闭且未出现 Err 表示合成完整结束。
type SynthesisStream interface {
	Chunks() <-chan SynthesisChunk
	Close() error
}

// DeltaKind 标识回复增量类型。
type DeltaKind int

const (
	// DeltaReply 正式回复内容
	DeltaReply DeltaKind = iota
	// DeltaThought 思考过程内容
	DeltaThought
)

// ReplyDelta 是智能体回复流的单个增量。
type ReplyDelta struct {
	Kind    DeltaKind
	Content string
	Err     error
}

// ReplyRequest 描述一轮智能体对话请求。
type ReplyRequest struct {
	SessionID    string
	VisitorBizID string
	BotAppKey    string
	Content      string
	Throttle     int
}

// Replier 负责智能体回复流。
// 返回的通道在流结束后关闭；流中异常通过 ReplyDelta.Err 传递。
type Replier interface {
	Stream(ctx context.Context, req ReplyRequest) (<-chan ReplyDelta, error)
}

// Providers 汇集会话依赖的三个上游实现。
type Providers struct {
	Recognizer  Recognizer
	Synthesizer Synthesizer
	Replier     Replier
}

// =============================================================================
// 📊 指标接口
// =============================================================================

// Recorder 接收会话编排过程中的指标事件。
type Recorder interface {
	SessionStarted()
	SessionEnded()
	RecordTurn(input, status string, duration time.Duration)
	RecordInterruption()
	RecordRecognizerDial(status string)
	RecordTranscript(kind string)
	RecordSynthSegment(status string, duration time.Duration)
	RecordQueueDropped(n int)
	RecordReplyStream(status string, duration time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) SessionStarted()                          {}
func (nopRecorder) SessionEnded()                            {}
func (nopRecorder) RecordTurn(string, string, time.Duration) {}
func (nopRecorder) RecordInterruption()                      {}
func (nopRecorder) RecordRecognizerDial(string)              {}
func (nopRecorder) RecordTranscript(string)                  {}
func (nopRecorder) RecordSynthSegment(string, time.Duration) {}
func (nopRecorder) RecordQueueDropped(int)                   {}
func (nopRecorder) RecordReplyStream(string, time.Duration)  {}

// NopRecorder 返回不做任何记录的 Recorder，用于测试或禁用指标。
func NopRecorder() Recorder { return nopRecorder{} }
