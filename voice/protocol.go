package voice

import "encoding/json"

// =============================================================================
// 📡 客户端协议帧
// =============================================================================

// 入站控制帧类型
const (
	FrameInit  = "init"
	FrameText  = "text"
	FrameAudio = "audio"
	FrameEnd   = "end"
)

// 出站通知帧类型
const (
	FrameReady          = "ready"
	FrameInitOK         = "init_ok"
	FrameASRPartial     = "asr_partial"
	FrameASRFinal       = "asr_final"
	FrameBotStart       = "bot_start"
	FrameBotDelta       = "bot_delta"
	FrameBotDone        = "bot_done"
	FrameTTSStart       = "tts_start"
	FrameTTSMeta        = "tts_meta"
	FrameTTSDone        = "tts_done"
	FrameTTSInterrupted = "tts_interrupted"
	FrameError          = "error"
)

// 输入来源
const (
	InputText  = "text"
	InputAudio = "audio"
)

// 回复模式
const (
	ReplyModeText  = "text"
	ReplyModeAudio = "audio"
)

// tts_interrupted 的触发原因
const (
	InterruptNewText       = "new_text"
	InterruptNewTranscript = "new_transcript"
	InterruptAudioInput    = "audio_input"
	InterruptSessionClosed = "session_closed"
)

// ClientFrame 是客户端发来的 JSON 控制帧。
// 二进制帧不经过此结构，直接作为 PCM 音频转发。
type ClientFrame struct {
	Type string `json:"type"`

	// init 专用字段
	SessionID         string `json:"session_id,omitempty"`
	VisitorBizID      string `json:"visitor_biz_id,omitempty"`
	App               string `json:"app,omitempty"`
	StreamingThrottle int    `json:"streaming_throttle,omitempty"`
	TTSCodec          string `json:"tts_codec,omitempty"`
	InputMode         string `json:"input_mode,omitempty"`
	ReplyMode         string `json:"reply_mode,omitempty"`

	// text 专用字段
	Content string `json:"content,omitempty"`
}

// ServerFrame 是服务端推送的 JSON 通知帧。
// 合成音频以二进制帧发送，夹在同一 seq 的 tts_start 与 tts_done 之间。
type ServerFrame struct {
	Type   string          `json:"type"`
	Text   string          `json:"text,omitempty"`
	Delta  string          `json:"delta,omitempty"`
	Seq    int64           `json:"seq,omitempty"`
	Meta   json.RawMessage `json:"meta,omitempty"`
	Reason string          `json:"reason,omitempty"`
	Detail string          `json:"detail,omitempty"`
}
