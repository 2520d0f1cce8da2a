// Package tts 封装腾讯云流式语音合成的 WebSocket 接口。
//
// 每次 Synthesize 建立一条合成连接：二进制帧是音频数据，
// 文本帧是 JSON 元信息（字幕、错误、结束标记）。final=1 表示
// 本条合成流结束。
package tts

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/prayhard/soutui/config"
	"github.com/prayhard/soutui/internal/tencentsign"
	"github.com/prayhard/soutui/internal/tlsutil"
	"github.com/prayhard/soutui/types"
	"github.com/prayhard/soutui/voice"
)

const (
	// Host 是合成服务的接入域名
	Host   = "tts.cloud.tencent.com"
	path   = "/stream_ws"
	action = "TextToStreamAudioWS"
)

// Client 按配置签名并建立合成连接，实现 voice.Synthesizer。
type Client struct {
	cfg    config.TTSConfig
	logger *zap.Logger
}

// NewClient 创建合成客户端。
func NewClient(cfg config.TTSConfig, logger *zap.Logger) *Client {
	return &Client{
		cfg:    cfg,
		logger: logger.With(zap.String("component", "tencent_tts")),
	}
}

// signedURL 构造带签名的连接地址。
// 待签名串是 "GET" + host + path + 按键名排序的原始查询串；
// 最终 URL 里 Text 与 Signature 各转义一次。
func (c *Client) signedURL(text, codec, sessionID string) string {
	now := time.Now().Unix()
	params := map[string]string{
		"Action":         action,
		"AppId":          c.cfg.AppID,
		"Codec":          codec,
		"EnableSubtitle": "True",
		"Expired":        strconv.FormatInt(now+int64(c.cfg.Expiry.Seconds()), 10),
		"SampleRate":     strconv.Itoa(c.cfg.SampleRate),
		"SecretId":       c.cfg.SecretID,
		"SessionId":      sessionID,
		"Speed":          strconv.Itoa(c.cfg.Speed),
		"Text":           text,
		"Timestamp":      strconv.FormatInt(now, 10),
		"VoiceType":      strconv.Itoa(c.cfg.VoiceType),
		"Volume":         strconv.Itoa(c.cfg.Volume),
	}

	signStr := "GET" + Host + path + "?" + tencentsign.Query(params)
	sig := tencentsign.Signature(c.cfg.SecretKey, signStr)

	params["Text"] = tencentsign.Escape(text)
	return fmt.Sprintf("wss://%s%s?%s&Signature=%s",
		Host, path, tencentsign.Query(params), tencentsign.Escape(sig))
}

// Synthesize 对一段文本建立合成流。
func (c *Client) Synthesize(ctx context.Context, req voice.SynthesisRequest) (voice.SynthesisStream, error) {
	codec := req.Codec
	if codec == "" {
		codec = c.cfg.DefaultCodec
	}
	sessionID := uuid.NewString()

	dialCtx := ctx
	if c.cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, c.cfg.DialTimeout)
		defer cancel()
	}

	conn, _, err := websocket.Dial(dialCtx, c.signedURL(req.Text, codec, sessionID), &websocket.DialOptions{
		HTTPClient: tlsutil.WebSocketHTTPClient(),
	})
	if err != nil {
		return nil, types.NewError(types.ErrServiceUnavailable, "tts dial failed").
			WithProvider("tencent_tts").
			WithRetryable(true).
			WithCause(err)
	}

	c.logger.Debug("合成连接已建立",
		zap.String("session_id", sessionID),
		zap.String("codec", codec),
		zap.Int("text_len", len(req.Text)))

	st := &stream{
		conn:   conn,
		chunks: make(chan voice.SynthesisChunk, 16),
		closed: make(chan struct{}),
	}
	go st.readLoop()
	return st, nil
}

// serverMeta 是上游文本帧的元信息。
type serverMeta struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Final   int    `json:"final"`
}

// stream 是一条活跃的合成连接。
type stream struct {
	conn      *websocket.Conn
	chunks    chan voice.SynthesisChunk
	closed    chan struct{}
	closeOnce sync.Once
}

func (s *stream) Chunks() <-chan voice.SynthesisChunk {
	return s.chunks
}

// Close 关闭上游连接。消费方可能在打断后不再读取 Chunks，
// closed 用于解除 readLoop 的推送阻塞。
func (s *stream) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.conn.Close(websocket.StatusNormalClosure, "")
	})
	return nil
}

// emit 推送一个分片，消费方已放弃时返回 false。
func (s *stream) emit(chunk voice.SynthesisChunk) bool {
	select {
	case s.chunks <- chunk:
		return true
	case <-s.closed:
		return false
	}
}

// readLoop 持续读取合成分片直到流结束或连接断开。
func (s *stream) readLoop() {
	defer close(s.chunks)
	defer s.Close()

	for {
		typ, data, err := s.conn.Read(context.Background())
		if err != nil {
			s.emit(voice.SynthesisChunk{
				Err: types.NewError(types.ErrUpstreamClosed, "tts connection lost").
					WithProvider("tencent_tts").
					WithCause(err),
			})
			return
		}

		if typ == websocket.MessageBinary {
			if !s.emit(voice.SynthesisChunk{Audio: data}) {
				return
			}
			continue
		}

		var meta serverMeta
		if err := json.Unmarshal(data, &meta); err != nil {
			continue
		}
		if meta.Code != 0 {
			s.emit(voice.SynthesisChunk{
				Err: types.NewError(types.ErrUpstreamError,
					fmt.Sprintf("tts error: %d %s", meta.Code, meta.Message)).
					WithProvider("tencent_tts"),
			})
			return
		}
		if meta.Final == 1 {
			return
		}
		if !s.emit(voice.SynthesisChunk{Meta: json.RawMessage(data)}) {
			return
		}
	}
}
