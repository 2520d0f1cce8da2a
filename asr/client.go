// Package asr 封装腾讯云实时语音识别的 WebSocket 流式接口。
//
// 每次 Open 建立一条识别连接，音频以二进制帧推送，识别结果
// 以文本帧返回。上游按 slice_type 区分中间结果与稳定结果，
// final=1 表示本次识别流结束。
package asr

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

// Host 是识别服务的接入域名。
const Host = "asr.cloud.tencent.com"

// Client 按配置签名并建立识别连接，实现 voice.Recognizer。
type Client struct {
	cfg    config.ASRConfig
	logger *zap.Logger
}

// NewClient 创建识别客户端。
func NewClient(cfg config.ASRConfig, logger *zap.Logger) *Client {
	return &Client{
		cfg:    cfg,
		logger: logger.With(zap.String("component", "tencent_asr")),
	}
}

// signedURL 构造带签名的连接地址。
// 待签名串是 host + path + 排序后的原始查询串，不含协议前缀。
func (c *Client) signedURL(voiceID string) string {
	now := time.Now().Unix()
	params := map[string]string{
		"secretid":          c.cfg.SecretID,
		"timestamp":         strconv.FormatInt(now, 10),
		"expired":           strconv.FormatInt(now+int64(c.cfg.Expiry.Seconds()), 10),
		"nonce":             strconv.FormatInt(now, 10),
		"engine_model_type": c.cfg.EngineModelType,
		"voice_id":          voiceID,
		"voice_format":      strconv.Itoa(c.cfg.VoiceFormat),
	}
	if c.cfg.NeedVAD {
		params["needvad"] = "1"
	}

	query := tencentsign.Query(params)
	signStr := fmt.Sprintf("%s/asr/v2/%s?%s", Host, c.cfg.AppID, query)
	sig := tencentsign.Signature(c.cfg.SecretKey, signStr)

	return fmt.Sprintf("wss://%s/asr/v2/%s?%s&signature=%s",
		Host, c.cfg.AppID, query, tencentsign.Escape(sig))
}

// Open 建立一条识别连接并完成握手。
func (c *Client) Open(ctx context.Context) (voice.RecognitionStream, error) {
	voiceID := uuid.NewString()

	dialCtx := ctx
	if c.cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, c.cfg.DialTimeout)
		defer cancel()
	}

	conn, _, err := websocket.Dial(dialCtx, c.signedURL(voiceID), &websocket.DialOptions{
		HTTPClient: tlsutil.WebSocketHTTPClient(),
	})
	if err != nil {
		return nil, types.NewError(types.ErrServiceUnavailable, "asr dial failed").
			WithProvider("tencent_asr").
			WithRetryable(true).
			WithCause(err)
	}

	// 握手应答：第一条文本帧带 code，非 0 表示鉴权或参数错误
	_, data, err := conn.Read(dialCtx)
	if err != nil {
		conn.Close(websocket.StatusNormalClosure, "")
		return nil, types.NewError(types.ErrUpstreamClosed, "asr handshake read failed").
			WithProvider("tencent_asr").
			WithCause(err)
	}
	var hs serverMessage
	if err := json.Unmarshal(data, &hs); err != nil {
		conn.Close(websocket.StatusNormalClosure, "")
		return nil, types.NewError(types.ErrUpstreamError, "asr handshake malformed").
			WithProvider("tencent_asr").
			WithCause(err)
	}
	if hs.Code != 0 {
		conn.Close(websocket.StatusNormalClosure, "")
		return nil, types.NewError(types.ErrUpstreamError,
			fmt.Sprintf("asr handshake rejected: %d %s", hs.Code, hs.Message)).
			WithProvider("tencent_asr")
	}

	c.logger.Debug("识别连接已建立", zap.String("voice_id", voiceID))

	st := &stream{
		conn:    conn,
		events:  make(chan voice.RecognitionEvent, 16),
		voiceID: voiceID,
		logger:  c.logger,
	}
	go st.readLoop()
	return st, nil
}

// serverMessage 是上游返回的识别消息。
type serverMessage struct {
	Code    int     `json:"code"`
	Message string  `json:"message"`
	Final   int     `json:"final"`
	Result  *result `json:"result"`
}

type result struct {
	SliceType    int    `json:"slice_type"`
	VoiceTextStr string `json:"voice_text_str"`
}

// stream 是一条活跃的识别连接。
type stream struct {
	conn      *websocket.Conn
	events    chan voice.RecognitionEvent
	voiceID   string
	logger    *zap.Logger
	closeOnce sync.Once
}

func (s *stream) SendAudio(ctx context.Context, data []byte) error {
	return s.conn.Write(ctx, websocket.MessageBinary, data)
}

// SendEnd 通知上游音频已推送完毕，随后仍会收到尾部识别结果。
func (s *stream) SendEnd(ctx context.Context) error {
	return s.conn.Write(ctx, websocket.MessageText, []byte(`{"type":"end"}`))
}

func (s *stream) Events() <-chan voice.RecognitionEvent {
	return s.events
}

func (s *stream) Close() error {
	s.closeOnce.Do(func() {
		s.conn.Close(websocket.StatusNormalClosure, "")
	})
	return nil
}

// readLoop 持续读取识别消息直到流结束或连接断开。
// 事件通道在退出时关闭，消费方以通道关闭判断流终止。
func (s *stream) readLoop() {
	defer close(s.events)
	defer s.Close()

	for {
		_, data, err := s.conn.Read(context.Background())
		if err != nil {
			s.events <- voice.RecognitionEvent{
				Kind: voice.TranscriptError,
				Err: types.NewError(types.ErrUpstreamClosed, "asr connection lost").
					WithProvider("tencent_asr").
					WithRetryable(true).
					WithCause(err),
			}
			return
		}

		var msg serverMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Warn("识别消息解析失败", zap.String("voice_id", s.voiceID), zap.Error(err))
			continue
		}

		if msg.Code != 0 {
			s.events <- voice.RecognitionEvent{
				Kind: voice.TranscriptError,
				Err: types.NewError(types.ErrUpstreamError,
					fmt.Sprintf("asr error: %d %s", msg.Code, msg.Message)).
					WithProvider("tencent_asr"),
			}
			return
		}

		if msg.Result != nil {
			text := msg.Result.VoiceTextStr
			switch msg.Result.SliceType {
			case 0, 1:
				if text != "" {
					s.events <- voice.RecognitionEvent{Kind: voice.TranscriptPartial, Text: text}
				}
			case 2:
				s.events <- voice.RecognitionEvent{Kind: voice.TranscriptFinal, Text: text}
			}
		}

		if msg.Final == 1 {
			return
		}
	}
}
