// Package adp 封装腾讯云智能体开发平台（ADP）的 SSE 对话接口。
//
// 对话以 POST 发起，响应是 text/event-stream：每行 data: 携带
// 一个 JSON 事件，type=reply 是回复增量，type=thought 是思考
// 过程，[DONE] 表示流结束。
package adp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/prayhard/soutui/config"
	"github.com/prayhard/soutui/internal/tlsutil"
	"github.com/prayhard/soutui/types"
	"github.com/prayhard/soutui/voice"
)

// Client 实现 voice.Replier。
type Client struct {
	cfg    config.ADPConfig
	http   *http.Client
	logger *zap.Logger
}

// NewClient 创建对话客户端。流式响应可能持续很久，
// cfg.Timeout 为 0 时不设整体超时，由调用方的 ctx 控制。
func NewClient(cfg config.ADPConfig, logger *zap.Logger) *Client {
	return &Client{
		cfg:    cfg,
		http:   tlsutil.SecureHTTPClient(cfg.Timeout),
		logger: logger.With(zap.String("component", "tencent_adp")),
	}
}

// chatPayload 是对话请求体。
type chatPayload struct {
	SessionID         string            `json:"session_id"`
	BotAppKey         string            `json:"bot_app_key"`
	VisitorBizID      string            `json:"visitor_biz_id"`
	Content           string            `json:"content"`
	Incremental       bool              `json:"incremental"`
	StreamingThrottle int               `json:"streaming_throttle"`
	VisitorLabels     []string          `json:"visitor_labels"`
	CustomVariables   map[string]string `json:"custom_variables"`
	SearchNetwork     string            `json:"search_network"`
	Stream            string            `json:"stream"`
	WorkflowStatus    string            `json:"workflow_status"`
	TCADPUserID       string            `json:"tcadp_user_id"`
}

// sseEvent 是单条 SSE 事件，只解出需要的字段。
type sseEvent struct {
	Type    string `json:"type"`
	Payload struct {
		Content    string `json:"content"`
		Procedures []struct {
			Debugging struct {
				Content string `json:"content"`
			} `json:"debugging"`
		} `json:"procedures"`
	} `json:"payload"`
}

// Stream 发起一轮对话并以通道返回增量。
// 通道在流结束或 ctx 取消后关闭；流中异常通过 Err 字段传出。
func (c *Client) Stream(ctx context.Context, req voice.ReplyRequest) (<-chan voice.ReplyDelta, error) {
	payload := chatPayload{
		SessionID:         req.SessionID,
		BotAppKey:         req.BotAppKey,
		VisitorBizID:      req.VisitorBizID,
		Content:           req.Content,
		Incremental:       true,
		StreamingThrottle: req.Throttle,
		VisitorLabels:     []string{},
		CustomVariables:   map[string]string{},
		SearchNetwork:     "disable",
		Stream:            "enable",
		WorkflowStatus:    "disable",
		TCADPUserID:       "",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "marshal chat payload failed").WithCause(err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "build chat request failed").WithCause(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	// 禁用压缩，保证行边界即时到达
	httpReq.Header.Set("Accept-Encoding", "identity")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, types.NewError(types.ErrServiceUnavailable, "adp request failed").
			WithProvider("tencent_adp").
			WithRetryable(true).
			WithCause(err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, types.NewError(types.ErrUpstreamError,
			fmt.Sprintf("adp status %d", resp.StatusCode)).
			WithProvider("tencent_adp").
			WithHTTPStatus(resp.StatusCode)
	}

	out := make(chan voice.ReplyDelta, 16)
	go c.consume(ctx, resp.Body, out)
	return out, nil
}

// consume 逐行解析 SSE 响应并推送增量。
func (c *Client) consume(ctx context.Context, body io.ReadCloser, out chan<- voice.ReplyDelta) {
	defer close(out)
	defer body.Close()

	// ctx 取消时关闭响应体，解除 ReadString 阻塞
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			body.Close()
		case <-done:
		}
	}()

	reader := bufio.NewReader(body)
	for {
		line, err := reader.ReadString('\n')
		if len(line) > 0 {
			if parsed, ok := parseLine(line); ok {
				if parsed.done {
					return
				}
				select {
				case out <- parsed.delta:
				case <-ctx.Done():
					return
				}
			}
		}
		if err != nil {
			if err == io.EOF || ctx.Err() != nil {
				return
			}
			select {
			case out <- voice.ReplyDelta{
				Err: types.NewError(types.ErrUpstreamClosed, "adp stream interrupted").
					WithProvider("tencent_adp").
					WithCause(err),
			}:
			case <-ctx.Done():
			}
			return
		}
	}
}

// parsedLine 区分普通增量与流结束标记。
type parsedLine struct {
	delta voice.ReplyDelta
	done  bool
}

var doneSentinel = parsedLine{done: true}

// parseLine 解析一行 SSE 数据。第二个返回值为 false 表示
// 该行不产生任何事件（空行、注释、空增量、坏 JSON）。
func parseLine(line string) (parsedLine, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "data:") {
		return parsedLine{}, false
	}
	data := strings.TrimSpace(line[len("data:"):])
	if data == "[DONE]" {
		return doneSentinel, true
	}

	var ev sseEvent
	if err := json.Unmarshal([]byte(data), &ev); err != nil {
		return parsedLine{}, false
	}

	switch ev.Type {
	case "reply":
		if ev.Payload.Content != "" {
			return parsedLine{delta: voice.ReplyDelta{
				Kind:    voice.DeltaReply,
				Content: ev.Payload.Content,
			}}, true
		}
	case "thought":
		if len(ev.Payload.Procedures) > 0 {
			if text := ev.Payload.Procedures[0].Debugging.Content; text != "" {
				return parsedLine{delta: voice.ReplyDelta{
					Kind:    voice.DeltaThought,
					Content: text,
				}}, true
			}
		}
	}
	return parsedLine{}, false
}
