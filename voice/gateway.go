package voice

import (
	"context"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// =============================================================================
// 🌐 连接网关
// =============================================================================

// GatewayConfig 汇集网关依赖与选项。
type GatewayConfig struct {
	Providers Providers
	Options   Options
	// 单帧最大字节数，0 使用 websocket 库默认值
	MaxFrameBytes int64
	// Recorder 为 nil 时禁用指标
	Recorder Recorder
}

// Gateway 接受 WebSocket 连接，为每个连接运行一个 Session。
type Gateway struct {
	cfg    GatewayConfig
	logger *zap.Logger
}

// NewGateway 创建连接网关。
func NewGateway(cfg GatewayConfig, logger *zap.Logger) *Gateway {
	return &Gateway{
		cfg:    cfg,
		logger: logger.With(zap.String("component", "voice_gateway")),
	}
}

// ServeHTTP 实现 http.Handler。
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		g.logger.Warn("websocket accept failed", zap.Error(err))
		return
	}
	if g.cfg.MaxFrameBytes > 0 {
		ws.SetReadLimit(g.cfg.MaxFrameBytes)
	}

	id := uuid.NewString()
	sess := NewSession(id, newWSConn(ws), g.cfg.Providers, g.cfg.Options, g.cfg.Recorder, g.logger)
	sess.Run(r.Context())

	ws.Close(websocket.StatusNormalClosure, "")
}

// =============================================================================
// 🔌 WebSocket 连接适配
// =============================================================================

// wsConn 把 *websocket.Conn 适配为 Conn。
// websocket 库不允许并发写，所以写方向用互斥锁串行化。
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func newWSConn(conn *websocket.Conn) *wsConn {
	return &wsConn{conn: conn}
}

func (w *wsConn) Read(ctx context.Context) (MessageKind, []byte, error) {
	typ, data, err := w.conn.Read(ctx)
	if err != nil {
		return 0, nil, err
	}
	if typ == websocket.MessageBinary {
		return MessageBinary, data, nil
	}
	return MessageText, data, nil
}

func (w *wsConn) WriteText(ctx context.Context, data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.Write(ctx, websocket.MessageText, data)
}

func (w *wsConn) WriteBinary(ctx context.Context, data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.Write(ctx, websocket.MessageBinary, data)
}
