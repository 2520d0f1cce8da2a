package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/prayhard/soutui/adp"
	"github.com/prayhard/soutui/asr"
	"github.com/prayhard/soutui/config"
	"github.com/prayhard/soutui/internal/metrics"
	"github.com/prayhard/soutui/internal/server"
	"github.com/prayhard/soutui/internal/tlsutil"
	"github.com/prayhard/soutui/tts"
	"github.com/prayhard/soutui/voice"
)

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

// Server 组装语音网关的全部组件。
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	httpManager *server.Manager
	collector   *metrics.Collector
	gateway     *voice.Gateway
}

// NewServer 创建新的服务器实例
func NewServer(cfg *config.Config, logger *zap.Logger) *Server {
	return &Server{
		cfg:    cfg,
		logger: logger,
	}
}

// =============================================================================
// 🚀 启动流程
// =============================================================================

// Start 启动所有服务
func (s *Server) Start() error {
	// 1. 指标收集器
	var rec voice.Recorder
	if s.cfg.Metrics.Enabled {
		s.collector = metrics.NewCollector(s.cfg.Metrics.Namespace, s.logger)
		rec = s.collector
	}

	// 2. 上游客户端
	providers := voice.Providers{
		Recognizer:  asr.NewClient(s.cfg.ASR, s.logger),
		Synthesizer: tts.NewClient(s.cfg.TTS, s.logger),
		Replier:     adp.NewClient(s.cfg.ADP, s.logger),
	}

	// 3. 连接网关
	s.gateway = voice.NewGateway(voice.GatewayConfig{
		Providers: providers,
		Options: voice.Options{
			DefaultReplyMode: s.cfg.Voice.DefaultReplyMode,
			DefaultThrottle:  s.cfg.Voice.DefaultThrottle,
			DefaultCodec:     s.cfg.TTS.DefaultCodec,
			PrimaryBotKey:    s.cfg.ADP.PrimaryBotKey,
			SecondaryBotKey:  s.cfg.ADP.SecondaryBotKey,
			AudioRateLimit:   s.cfg.Voice.AudioRateLimit,
			AudioRateBurst:   s.cfg.Voice.AudioRateBurst,
		},
		MaxFrameBytes: s.cfg.Voice.MaxFrameBytes,
		Recorder:      rec,
	}, s.logger)

	// 4. HTTP 服务器。运维端点走日志中间件；/ws/voice 不包裹
	// ResponseWriter，只做 panic 恢复。
	ops := func(h http.Handler) http.Handler {
		return Chain(h, Recovery(s.logger), RequestLogger(s.logger))
	}
	mux := http.NewServeMux()
	mux.Handle("/ws/voice", Chain(s.gateway, Recovery(s.logger)))
	mux.Handle("/health", ops(http.HandlerFunc(s.handleHealth)))
	mux.Handle("/ready", ops(http.HandlerFunc(s.handleReady)))
	if s.cfg.Metrics.Enabled {
		mux.Handle("/metrics", ops(promhttp.Handler()))
	}

	s.httpManager = server.NewManager(mux, server.Config{
		Addr:              s.cfg.Server.Addr,
		ReadHeaderTimeout: s.cfg.Server.ReadHeaderTimeout,
		IdleTimeout:       s.cfg.Server.IdleTimeout,
		ShutdownTimeout:   s.cfg.Server.ShutdownTimeout,
	}, s.logger)

	if err := s.httpManager.Start(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	s.logger.Info("soutui started",
		zap.String("addr", s.httpManager.Addr()),
		zap.Bool("metrics_enabled", s.cfg.Metrics.Enabled),
	)
	return nil
}

// WaitForShutdown 阻塞直到收到关闭信号并完成优雅关闭。
func (s *Server) WaitForShutdown() {
	s.httpManager.WaitForShutdown()
}

// =============================================================================
// 🏥 健康与就绪探针
// =============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"version": Version,
	})
}

// handleReady 并发探测各上游可达性。任何一个上游不可达都
// 返回 503，探测总耗时不超过 5 秒。
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.probeADP(ctx) })
	g.Go(func() error { return resolveHost(ctx, asr.Host) })
	g.Go(func() error { return resolveHost(ctx, tts.Host) })

	w.Header().Set("Content-Type", "application/json")
	if err := g.Wait(); err != nil {
		s.logger.Warn("readiness probe failed", zap.Error(err))
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "degraded",
			"detail": err.Error(),
		})
		return
	}
	json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
}

// probeADP 对对话端点发一个 HEAD 请求，只关心可达性，
// 不关心状态码。
func (s *Server) probeADP(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, s.cfg.ADP.Endpoint, nil)
	if err != nil {
		return fmt.Errorf("adp probe: %w", err)
	}
	resp, err := tlsutil.SecureHTTPClient(5 * time.Second).Do(req)
	if err != nil {
		return fmt.Errorf("adp unreachable: %w", err)
	}
	resp.Body.Close()
	return nil
}

func resolveHost(ctx context.Context, host string) error {
	if _, err := net.DefaultResolver.LookupHost(ctx, host); err != nil {
		return fmt.Errorf("resolve %s: %w", host, err)
	}
	return nil
}
