// =============================================================================
// 📦 soutui 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:  DefaultServerConfig(),
		Log:     DefaultLogConfig(),
		ASR:     DefaultASRConfig(),
		TTS:     DefaultTTSConfig(),
		ADP:     DefaultADPConfig(),
		Voice:   DefaultVoiceConfig(),
		Metrics: DefaultMetricsConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:              ":8080",
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		ShutdownTimeout:   15 * time.Second,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultASRConfig 返回默认语音识别配置
func DefaultASRConfig() ASRConfig {
	return ASRConfig{
		EngineModelType: "16k_zh",
		VoiceFormat:     1, // pcm
		NeedVAD:         true,
		Expiry:          5 * time.Minute,
		DialTimeout:     10 * time.Second,
	}
}

// DefaultTTSConfig 返回默认语音合成配置
func DefaultTTSConfig() TTSConfig {
	return TTSConfig{
		VoiceType:    101001,
		SampleRate:   16000,
		DefaultCodec: "pcm",
		Speed:        0,
		Volume:       0,
		Expiry:       5 * time.Minute,
		DialTimeout:  10 * time.Second,
	}
}

// DefaultADPConfig 返回默认智能体平台配置
func DefaultADPConfig() ADPConfig {
	return ADPConfig{
		Endpoint: "https://wss.lke.cloud.tencent.com/v1/qbot/chat/sse",
		Timeout:  0, // 流式响应不限制整体超时
	}
}

// DefaultVoiceConfig 返回默认会话编排配置
func DefaultVoiceConfig() VoiceConfig {
	return VoiceConfig{
		DefaultReplyMode: "audio",
		DefaultThrottle:  10,
		AudioRateLimit:   64 * 1024, // 16kHz 16bit 单声道约 32KB/s，留一倍余量
		AudioRateBurst:   128 * 1024,
		MaxFrameBytes:    1 << 20,
	}
}

// DefaultMetricsConfig 返回默认指标配置
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:   true,
		Namespace: "soutui",
	}
}
