// =============================================================================
// 📦 soutui 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("SOUTUI").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量
// =============================================================================
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config 是 soutui 语音服务的完整配置结构
type Config struct {
	// Server 服务器配置
	Server ServerConfig `yaml:"server" env:"SERVER"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`

	// ASR 语音识别配置
	ASR ASRConfig `yaml:"asr" env:"ASR"`

	// TTS 语音合成配置
	TTS TTSConfig `yaml:"tts" env:"TTS"`

	// ADP 智能体对话平台配置
	ADP ADPConfig `yaml:"adp" env:"ADP"`

	// Voice 会话编排配置
	Voice VoiceConfig `yaml:"voice" env:"VOICE"`

	// Metrics 指标配置
	Metrics MetricsConfig `yaml:"metrics" env:"METRICS"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	// 监听地址
	Addr string `yaml:"addr" env:"ADDR"`
	// 请求头读取超时（会话连接是长连接，不设整请求超时）
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" env:"READ_HEADER_TIMEOUT"`
	// 空闲超时
	IdleTimeout time.Duration `yaml:"idle_timeout" env:"IDLE_TIMEOUT"`
	// 优雅关闭超时
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// 输出路径
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// 是否启用调用者信息
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
	// 是否启用堆栈跟踪
	EnableStacktrace bool `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// ASRConfig 腾讯云流式语音识别配置
type ASRConfig struct {
	// 腾讯云 AppID
	AppID string `yaml:"app_id" env:"APP_ID"`
	// SecretId
	SecretID string `yaml:"secret_id" env:"SECRET_ID"`
	// SecretKey
	SecretKey string `yaml:"secret_key" env:"SECRET_KEY"`
	// 引擎模型: 16k_zh 等
	EngineModelType string `yaml:"engine_model_type" env:"ENGINE_MODEL_TYPE"`
	// 音频格式: 1=pcm
	VoiceFormat int `yaml:"voice_format" env:"VOICE_FORMAT"`
	// 是否启用 VAD
	NeedVAD bool `yaml:"need_vad" env:"NEED_VAD"`
	// 签名有效期
	Expiry time.Duration `yaml:"expiry" env:"EXPIRY"`
	// 拨号超时
	DialTimeout time.Duration `yaml:"dial_timeout" env:"DIAL_TIMEOUT"`
}

// TTSConfig 腾讯云流式语音合成配置
type TTSConfig struct {
	// 腾讯云 AppID
	AppID string `yaml:"app_id" env:"APP_ID"`
	// SecretId
	SecretID string `yaml:"secret_id" env:"SECRET_ID"`
	// SecretKey
	SecretKey string `yaml:"secret_key" env:"SECRET_KEY"`
	// 音色 ID
	VoiceType int `yaml:"voice_type" env:"VOICE_TYPE"`
	// 采样率
	SampleRate int `yaml:"sample_rate" env:"SAMPLE_RATE"`
	// 默认编码: pcm, mp3
	DefaultCodec string `yaml:"default_codec" env:"DEFAULT_CODEC"`
	// 语速
	Speed int `yaml:"speed" env:"SPEED"`
	// 音量
	Volume int `yaml:"volume" env:"VOLUME"`
	// 签名有效期
	Expiry time.Duration `yaml:"expiry" env:"EXPIRY"`
	// 拨号超时
	DialTimeout time.Duration `yaml:"dial_timeout" env:"DIAL_TIMEOUT"`
}

// ADPConfig 腾讯云智能体对话平台配置
type ADPConfig struct {
	// SSE 对话端点
	Endpoint string `yaml:"endpoint" env:"ENDPOINT"`
	// 主应用 bot_app_key（init app=="s" 时使用）
	PrimaryBotKey string `yaml:"primary_bot_key" env:"PRIMARY_BOT_KEY"`
	// 备用应用 bot_app_key
	SecondaryBotKey string `yaml:"secondary_bot_key" env:"SECONDARY_BOT_KEY"`
	// 请求超时（0 表示不限制，流式响应可能很长）
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// VoiceConfig 会话编排配置
type VoiceConfig struct {
	// 默认回复模式: audio, text
	DefaultReplyMode string `yaml:"default_reply_mode" env:"DEFAULT_REPLY_MODE"`
	// 默认流式节流值（透传给 ADP）
	DefaultThrottle int `yaml:"default_throttle" env:"DEFAULT_THROTTLE"`
	// 入站音频限速（字节/秒，0 表示不限速）
	AudioRateLimit int `yaml:"audio_rate_limit" env:"AUDIO_RATE_LIMIT"`
	// 入站音频突发量（字节）
	AudioRateBurst int `yaml:"audio_rate_burst" env:"AUDIO_RATE_BURST"`
	// 单帧最大字节数
	MaxFrameBytes int64 `yaml:"max_frame_bytes" env:"MAX_FRAME_BYTES"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	// 是否启用 /metrics 端点
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// Prometheus 命名空间
	Namespace string `yaml:"namespace" env:"NAMESPACE"`
}

// =============================================================================
// 🔧 配置加载器
// =============================================================================

// Loader 配置加载器（Builder 模式）
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader 创建新的配置加载器
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "SOUTUI",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath 设置配置文件路径
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator 添加配置验证器
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 加载配置
// 优先级: 默认值 → YAML 文件 → 环境变量
func (l *Loader) Load() (*Config, error) {
	// 1. 从默认值开始
	cfg := DefaultConfig()

	// 2. 如果指定了配置文件，从文件加载
	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// 3. 从环境变量覆盖
	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	// 4. 运行验证器
	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile 从 YAML 文件加载配置
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// 文件不存在，使用默认值
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// loadFromEnv 从环境变量加载配置
func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv 递归设置结构体字段
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		// 获取 env tag
		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		// 如果是结构体，递归处理
		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		// 获取环境变量值
		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		// 设置字段值
		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

// setFieldValue 设置字段值
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// 特殊处理 time.Duration
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetUint(u)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// 支持逗号分隔的字符串切片
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// =============================================================================
// 🔍 辅助函数
// =============================================================================

// MustLoad 加载配置，失败时 panic
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// LoadFromEnv 仅从环境变量加载配置
func LoadFromEnv() (*Config, error) {
	return NewLoader().Load()
}

// Validate 验证配置
func (c *Config) Validate() error {
	var errs []string

	// 验证服务器配置
	if c.Server.Addr == "" {
		errs = append(errs, "server addr must not be empty")
	}

	// 验证日志配置
	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("unknown log level %q", c.Log.Level))
	}

	// 验证语音编排配置
	switch c.Voice.DefaultReplyMode {
	case "audio", "text":
	default:
		errs = append(errs, fmt.Sprintf("unknown reply mode %q", c.Voice.DefaultReplyMode))
	}
	if c.Voice.AudioRateLimit < 0 {
		errs = append(errs, "audio_rate_limit must not be negative")
	}

	// 验证 TTS 配置
	switch c.TTS.DefaultCodec {
	case "pcm", "mp3":
	default:
		errs = append(errs, fmt.Sprintf("unsupported tts codec %q", c.TTS.DefaultCodec))
	}
	if c.TTS.SampleRate <= 0 {
		errs = append(errs, "tts sample_rate must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}
