package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

const (
	// EnvPrefix namespaces every environment variable read by LoadFromEnv
	EnvPrefix = "POLLROOM_"

	// EnvironmentDevelopment is the only environment allowed to run with DefaultInstructorSecret
	EnvironmentDevelopment = "development"

	// DefaultInstructorSecret is a placeholder that must be replaced outside development
	DefaultInstructorSecret = "changeme"
)

var ErrDefaultSecret = errors.New("the default instructor secret may only be used in development")

var validate = validator.New()

// ARCHITECTURAL DISCOVERY: Configuration layer serves as system-wide settings coordinator
// Clean separation between configuration management and session logic
type Config struct {
	Environment string            `json:"environment" env:"ENVIRONMENT" validate:"required"`
	LogLevel    string            `json:"log_level" env:"LOG_LEVEL" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`
	Session     *SessionConfig    `json:"session" validate:"required"`
	Moderation  *ModerationConfig `json:"moderation" validate:"required"`
	HTTP        *HTTPConfig       `json:"http" validate:"required"`
	WebSocket   *WebSocketConfig  `json:"websocket" validate:"required"`
}

// FUNCTIONAL DISCOVERY: Session rules are expressed in the units instructors think in,
// poll durations in seconds and the chat window in milliseconds
type SessionConfig struct {
	InstructorSecret   string `json:"instructor_secret" env:"INSTRUCTOR_SECRET" validate:"required"`
	InstructorName     string `json:"instructor_name" env:"INSTRUCTOR_NAME" validate:"required,max=20"`
	DefaultPollSeconds int    `json:"default_poll_duration" env:"DEFAULT_POLL_DURATION" validate:"gt=0,ltefield=MaxPollSeconds"`
	MaxPollSeconds     int    `json:"max_poll_duration" env:"MAX_POLL_DURATION" validate:"gt=0"`
	MaxChatHistory     int    `json:"max_chat_history" env:"MAX_CHAT_HISTORY" validate:"gt=0"`
	MaxMessageLength   int    `json:"max_message_length" env:"MAX_MESSAGE_LENGTH" validate:"gt=0"`
	ChatRateWindowMs   int    `json:"chat_rate_window" env:"CHAT_RATE_WINDOW" validate:"gt=0"`
}

// DefaultPollDuration applies to polls created without a time limit
func (s *SessionConfig) DefaultPollDuration() time.Duration {
	return time.Duration(s.DefaultPollSeconds) * time.Second
}

// MaxPollDuration caps every poll deadline
func (s *SessionConfig) MaxPollDuration() time.Duration {
	return time.Duration(s.MaxPollSeconds) * time.Second
}

// ChatRateWindow is the minimum spacing between two participant messages
func (s *SessionConfig) ChatRateWindow() time.Duration {
	return time.Duration(s.ChatRateWindowMs) * time.Millisecond
}

// ModerationConfig lists words masked in participant chat; an empty list disables masking
type ModerationConfig struct {
	CensoredWords []string `json:"censored_words" env:"CENSORED_WORDS" envSeparator:","`
	CensorChar    string   `json:"censor_char" env:"CENSOR_CHAR" validate:"len=1"`
}

// FUNCTIONAL DISCOVERY: HTTP configuration balances performance and reliability
type HTTPConfig struct {
	Port         int           `json:"port" env:"HTTP_PORT" validate:"min=0,max=65535"`
	Host         string        `json:"host" env:"HTTP_HOST" validate:"required"`
	ReadTimeout  time.Duration `json:"read_timeout" env:"HTTP_READ_TIMEOUT" validate:"gt=0"`
	WriteTimeout time.Duration `json:"write_timeout" env:"HTTP_WRITE_TIMEOUT" validate:"gt=0"`
}

// FUNCTIONAL DISCOVERY: WebSocket configuration optimized for classroom scenarios
type WebSocketConfig struct {
	PingInterval   time.Duration `json:"ping_interval" env:"WEBSOCKET_PING_INTERVAL" validate:"gt=0,ltfield=ReadTimeout"`
	ReadTimeout    time.Duration `json:"read_timeout" env:"WEBSOCKET_READ_TIMEOUT" validate:"gt=0"`
	WriteTimeout   time.Duration `json:"write_timeout" env:"WEBSOCKET_WRITE_TIMEOUT" validate:"gt=0"`
	BufferSize     int           `json:"buffer_size" env:"WEBSOCKET_BUFFER_SIZE" validate:"gt=0"`
	MaxMessageSize int64         `json:"max_message_size" env:"WEBSOCKET_MAX_MESSAGE_SIZE" validate:"gt=0"`
}

// FUNCTIONAL DISCOVERY: Defaults run a local development classroom out of the box
func DefaultConfig() *Config {
	return &Config{
		Environment: EnvironmentDevelopment,
		LogLevel:    "INFO",
		Session: &SessionConfig{
			InstructorSecret:   DefaultInstructorSecret,
			InstructorName:     "Instructor",
			DefaultPollSeconds: 60,
			MaxPollSeconds:     300,
			MaxChatHistory:     200,
			MaxMessageLength:   500,
			ChatRateWindowMs:   1000,
		},
		Moderation: &ModerationConfig{
			CensorChar: "*",
		},
		HTTP: &HTTPConfig{
			Port:         8080,
			Host:         "0.0.0.0",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		WebSocket: &WebSocketConfig{
			PingInterval:   30 * time.Second,
			ReadTimeout:    60 * time.Second,
			WriteTimeout:   10 * time.Second,
			BufferSize:     100,
			MaxMessageSize: 64 * 1024,
		},
	}
}

// Validate checks field constraints and refuses the default secret outside development
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Session.InstructorSecret == DefaultInstructorSecret && c.Environment != EnvironmentDevelopment {
		return fmt.Errorf("%w (environment %q)", ErrDefaultSecret, c.Environment)
	}
	return nil
}

// LoadFromEnv overlays POLLROOM_* environment variables on the defaults.
// Unset variables keep their default value.
func LoadFromEnv() (*Config, error) {
	config := DefaultConfig()
	if err := env.ParseWithOptions(config, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return config, nil
}

// ConfigFile represents the JSON structure for file-based configuration
// FUNCTIONAL DISCOVERY: Separate struct for JSON parsing to handle duration strings
type ConfigFile struct {
	Environment string               `json:"environment"`
	LogLevel    string               `json:"log_level"`
	Session     *SessionConfig       `json:"session"`
	Moderation  *ModerationConfig    `json:"moderation"`
	HTTP        *HTTPConfigFile      `json:"http"`
	WebSocket   *WebSocketConfigFile `json:"websocket"`
}

type HTTPConfigFile struct {
	Port         *int   `json:"port"` // nil keeps the current port, 0 binds an ephemeral one
	Host         string `json:"host"`
	ReadTimeout  string `json:"read_timeout"`
	WriteTimeout string `json:"write_timeout"`
}

type WebSocketConfigFile struct {
	PingInterval   string `json:"ping_interval"`
	ReadTimeout    string `json:"read_timeout"`
	WriteTimeout   string `json:"write_timeout"`
	BufferSize     int    `json:"buffer_size"`
	MaxMessageSize int64  `json:"max_message_size"`
}

// LoadFromFile overlays a JSON file on the defaults and validates the result
func LoadFromFile(filepath string) (*Config, error) {
	config := DefaultConfig()
	if err := applyFile(config, filepath); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", filepath, err)
	}
	return config, nil
}

// FUNCTIONAL DISCOVERY: Configuration precedence: file > environment > defaults
func LoadConfigWithPrecedence(filepath string) (*Config, error) {
	config, err := LoadFromEnv()
	if err != nil {
		return nil, err
	}
	if filepath != "" {
		if err := applyFile(config, filepath); err != nil {
			return nil, err
		}
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// applyFile copies every value present in the file onto config
func applyFile(config *Config, filepath string) error {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", filepath, err)
	}

	var file ConfigFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", filepath, err)
	}

	if file.Environment != "" {
		config.Environment = file.Environment
	}
	if file.LogLevel != "" {
		config.LogLevel = file.LogLevel
	}
	if file.Session != nil {
		mergeSession(config.Session, file.Session)
	}
	if file.Moderation != nil {
		if file.Moderation.CensoredWords != nil {
			config.Moderation.CensoredWords = file.Moderation.CensoredWords
		}
		if file.Moderation.CensorChar != "" {
			config.Moderation.CensorChar = file.Moderation.CensorChar
		}
	}

	if file.HTTP != nil {
		if file.HTTP.Port != nil {
			config.HTTP.Port = *file.HTTP.Port
		}
		if file.HTTP.Host != "" {
			config.HTTP.Host = file.HTTP.Host
		}
		if err := parseDuration(file.HTTP.ReadTimeout, &config.HTTP.ReadTimeout); err != nil {
			return fmt.Errorf("http read_timeout in %s: %w", filepath, err)
		}
		if err := parseDuration(file.HTTP.WriteTimeout, &config.HTTP.WriteTimeout); err != nil {
			return fmt.Errorf("http write_timeout in %s: %w", filepath, err)
		}
	}

	if file.WebSocket != nil {
		if file.WebSocket.BufferSize > 0 {
			config.WebSocket.BufferSize = file.WebSocket.BufferSize
		}
		if file.WebSocket.MaxMessageSize > 0 {
			config.WebSocket.MaxMessageSize = file.WebSocket.MaxMessageSize
		}
		if err := parseDuration(file.WebSocket.PingInterval, &config.WebSocket.PingInterval); err != nil {
			return fmt.Errorf("websocket ping_interval in %s: %w", filepath, err)
		}
		if err := parseDuration(file.WebSocket.ReadTimeout, &config.WebSocket.ReadTimeout); err != nil {
			return fmt.Errorf("websocket read_timeout in %s: %w", filepath, err)
		}
		if err := parseDuration(file.WebSocket.WriteTimeout, &config.WebSocket.WriteTimeout); err != nil {
			return fmt.Errorf("websocket write_timeout in %s: %w", filepath, err)
		}
	}
	return nil
}

func mergeSession(dst, src *SessionConfig) {
	if src.InstructorSecret != "" {
		dst.InstructorSecret = src.InstructorSecret
	}
	if src.InstructorName != "" {
		dst.InstructorName = src.InstructorName
	}
	if src.DefaultPollSeconds > 0 {
		dst.DefaultPollSeconds = src.DefaultPollSeconds
	}
	if src.MaxPollSeconds > 0 {
		dst.MaxPollSeconds = src.MaxPollSeconds
	}
	if src.MaxChatHistory > 0 {
		dst.MaxChatHistory = src.MaxChatHistory
	}
	if src.MaxMessageLength > 0 {
		dst.MaxMessageLength = src.MaxMessageLength
	}
	if src.ChatRateWindowMs > 0 {
		dst.ChatRateWindowMs = src.ChatRateWindowMs
	}
}

// parseDuration sets target when value is non-empty
func parseDuration(value string, target *time.Duration) error {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return err
	}
	*target = d
	return nil
}
