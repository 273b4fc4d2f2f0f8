package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// ARCHITECTURAL VALIDATION TEST: Interface compliance and boundary enforcement
func TestConfig_ArchitecturalCompliance(t *testing.T) {
	var _ *Config = (*Config)(nil)
}

// FUNCTIONAL VALIDATION TEST: Default configuration runs a development classroom
func TestConfig_DefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config == nil {
		t.Fatal("DefaultConfig should not return nil")
	}
	if err := config.Validate(); err != nil {
		t.Errorf("Default config should pass validation: %v", err)
	}
	if config.Session.DefaultPollDuration() != 60*time.Second {
		t.Errorf("Expected 60s default poll duration, got %v", config.Session.DefaultPollDuration())
	}
	if config.Session.MaxPollDuration() != 300*time.Second {
		t.Errorf("Expected 300s max poll duration, got %v", config.Session.MaxPollDuration())
	}
	if config.Session.ChatRateWindow() != time.Second {
		t.Errorf("Expected 1s chat window, got %v", config.Session.ChatRateWindow())
	}
	if config.Session.MaxChatHistory != 200 || config.Session.MaxMessageLength != 500 {
		t.Errorf("Unexpected chat limits %+v", config.Session)
	}
	if len(config.Moderation.CensoredWords) != 0 || config.Moderation.CensorChar != "*" {
		t.Errorf("Unexpected moderation defaults %+v", config.Moderation)
	}
}

// FUNCTIONAL VALIDATION TEST: Configuration validation prevents invalid settings
func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"invalid port", func(c *Config) { c.HTTP.Port = -1 }},
		{"empty host", func(c *Config) { c.HTTP.Host = "" }},
		{"empty secret", func(c *Config) { c.Session.InstructorSecret = "" }},
		{"default exceeds max", func(c *Config) { c.Session.DefaultPollSeconds = 301 }},
		{"zero history", func(c *Config) { c.Session.MaxChatHistory = 0 }},
		{"zero rate window", func(c *Config) { c.Session.ChatRateWindowMs = 0 }},
		{"multi-char censor", func(c *Config) { c.Moderation.CensorChar = "##" }},
		{"ping after read timeout", func(c *Config) { c.WebSocket.PingInterval = 2 * c.WebSocket.ReadTimeout }},
		{"unknown log level", func(c *Config) { c.LogLevel = "LOUD" }},
		{"missing section", func(c *Config) { c.Session = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)
			if err := config.Validate(); err == nil {
				t.Errorf("%s should fail validation", tt.name)
			}
		})
	}
}

// FUNCTIONAL VALIDATION TEST: The placeholder secret is refused outside development
func TestConfig_DefaultSecretOutsideDevelopment(t *testing.T) {
	config := DefaultConfig()
	config.Environment = "production"

	if err := config.Validate(); !errors.Is(err, ErrDefaultSecret) {
		t.Errorf("Expected ErrDefaultSecret, got %v", err)
	}

	config.Session.InstructorSecret = "s3cret"
	if err := config.Validate(); err != nil {
		t.Errorf("Custom secret should be accepted in production: %v", err)
	}
}

// FUNCTIONAL VALIDATION TEST: Environment variable configuration loading
func TestConfig_LoadFromEnv(t *testing.T) {
	t.Setenv("POLLROOM_HTTP_PORT", "9090")
	t.Setenv("POLLROOM_INSTRUCTOR_SECRET", "from-env")
	t.Setenv("POLLROOM_MAX_POLL_DURATION", "120")
	t.Setenv("POLLROOM_CHAT_RATE_WINDOW", "250")
	t.Setenv("POLLROOM_CENSORED_WORDS", "darn,heck")
	t.Setenv("POLLROOM_WEBSOCKET_PING_INTERVAL", "15s")

	config, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv failed: %v", err)
	}

	if config.HTTP.Port != 9090 {
		t.Errorf("Expected HTTP port 9090, got %d", config.HTTP.Port)
	}
	if config.Session.InstructorSecret != "from-env" {
		t.Errorf("Expected secret from env, got %s", config.Session.InstructorSecret)
	}
	if config.Session.MaxPollDuration() != 2*time.Minute {
		t.Errorf("Expected 2m max poll duration, got %v", config.Session.MaxPollDuration())
	}
	if config.Session.ChatRateWindow() != 250*time.Millisecond {
		t.Errorf("Expected 250ms window, got %v", config.Session.ChatRateWindow())
	}
	if len(config.Moderation.CensoredWords) != 2 || config.Moderation.CensoredWords[1] != "heck" {
		t.Errorf("Expected censored words from env, got %v", config.Moderation.CensoredWords)
	}
	if config.WebSocket.PingInterval != 15*time.Second {
		t.Errorf("Expected 15s ping interval, got %v", config.WebSocket.PingInterval)
	}
	if config.Session.DefaultPollSeconds != 60 {
		t.Errorf("Unset variables should keep defaults, got %d", config.Session.DefaultPollSeconds)
	}
}

// FUNCTIONAL VALIDATION TEST: Malformed environment values are reported
func TestConfig_LoadFromEnvInvalid(t *testing.T) {
	t.Setenv("POLLROOM_HTTP_PORT", "not-a-number")

	if _, err := LoadFromEnv(); err == nil {
		t.Error("Non-numeric port should fail to load")
	}
}

// FUNCTIONAL VALIDATION TEST: File-based configuration loading
func TestConfig_LoadFromFile(t *testing.T) {
	path := writeConfigFile(t, `{
		"environment": "production",
		"session": {"instructor_secret": "file-secret", "max_chat_history": 50},
		"moderation": {"censored_words": ["darn"], "censor_char": "#"},
		"http": {"port": 8081, "read_timeout": "15s"},
		"websocket": {"ping_interval": "20s", "buffer_size": 64}
	}`)

	config, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if config.Environment != "production" || config.Session.InstructorSecret != "file-secret" {
		t.Errorf("Unexpected session config %+v", config.Session)
	}
	if config.Session.MaxChatHistory != 50 || config.Session.MaxMessageLength != 500 {
		t.Errorf("File should override only the fields it names, got %+v", config.Session)
	}
	if config.Moderation.CensorChar != "#" || len(config.Moderation.CensoredWords) != 1 {
		t.Errorf("Unexpected moderation config %+v", config.Moderation)
	}
	if config.HTTP.Port != 8081 || config.HTTP.ReadTimeout != 15*time.Second {
		t.Errorf("Unexpected HTTP config %+v", config.HTTP)
	}
	if config.HTTP.WriteTimeout != 30*time.Second {
		t.Errorf("Missing durations should keep defaults, got %v", config.HTTP.WriteTimeout)
	}
	if config.WebSocket.PingInterval != 20*time.Second || config.WebSocket.BufferSize != 64 {
		t.Errorf("Unexpected websocket config %+v", config.WebSocket)
	}
}

// FUNCTIONAL VALIDATION TEST: A file may request an ephemeral port
func TestConfig_LoadFromFileEphemeralPort(t *testing.T) {
	config, err := LoadFromFile(writeConfigFile(t, `{"http": {"port": 0}}`))
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if config.HTTP.Port != 0 {
		t.Errorf("Expected port 0 from file, got %d", config.HTTP.Port)
	}

	config, err = LoadFromFile(writeConfigFile(t, `{"http": {"host": "127.0.0.1"}}`))
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if config.HTTP.Port != 8080 {
		t.Errorf("An absent port should keep the default, got %d", config.HTTP.Port)
	}
}

// FUNCTIONAL VALIDATION TEST: Broken files are reported, not ignored
func TestConfig_LoadFromFileErrors(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("Missing file should fail")
	}
	if _, err := LoadFromFile(writeConfigFile(t, `{not json`)); err == nil {
		t.Error("Malformed JSON should fail")
	}
	if _, err := LoadFromFile(writeConfigFile(t, `{"http": {"read_timeout": "soon"}}`)); err == nil {
		t.Error("Malformed duration should fail")
	}
	if _, err := LoadFromFile(writeConfigFile(t, `{"environment": "production"}`)); !errors.Is(err, ErrDefaultSecret) {
		t.Errorf("Expected ErrDefaultSecret, got %v", err)
	}
}

// FUNCTIONAL VALIDATION TEST: Configuration precedence: file > environment > defaults
func TestConfig_LoadConfigWithPrecedence(t *testing.T) {
	t.Setenv("POLLROOM_HTTP_PORT", "9090")
	t.Setenv("POLLROOM_HTTP_HOST", "127.0.0.1")
	path := writeConfigFile(t, `{"http": {"port": 7070}}`)

	config, err := LoadConfigWithPrecedence(path)
	if err != nil {
		t.Fatalf("LoadConfigWithPrecedence failed: %v", err)
	}
	if config.HTTP.Port != 7070 {
		t.Errorf("File should win over env, got port %d", config.HTTP.Port)
	}
	if config.HTTP.Host != "127.0.0.1" {
		t.Errorf("Env should win over defaults, got host %s", config.HTTP.Host)
	}
	if config.Session.MaxPollSeconds != 300 {
		t.Errorf("Defaults should fill the rest, got %d", config.Session.MaxPollSeconds)
	}

	config, err = LoadConfigWithPrecedence("")
	if err != nil {
		t.Fatalf("LoadConfigWithPrecedence without file failed: %v", err)
	}
	if config.HTTP.Port != 9090 {
		t.Errorf("Expected env port without a file, got %d", config.HTTP.Port)
	}
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pollroom.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}
