package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/allrounder02/Voice-to-text-Lemonfox-whisper-application/internal/transcription"
)

// validConfig returns defaults with an API key so that Validate passes.
func validConfig() Config {
	cfg := Default()
	cfg.Transcription.APIKey = "test-key"
	return cfg
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(c *Config)
		expectError bool
		errorMsg    string
	}{
		{
			name:        "valid configuration",
			mutate:      func(c *Config) {},
			expectError: false,
		},
		{
			name:        "invalid sample rate",
			mutate:      func(c *Config) { c.Audio.SampleRate = 44100 },
			expectError: true,
			errorMsg:    "sample_rate must be one of",
		},
		{
			name:        "stereo rejected",
			mutate:      func(c *Config) { c.Audio.Channels = 2 },
			expectError: true,
			errorMsg:    "channels must be 1",
		},
		{
			name:        "invalid frame duration",
			mutate:      func(c *Config) { c.Audio.FrameDurationMs = 25 },
			expectError: true,
			errorMsg:    "frame_duration_ms must be 10, 20 or 30",
		},
		{
			name:        "aggressiveness out of range",
			mutate:      func(c *Config) { c.VAD.Aggressiveness = 4 },
			expectError: true,
			errorMsg:    "aggressiveness must be between 0 and 3",
		},
		{
			name:        "zero silence threshold",
			mutate:      func(c *Config) { c.VAD.SilenceThreshold = 0 },
			expectError: true,
			errorMsg:    "silence_threshold must be positive",
		},
		{
			name:        "missing api key",
			mutate:      func(c *Config) { c.Transcription.APIKey = "" },
			expectError: true,
			errorMsg:    "api key is not set",
		},
		{
			name:        "unknown response format",
			mutate:      func(c *Config) { c.Transcription.ResponseFormat = "srt" },
			expectError: true,
			errorMsg:    "response_format must be",
		},
		{
			name:        "unknown delivery mode",
			mutate:      func(c *Config) { c.Delivery.Mode = "email" },
			expectError: true,
			errorMsg:    "mode must be one of",
		},
		{
			name: "http enabled with bad port",
			mutate: func(c *Config) {
				c.HTTP.Enabled = true
				c.HTTP.Port = 70000
			},
			expectError: true,
			errorMsg:    "http port must be between 1 and 65535",
		},
		{
			name:        "invalid log level",
			mutate:      func(c *Config) { c.Logging.Level = "trace" },
			expectError: true,
			errorMsg:    "level must be one of",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()

			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error but got none")
				} else if tt.errorMsg != "" && !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("Expected error containing '%s', got '%s'", tt.errorMsg, err.Error())
				}
			} else if err != nil {
				t.Errorf("Expected no error but got: %v", err)
			}
		})
	}
}

func TestMissingAPIKeyIsSentinel(t *testing.T) {
	cfg := Default()
	err := cfg.Validate()
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("Expected ErrMissingAPIKey, got %v", err)
	}
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("LEMONFOX_API_KEY", "")
	t.Setenv("LEMONFOX_DEFAULT_LANGUAGE", "")

	configContent := `
audio:
  sample_rate: 16000
  channels: 1
  frame_duration_ms: 20

vad:
  aggressiveness: 2
  silence_threshold: 1.5

transcription:
  api_key: "file-key"
  language: "german"
  timeout: 30
  max_retries: 1

output:
  directory: "./out"

logging:
  level: "debug"
  format: "json"
  output: "stdout"
`

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Audio.FrameDurationMs != 20 {
		t.Errorf("Expected frame duration 20, got %d", cfg.Audio.FrameDurationMs)
	}
	if cfg.VAD.Aggressiveness != 2 {
		t.Errorf("Expected aggressiveness 2, got %d", cfg.VAD.Aggressiveness)
	}
	if cfg.Transcription.APIKey != "file-key" {
		t.Errorf("Expected API key 'file-key', got '%s'", cfg.Transcription.APIKey)
	}
	if cfg.Transcription.Language != "german" {
		t.Errorf("Expected language 'german', got '%s'", cfg.Transcription.Language)
	}
	// untouched fields keep defaults
	if cfg.Transcription.Endpoint != transcription.DefaultEndpoint {
		t.Errorf("Expected default endpoint, got '%s'", cfg.Transcription.Endpoint)
	}
	if cfg.Hotkeys.ToggleRecording != "ctrl+alt+v" {
		t.Errorf("Expected default record hotkey, got '%s'", cfg.Hotkeys.ToggleRecording)
	}
	if cfg.Output.Directory != "./out" {
		t.Errorf("Expected output dir './out', got '%s'", cfg.Output.Directory)
	}
}

func TestLoadConfigUnknownField(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	content := "transcription:\n  api_key: k\n  model_path: x\n"
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	if _, err := Load(configPath); err == nil {
		t.Error("Expected error for unknown field")
	}
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("LEMONFOX_API_KEY", "env-key")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Expected defaults, got error: %v", err)
	}
	if cfg.Transcription.APIKey != "env-key" {
		t.Errorf("Expected API key from env, got '%s'", cfg.Transcription.APIKey)
	}
	if cfg.VAD.Aggressiveness != 3 {
		t.Errorf("Expected default aggressiveness 3, got %d", cfg.VAD.Aggressiveness)
	}
}

func TestLoadConfigMissingKeyIsFatal(t *testing.T) {
	t.Setenv("LEMONFOX_API_KEY", "")

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("Expected ErrMissingAPIKey, got %v", err)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"LEMONFOX_API_KEY":          "k",
		"LEMONFOX_DEFAULT_LANGUAGE": "french",
		"OUTPUT_DIRECTORY":          "/tmp/t",
		"LOG_LEVEL":                 "DEBUG",
		"LEMONFOX_API_URL":          "http://localhost:1/v1",
	}
	cfg := Default()
	cfg.ApplyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})

	if cfg.Transcription.APIKey != "k" {
		t.Errorf("Expected key 'k', got '%s'", cfg.Transcription.APIKey)
	}
	if cfg.Transcription.Language != "french" {
		t.Errorf("Expected language 'french', got '%s'", cfg.Transcription.Language)
	}
	if cfg.Output.Directory != "/tmp/t" {
		t.Errorf("Expected output '/tmp/t', got '%s'", cfg.Output.Directory)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Expected level 'debug', got '%s'", cfg.Logging.Level)
	}
	if cfg.Transcription.Endpoint != "http://localhost:1/v1" {
		t.Errorf("Expected endpoint override, got '%s'", cfg.Transcription.Endpoint)
	}
}

func TestLoadFromReader(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader("transcription:\n  api_key: r\n  ordered: true\n"), nil)
	if err != nil {
		t.Fatalf("LoadFromReader failed: %v", err)
	}
	if !cfg.Transcription.Ordered {
		t.Error("Expected ordered=true")
	}

	lookup := func(k string) (string, bool) {
		if k == "LEMONFOX_API_KEY" {
			return "from-env", true
		}
		return "", false
	}
	cfg, err = LoadFromReader(strings.NewReader(""), lookup)
	if err != nil {
		t.Fatalf("LoadFromReader with env failed: %v", err)
	}
	if cfg.Transcription.APIKey != "from-env" {
		t.Errorf("Expected API key from lookup, got '%s'", cfg.Transcription.APIKey)
	}
}

func TestDurationHelpers(t *testing.T) {
	cfg := Default()

	if got := cfg.Audio.GetFrameDuration(); got != 30*time.Millisecond {
		t.Errorf("Expected 30ms frame, got %v", got)
	}
	if got := cfg.VAD.GetSilenceThreshold(); got != 3*time.Second {
		t.Errorf("Expected 3s silence threshold, got %v", got)
	}
	if got := cfg.Transcription.GetTimeoutDuration(); got != 60*time.Second {
		t.Errorf("Expected 60s timeout, got %v", got)
	}
	if got := cfg.Output.GetTempMaxAge(); got != 10*time.Minute {
		t.Errorf("Expected 10m temp max age, got %v", got)
	}
	if got := cfg.Delivery.GetPasteDelay(); got != 100*time.Millisecond {
		t.Errorf("Expected 100ms paste delay, got %v", got)
	}
}

func TestLoadEnvFile(t *testing.T) {
	t.Setenv("VT_ALREADY_SET", "keep")

	content := `# comment
export VT_EXPORTED=one
VT_DOUBLE="two \"quoted\""
VT_SINGLE='three # literal'
VT_PLAIN=four # trailing
VT_ALREADY_SET=replaced
`
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("Failed to write env file: %v", err)
	}
	for _, k := range []string{"VT_EXPORTED", "VT_DOUBLE", "VT_SINGLE", "VT_PLAIN"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	if err := LoadEnvFile(path); err != nil {
		t.Fatalf("LoadEnvFile failed: %v", err)
	}

	expected := map[string]string{
		"VT_EXPORTED":    "one",
		"VT_DOUBLE":      `two "quoted"`,
		"VT_SINGLE":      "three # literal",
		"VT_PLAIN":       "four",
		"VT_ALREADY_SET": "keep",
	}
	for k, want := range expected {
		if got := os.Getenv(k); got != want {
			t.Errorf("%s: expected %q, got %q", k, want, got)
		}
	}
}

func TestLoadEnvFileMissing(t *testing.T) {
	if err := LoadEnvFile(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Errorf("Expected nil for missing env file, got %v", err)
	}
}

func TestShippedConfigDecodes(t *testing.T) {
	f, err := os.Open(filepath.Join("..", "..", "configs", "config.yaml"))
	if err != nil {
		t.Fatalf("Failed to open example config: %v", err)
	}
	defer f.Close()

	// every key must be known; only the API key is left to the environment
	_, err = LoadFromReader(f, nil)
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("Expected only ErrMissingAPIKey, got %v", err)
	}
}
