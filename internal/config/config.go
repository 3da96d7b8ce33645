package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/allrounder02/Voice-to-text-Lemonfox-whisper-application/internal/transcription"
)

// ErrMissingAPIKey is returned when no API key is configured.
var ErrMissingAPIKey = errors.New("api key is not set (LEMONFOX_API_KEY)")

// Config represents the complete application configuration
type Config struct {
	Audio         AudioConfig         `yaml:"audio"`
	VAD           VADConfig           `yaml:"vad"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Output        OutputConfig        `yaml:"output"`
	Delivery      DeliveryConfig      `yaml:"delivery"`
	Hotkeys       HotkeyConfig        `yaml:"hotkeys"`
	Notifications NotificationConfig  `yaml:"notifications"`
	HTTP          HTTPConfig          `yaml:"http"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// AudioConfig contains microphone capture parameters
type AudioConfig struct {
	SampleRate      int `yaml:"sample_rate"`
	Channels        int `yaml:"channels"`
	FrameDurationMs int `yaml:"frame_duration_ms"`
	// Frames buffered between the device reader and the segmenter.
	DeviceBufferFrames int `yaml:"device_buffer_frames"`
}

// VADConfig contains voice activity detection and segmentation parameters
type VADConfig struct {
	Aggressiveness     int     `yaml:"aggressiveness"`
	Threshold          float64 `yaml:"threshold"`            // RMS override, 0 = derive from aggressiveness
	SilenceThreshold   float64 `yaml:"silence_threshold"`    // seconds
	MaxSegmentDuration float64 `yaml:"max_segment_duration"` // seconds, 0 = unlimited
	MinSpeechFrames    int     `yaml:"min_speech_frames"`
}

// TranscriptionConfig contains LemonFox API configuration
type TranscriptionConfig struct {
	Endpoint       string `yaml:"endpoint"`
	APIKey         string `yaml:"api_key"`
	Language       string `yaml:"language"`
	ResponseFormat string `yaml:"response_format"`
	TextPath       string `yaml:"text_path"`
	Timeout        int    `yaml:"timeout"` // seconds
	MaxRetries     int    `yaml:"max_retries"`
	MaxConcurrent  int    `yaml:"max_concurrent"`
	QueueSize      int    `yaml:"queue_size"`
	Ordered        bool   `yaml:"ordered"`
	EnableHTTP2    bool   `yaml:"enable_http2"`
	VerifySSL      bool   `yaml:"verify_ssl"`
}

// OutputConfig controls where transcripts and temporary audio go
type OutputConfig struct {
	Directory          string `yaml:"directory"`
	AllowOverwrite     bool   `yaml:"allow_overwrite"`
	TempDirectory      string `yaml:"temp_directory"`
	TempMaxAge         int    `yaml:"temp_max_age"` // seconds
	KeepFailedSegments bool   `yaml:"keep_failed_segments"`
}

// DeliveryConfig selects how recognized text reaches the user
type DeliveryConfig struct {
	Mode             string `yaml:"mode"` // inject, clipboard, file, none
	RestoreClipboard bool   `yaml:"restore_clipboard"`
	PasteDelayMs     int    `yaml:"paste_delay_ms"`
	FallbackToFile   bool   `yaml:"fallback_to_file"`
}

// HotkeyConfig contains global shortcut bindings
type HotkeyConfig struct {
	ToggleRecording string `yaml:"toggle_recording"`
	ToggleListening string `yaml:"toggle_listening"`
	Cancel          string `yaml:"cancel"`
}

// NotificationConfig toggles desktop notifications
type NotificationConfig struct {
	Enabled bool `yaml:"enabled"`
}

// HTTPConfig contains the local status server configuration
type HTTPConfig struct {
	Port    int    `yaml:"port"`
	Address string `yaml:"address"`
	Enabled bool   `yaml:"enabled"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Audio: AudioConfig{
			SampleRate:         16000,
			Channels:           1,
			FrameDurationMs:    30,
			DeviceBufferFrames: 64,
		},
		VAD: VADConfig{
			Aggressiveness:     3,
			SilenceThreshold:   3.0,
			MaxSegmentDuration: 60,
			MinSpeechFrames:    1,
		},
		Transcription: TranscriptionConfig{
			Endpoint:       transcription.DefaultEndpoint,
			Language:       "english",
			ResponseFormat: "json",
			TextPath:       "text",
			Timeout:        60,
			MaxRetries:     1,
			MaxConcurrent:  2,
			QueueSize:      8,
			EnableHTTP2:    true,
			VerifySSL:      true,
		},
		Output: OutputConfig{
			Directory:          "./transcriptions",
			TempMaxAge:         600,
			KeepFailedSegments: true,
		},
		Delivery: DeliveryConfig{
			Mode:             "inject",
			RestoreClipboard: true,
			PasteDelayMs:     100,
			FallbackToFile:   true,
		},
		Hotkeys: HotkeyConfig{
			ToggleRecording: "ctrl+alt+v",
			ToggleListening: "ctrl+alt+l",
			Cancel:          "esc",
		},
		Notifications: NotificationConfig{Enabled: true},
		HTTP: HTTPConfig{
			Port:    9464,
			Address: "127.0.0.1",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// Load reads the configuration file, applies environment overrides and
// validates the result. A missing file is not an error; defaults apply.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg, err := LoadFromReader(bytes.NewReader(data), os.LookupEnv)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes YAML from r on top of the defaults, overlays the
// variables returned by lookup and validates the result. lookup may be nil.
func LoadFromReader(r io.Reader, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()
	if err := decode(r, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if lookup != nil {
		cfg.ApplyEnv(lookup)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ApplyEnv overlays the environment variables the tool has always honoured.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup("LEMONFOX_API_KEY"); ok && v != "" {
		c.Transcription.APIKey = v
	}
	if v, ok := lookup("LEMONFOX_API_URL"); ok && v != "" {
		c.Transcription.Endpoint = v
	}
	if v, ok := lookup("LEMONFOX_DEFAULT_LANGUAGE"); ok && v != "" {
		c.Transcription.Language = v
	}
	if v, ok := lookup("OUTPUT_DIRECTORY"); ok && v != "" {
		c.Output.Directory = v
	}
	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}

	if err := c.VAD.Validate(c.Audio.FrameDurationMs); err != nil {
		return fmt.Errorf("vad config: %w", err)
	}

	if err := c.Transcription.Validate(); err != nil {
		return fmt.Errorf("transcription config: %w", err)
	}

	if err := c.Output.Validate(); err != nil {
		return fmt.Errorf("output config: %w", err)
	}

	if err := c.Delivery.Validate(); err != nil {
		return fmt.Errorf("delivery config: %w", err)
	}

	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates audio configuration
func (a *AudioConfig) Validate() error {
	switch a.SampleRate {
	case 8000, 16000, 32000, 48000:
	default:
		return fmt.Errorf("sample_rate must be one of 8000, 16000, 32000, 48000, got %d", a.SampleRate)
	}

	if a.Channels != 1 {
		return fmt.Errorf("channels must be 1 (mono), got %d", a.Channels)
	}

	switch a.FrameDurationMs {
	case 10, 20, 30:
	default:
		return fmt.Errorf("frame_duration_ms must be 10, 20 or 30, got %d", a.FrameDurationMs)
	}

	if a.DeviceBufferFrames < 1 {
		return fmt.Errorf("device_buffer_frames must be at least 1, got %d", a.DeviceBufferFrames)
	}

	return nil
}

// Validate validates VAD configuration against the frame duration in use
func (v *VADConfig) Validate(frameDurationMs int) error {
	if v.Aggressiveness < 0 || v.Aggressiveness > 3 {
		return fmt.Errorf("aggressiveness must be between 0 and 3, got %d", v.Aggressiveness)
	}

	if v.Threshold < 0 || v.Threshold > 1 {
		return fmt.Errorf("threshold must be between 0 and 1, got %f", v.Threshold)
	}

	if v.SilenceThreshold <= 0 {
		return fmt.Errorf("silence_threshold must be positive, got %f", v.SilenceThreshold)
	}

	if v.MaxSegmentDuration < 0 {
		return fmt.Errorf("max_segment_duration cannot be negative, got %f", v.MaxSegmentDuration)
	}

	if v.MaxSegmentDuration > 0 && v.MaxSegmentDuration*1000 < float64(frameDurationMs) {
		return fmt.Errorf("max_segment_duration (%f) is shorter than one frame", v.MaxSegmentDuration)
	}

	if v.MinSpeechFrames < 1 {
		return fmt.Errorf("min_speech_frames must be at least 1, got %d", v.MinSpeechFrames)
	}

	return nil
}

// Validate validates transcription configuration
func (t *TranscriptionConfig) Validate() error {
	if t.Endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty")
	}

	if t.APIKey == "" {
		return ErrMissingAPIKey
	}

	if t.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", t.Timeout)
	}

	if t.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative, got %d", t.MaxRetries)
	}

	if t.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be at least 1, got %d", t.MaxConcurrent)
	}

	if t.QueueSize < 1 {
		return fmt.Errorf("queue_size must be at least 1, got %d", t.QueueSize)
	}

	validFormats := map[string]bool{"json": true, "verbose_json": true, "text": true}
	if !validFormats[t.ResponseFormat] {
		return fmt.Errorf("response_format must be 'json', 'verbose_json' or 'text', got '%s'", t.ResponseFormat)
	}

	return nil
}

// Validate validates output configuration
func (o *OutputConfig) Validate() error {
	if o.Directory == "" {
		return fmt.Errorf("directory cannot be empty")
	}

	if o.TempMaxAge < 0 {
		return fmt.Errorf("temp_max_age cannot be negative, got %d", o.TempMaxAge)
	}

	return nil
}

// Validate validates delivery configuration
func (d *DeliveryConfig) Validate() error {
	validModes := map[string]bool{"inject": true, "clipboard": true, "file": true, "none": true}
	if !validModes[d.Mode] {
		return fmt.Errorf("mode must be one of [inject, clipboard, file, none], got '%s'", d.Mode)
	}

	if d.PasteDelayMs < 0 {
		return fmt.Errorf("paste_delay_ms cannot be negative, got %d", d.PasteDelayMs)
	}

	return nil
}

// Validate validates HTTP configuration
func (h *HTTPConfig) Validate() error {
	if h.Enabled {
		if h.Port < 1 || h.Port > 65535 {
			return fmt.Errorf("http port must be between 1 and 65535, got %d", h.Port)
		}

		if h.Address == "" {
			return fmt.Errorf("http address cannot be empty when HTTP is enabled")
		}
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// GetFrameDuration returns the capture frame duration
func (a *AudioConfig) GetFrameDuration() time.Duration {
	return time.Duration(a.FrameDurationMs) * time.Millisecond
}

// GetSilenceThreshold returns the trailing silence that closes a segment
func (v *VADConfig) GetSilenceThreshold() time.Duration {
	return time.Duration(v.SilenceThreshold * float64(time.Second))
}

// GetMaxSegmentDuration returns the forced flush length, zero when unlimited
func (v *VADConfig) GetMaxSegmentDuration() time.Duration {
	return time.Duration(v.MaxSegmentDuration * float64(time.Second))
}

// GetTimeoutDuration returns the transcription timeout as a time.Duration
func (t *TranscriptionConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(t.Timeout) * time.Second
}

// GetTempMaxAge returns how long temporary audio files are kept
func (o *OutputConfig) GetTempMaxAge() time.Duration {
	return time.Duration(o.TempMaxAge) * time.Second
}

// GetPasteDelay returns the pause between clipboard write and paste chord
func (d *DeliveryConfig) GetPasteDelay() time.Duration {
	return time.Duration(d.PasteDelayMs) * time.Millisecond
}
