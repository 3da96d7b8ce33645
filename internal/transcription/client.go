package transcription

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/http2"
)

// DefaultEndpoint is the LemonFox transcription endpoint
const DefaultEndpoint = "https://api.lemonfox.ai/v1/audio/transcriptions"

// Client provides HTTP client functionality for transcription API requests
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *slog.Logger
	recorder   Recorder
	semaphore  chan struct{}

	// Statistics
	totalRequests   uint64
	successRequests uint64
	failedRequests  uint64
	totalRetries    uint64
	avgResponseTime time.Duration

	mu sync.RWMutex
}

// Config contains transcription client configuration
type Config struct {
	Endpoint       string
	APIKey         string
	Language       string
	ResponseFormat string // "json", "verbose_json" or "text"
	TextPath       string
	Timeout        time.Duration
	MaxRetries     int
	MaxConcurrent  int
	RetryBackoff   time.Duration
	EnableHTTP2    bool
	// InsecureSkipVerify disables TLS certificate checks
	InsecureSkipVerify bool
}

// Options are per-request overrides
type Options struct {
	Language       string
	ResponseFormat string
	Prompt         string
}

// Recorder receives request outcomes, typically Prometheus metrics
type Recorder interface {
	RecordTranscriptionRequest()
	RecordTranscriptionRetry()
	RecordTranscriptionSuccess(d time.Duration)
	RecordTranscriptionFailure(kind string, d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) RecordTranscriptionRequest()                      {}
func (nopRecorder) RecordTranscriptionRetry()                        {}
func (nopRecorder) RecordTranscriptionSuccess(time.Duration)         {}
func (nopRecorder) RecordTranscriptionFailure(string, time.Duration) {}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithRecorder sets the outcome recorder
func WithRecorder(r Recorder) ClientOption {
	return func(c *Client) {
		if r != nil {
			c.recorder = r
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// ClientStats represents client statistics
type ClientStats struct {
	TotalRequests   uint64        `json:"total_requests"`
	SuccessRequests uint64        `json:"success_requests"`
	FailedRequests  uint64        `json:"failed_requests"`
	SuccessRate     float64       `json:"success_rate"`
	TotalRetries    uint64        `json:"total_retries"`
	AvgResponseTime time.Duration `json:"avg_response_time"`
	ActiveRequests  int           `json:"active_requests"`
}

// NewClient creates a new transcription HTTP client
func NewClient(config Config, logger *slog.Logger, opts ...ClientOption) (*Client, error) {
	if config.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	if config.Endpoint == "" {
		config.Endpoint = DefaultEndpoint
	}
	if _, err := url.ParseRequestURI(config.Endpoint); err != nil {
		return nil, fmt.Errorf("invalid endpoint %q: %w", config.Endpoint, err)
	}

	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 2
	}
	if config.RetryBackoff <= 0 {
		config.RetryBackoff = 500 * time.Millisecond
	}
	if config.Language == "" {
		config.Language = "english"
	}
	if config.ResponseFormat == "" {
		config.ResponseFormat = "json"
	}
	if config.TextPath == "" {
		config.TextPath = "text"
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		config:    config,
		logger:    logger,
		recorder:  nopRecorder{},
		semaphore: make(chan struct{}, config.MaxConcurrent),
	}
	c.httpClient = newHTTPClient(config, logger)

	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func newHTTPClient(config Config, logger *slog.Logger) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	if config.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}
	if config.EnableHTTP2 {
		if err := http2.ConfigureTransport(transport); err != nil {
			logger.Warn("HTTP/2 unavailable, using HTTP/1.1", slog.String("error", err.Error()))
		}
	}

	return &http.Client{
		Timeout:   config.Timeout,
		Transport: transport,
	}
}

// requestBody builds a fresh body for every attempt
type requestBody func() (io.Reader, string, error)

// TranscribeURL asks the API to fetch and transcribe a remote audio file
func (c *Client) TranscribeURL(ctx context.Context, audioURL string, opts Options) (*Result, error) {
	u, err := url.Parse(audioURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid audio URL %q", audioURL)
	}

	fields := c.fields(opts)
	build := func() (io.Reader, string, error) {
		form := url.Values{}
		form.Set("file", audioURL)
		for _, f := range fields {
			form.Set(f[0], f[1])
		}
		return strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", nil
	}

	return c.transcribe(ctx, "url", build, c.format(opts))
}

// TranscribeAudio uploads in-memory audio as a multipart form
func (c *Client) TranscribeAudio(ctx context.Context, filename string, data []byte, opts Options) (*Result, error) {
	if len(data) == 0 {
		return nil, errors.New("audio data is empty")
	}

	fields := c.fields(opts)
	build := func() (io.Reader, string, error) {
		return createMultipartBody(filename, data, fields)
	}

	return c.transcribe(ctx, "upload", build, c.format(opts))
}

// TranscribeFile reads a local audio file and uploads it
func (c *Client) TranscribeFile(ctx context.Context, path string, opts Options) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio file: %w", err)
	}
	return c.TranscribeAudio(ctx, filepath.Base(path), data, opts)
}

func (c *Client) fields(opts Options) [][2]string {
	language := c.config.Language
	if opts.Language != "" {
		language = opts.Language
	}
	fields := [][2]string{
		{"language", language},
		{"response_format", c.format(opts)},
	}
	if opts.Prompt != "" {
		fields = append(fields, [2]string{"prompt", opts.Prompt})
	}
	return fields
}

func (c *Client) format(opts Options) string {
	if opts.ResponseFormat != "" {
		return opts.ResponseFormat
	}
	return c.config.ResponseFormat
}

// transcribe runs the request with the concurrency cap and retry policy
func (c *Client) transcribe(ctx context.Context, kind string, build requestBody, format string) (*Result, error) {
	if c.config.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	// Acquire semaphore for rate limiting
	select {
	case c.semaphore <- struct{}{}:
		defer func() { <-c.semaphore }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	startTime := time.Now()
	requestID := uuid.NewString()
	c.incrementTotalRequests()
	c.recorder.RecordTranscriptionRequest()

	var lastErr error
	attempts := 0

retry:
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			c.incrementTotalRetries()
			c.recorder.RecordTranscriptionRetry()

			backoff := c.config.RetryBackoff << (attempt - 1)
			if backoff > 30*time.Second {
				backoff = 30 * time.Second
			}

			c.logger.Warn("Retrying transcription request",
				slog.String("request_id", requestID),
				slog.Int("attempt", attempt+1),
				slog.Duration("backoff", backoff),
				slog.String("error", lastErr.Error()))

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				lastErr = ctx.Err()
				break retry
			}
		}

		attempts++
		result, err := c.doRequest(ctx, requestID, build, format)
		if err == nil {
			elapsed := time.Since(startTime)
			c.incrementSuccessRequests()
			c.updateAvgResponseTime(elapsed)
			c.recorder.RecordTranscriptionSuccess(elapsed)

			c.logger.Debug("Transcription completed",
				slog.String("request_id", requestID),
				slog.String("kind", kind),
				slog.Duration("elapsed", elapsed),
				slog.Int("text_length", len(result.Text)))
			return result, nil
		}

		lastErr = err
		if !IsRetryable(err) {
			break
		}
	}

	elapsed := time.Since(startTime)
	c.incrementFailedRequests()
	c.recorder.RecordTranscriptionFailure(ErrorKind(lastErr), elapsed)

	attrs := []any{
		slog.String("request_id", requestID),
		slog.String("kind", kind),
		slog.Int("attempts", attempts),
		slog.String("error", lastErr.Error()),
	}
	var apiErr *APIError
	if errors.As(lastErr, &apiErr) {
		attrs = append(attrs, slog.Int("status", apiErr.StatusCode), slog.String("body", apiErr.Body))
	}
	c.logger.Error("Transcription failed", attrs...)

	return nil, fmt.Errorf("transcription failed after %d attempts: %w", attempts, lastErr)
}

// doRequest performs a single HTTP request to the transcription API
func (c *Client) doRequest(ctx context.Context, requestID string, build requestBody, format string) (*Result, error) {
	body, contentType, err := build()
	if err != nil {
		return nil, fmt.Errorf("failed to create request body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", "lemonfox-voice/1.0")
	httpReq.Header.Set("X-Request-ID", requestID)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, networkError("post", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, networkError("read response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newAPIError(resp.StatusCode, respBody)
	}

	result, err := parseResult(respBody, format, c.config.TextPath)
	if err != nil {
		apiErr := newAPIError(resp.StatusCode, respBody)
		apiErr.Kind = KindDecode
		return nil, fmt.Errorf("%w: %v", apiErr, err)
	}

	return result, nil
}

func networkError(op string, err error) *NetworkError {
	timeout := errors.Is(err, context.DeadlineExceeded)
	var te interface{ Timeout() bool }
	if errors.As(err, &te) && te.Timeout() {
		timeout = true
	}
	return &NetworkError{Op: op, Err: err, Timeout: timeout}
}

// createMultipartBody creates a multipart/form-data request body
func createMultipartBody(filename string, data []byte, fields [][2]string) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fileWriter, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := fileWriter.Write(data); err != nil {
		return nil, "", fmt.Errorf("failed to write audio data: %w", err)
	}

	for _, f := range fields {
		if err := writer.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("failed to write field %s: %w", f[0], err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}

	return &buf, writer.FormDataContentType(), nil
}

// Statistics methods
func (c *Client) incrementTotalRequests() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalRequests++
}

func (c *Client) incrementSuccessRequests() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.successRequests++
}

func (c *Client) incrementFailedRequests() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failedRequests++
}

func (c *Client) incrementTotalRetries() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalRetries++
}

func (c *Client) updateAvgResponseTime(responseTime time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.avgResponseTime == 0 {
		c.avgResponseTime = responseTime
	} else {
		c.avgResponseTime = (c.avgResponseTime + responseTime) / 2
	}
}

// Stats returns current client statistics
func (c *Client) Stats() ClientStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	successRate := float64(0)
	if c.totalRequests > 0 {
		successRate = float64(c.successRequests) / float64(c.totalRequests) * 100
	}

	return ClientStats{
		TotalRequests:   c.totalRequests,
		SuccessRequests: c.successRequests,
		FailedRequests:  c.failedRequests,
		SuccessRate:     successRate,
		TotalRetries:    c.totalRetries,
		AvgResponseTime: c.avgResponseTime,
		ActiveRequests:  len(c.semaphore),
	}
}

// Close waits for in-flight requests to finish or ctx to expire
func (c *Client) Close(ctx context.Context) error {
	for i := 0; i < c.config.MaxConcurrent; i++ {
		select {
		case c.semaphore <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	c.httpClient.CloseIdleConnections()
	return nil
}
