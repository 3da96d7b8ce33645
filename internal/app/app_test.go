package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/allrounder02/Voice-to-text-Lemonfox-whisper-application/internal/audio"
	"github.com/allrounder02/Voice-to-text-Lemonfox-whisper-application/internal/config"
	"github.com/allrounder02/Voice-to-text-Lemonfox-whisper-application/internal/delivery"
	"github.com/allrounder02/Voice-to-text-Lemonfox-whisper-application/internal/transcription"
	"github.com/allrounder02/Voice-to-text-Lemonfox-whisper-application/internal/vad"
)

var testFormat = audio.Format{SampleRate: 16000, FrameDuration: 30 * time.Millisecond}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// speech returns 2 s of tone followed by 3.5 s of silence
func speech() []audio.Frame {
	samples := append(audio.Tone(testFormat, 440, 8000, 2*time.Second), audio.Silence(testFormat, 3500*time.Millisecond)...)
	return audio.SplitFrames(testFormat, samples, time.Now())
}

// gateSource sends its frames, then holds the stream open like a live
// microphone until the session stops it
type gateSource struct {
	frames []audio.Frame
	sent   chan struct{}
	once   sync.Once
}

func newGateSource(frames []audio.Frame) *gateSource {
	return &gateSource{frames: frames, sent: make(chan struct{})}
}

func (g *gateSource) Stream(ctx context.Context, out chan<- audio.Frame) error {
	for _, f := range g.frames {
		select {
		case out <- f:
		case <-ctx.Done():
			return nil
		}
	}
	g.once.Do(func() { close(g.sent) })
	<-ctx.Done()
	return nil
}

type recordingSink struct {
	mu    sync.Mutex
	texts []string
}

func (s *recordingSink) DeliverText(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = append(s.texts, text)
	return nil
}

func (s *recordingSink) FocusedWindow() (delivery.Window, error) {
	return delivery.Window{}, delivery.ErrUnsupported
}

func (s *recordingSink) delivered() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.texts...)
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type harness struct {
	app      *App
	config   *config.Config
	sink     *recordingSink
	out      *syncBuffer
	requests *atomic.Int32
}

func newHarness(t *testing.T, src audio.Source, in io.Reader) *harness {
	t.Helper()

	var requests atomic.Int32
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		io.Copy(io.Discard, r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"text":"hello world"}`))
	}))
	t.Cleanup(api.Close)

	cfg := config.Default()
	cfg.Transcription.APIKey = "test-key"
	cfg.Transcription.Endpoint = api.URL
	cfg.Output.Directory = t.TempDir()

	client, err := transcription.NewClient(transcription.Config{
		Endpoint:     api.URL,
		APIKey:       "test-key",
		Timeout:      5 * time.Second,
		MaxRetries:   1,
		RetryBackoff: time.Millisecond,
	}, testLogger())
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	classifier, err := vad.NewEnergyClassifier(vad.Config{
		SampleRate:     testFormat.SampleRate,
		FrameDuration:  testFormat.FrameDuration,
		Aggressiveness: 3,
	})
	if err != nil {
		t.Fatalf("Failed to create classifier: %v", err)
	}

	store, err := audio.NewTempStore(t.TempDir(), time.Hour, testLogger())
	if err != nil {
		t.Fatalf("Failed to create temp store: %v", err)
	}

	sink := &recordingSink{}
	out := &syncBuffer{}
	a, err := New(&cfg, Deps{
		Transcriber: client,
		Source:      src,
		Classifier:  classifier,
		Sink:        sink,
		TempStore:   store,
	}, testLogger(), in, out)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	return &harness{app: a, config: &cfg, sink: sink, out: out, requests: &requests}
}

// start runs mode in the background and returns a function waiting for it
func (h *harness) start(t *testing.T, mode string) func() error {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	done := make(chan error, 1)
	go func() { done <- h.app.Run(ctx, mode, "") }()

	return func() error {
		select {
		case err := <-done:
			return err
		case <-time.After(10 * time.Second):
			t.Fatal("Mode did not finish")
			return nil
		}
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("Timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func send(t *testing.T, w io.Writer, line string) {
	t.Helper()
	if _, err := io.WriteString(w, line+"\n"); err != nil {
		t.Fatalf("Failed to send %q: %v", line, err)
	}
}

func TestRunURLSavesResult(t *testing.T) {
	h := newHarness(t, nil, strings.NewReader(""))

	if err := h.app.Run(context.Background(), ModeURL, "https://example.com/talk.mp3"); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if got := h.requests.Load(); got != 1 {
		t.Errorf("Expected 1 request, got %d", got)
	}
	files, _ := filepath.Glob(filepath.Join(h.config.Output.Directory, "transcription_*.json"))
	if len(files) != 1 {
		t.Fatalf("Expected one saved result, got %v", files)
	}
	data, _ := os.ReadFile(files[0])
	if !strings.Contains(string(data), "https://example.com/talk.mp3") {
		t.Errorf("Saved result does not name its source: %s", data)
	}
	if !strings.Contains(h.out.String(), "hello world") {
		t.Errorf("Expected text in output, got %q", h.out.String())
	}
}

func TestRunArguments(t *testing.T) {
	tests := []struct {
		name string
		mode string
		arg  string
	}{
		{"url without url", ModeURL, ""},
		{"file without path", ModeFile, ""},
		{"missing file", ModeFile, filepath.Join(t.TempDir(), "absent.wav")},
		{"unknown mode", "karaoke", ""},
		{"listen without microphone", ModeListen, ""},
		{"record without microphone", ModeRecord, ""},
		{"continuous without microphone", ModeContinuous, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil, strings.NewReader(""))
			h.app.deps.Source = nil

			if err := h.app.Run(context.Background(), tt.mode, tt.arg); err == nil {
				t.Error("Expected error")
			}
			if got := h.requests.Load(); got != 0 {
				t.Errorf("Expected no requests, got %d", got)
			}
		})
	}
}

func TestMenu(t *testing.T) {
	wav, err := audio.EncodeWAV(audio.Tone(testFormat, 440, 8000, time.Second), testFormat.SampleRate)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}
	path := filepath.Join(t.TempDir(), "memo.wav")
	if err := os.WriteFile(path, wav, 0o644); err != nil {
		t.Fatal(err)
	}

	input := strings.Join([]string{"9", "1", "", "2", path, "6"}, "\n") + "\n"
	h := newHarness(t, nil, strings.NewReader(input))

	if err := h.app.Run(context.Background(), "", ""); err != nil {
		t.Fatalf("Menu failed: %v", err)
	}

	out := h.out.String()
	for _, want := range []string{
		"Invalid choice",
		"URL cannot be empty.",
		"Transcription saved to",
		"Goodbye.",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in output", want)
		}
	}
	if got := h.requests.Load(); got != 1 {
		t.Errorf("Expected 1 request, got %d", got)
	}
}

func TestMenuEndsWithInput(t *testing.T) {
	h := newHarness(t, nil, strings.NewReader("3\n"))

	done := make(chan error, 1)
	go func() { done <- h.app.Menu(context.Background()) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Menu failed: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Menu did not return at end of input")
	}
	if !strings.Contains(h.out.String(), "Error:") {
		t.Error("Expected the unavailable microphone to be reported")
	}
}

func TestMenuResumesAfterMode(t *testing.T) {
	tests := []struct {
		name   string
		choice string
	}{
		{"continuous", "3"},
		{"record", "4"},
		{"listen", "5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// queued input must reach the menu once the mode returns
			for i := 0; i < 20; i++ {
				input := strings.Join([]string{tt.choice, "q", "6"}, "\n") + "\n"
				h := newHarness(t, newGateSource(nil), strings.NewReader(input))

				done := make(chan error, 1)
				go func() { done <- h.app.Menu(context.Background()) }()

				select {
				case err := <-done:
					if err != nil {
						t.Fatalf("Menu failed: %v", err)
					}
				case <-time.After(5 * time.Second):
					t.Fatal("Menu did not return")
				}
				out := h.out.String()
				if !strings.Contains(out, "Goodbye.") {
					t.Fatalf("Run %d: menu choice 6 was lost, output %q", i, out)
				}
				if strings.Contains(out, "Error:") {
					t.Fatalf("Run %d: unexpected error in output %q", i, out)
				}
			}
		})
	}
}

func TestRecordMode(t *testing.T) {
	src := newGateSource(audio.SplitFrames(testFormat, audio.Tone(testFormat, 440, 8000, time.Second), time.Now()))
	in, w := io.Pipe()
	defer w.Close()
	h := newHarness(t, src, in)
	wait := h.start(t, ModeRecord)

	send(t, w, "r")
	<-src.sent
	if got := h.app.Mode(); got != ModeRecord {
		t.Errorf("Mode = %q, want %q", got, ModeRecord)
	}
	send(t, w, "r")
	waitFor(t, "delivery", func() bool { return len(h.sink.delivered()) == 1 })
	send(t, w, "q")

	if err := wait(); err != nil {
		t.Fatalf("Record mode failed: %v", err)
	}
	if got := h.sink.delivered()[0]; got != "hello world" {
		t.Errorf("Delivered %q", got)
	}
	if got := h.requests.Load(); got != 1 {
		t.Errorf("Expected 1 request, got %d", got)
	}
	if got := h.app.Mode(); got != "" {
		t.Errorf("Mode after quit = %q", got)
	}
}

func TestRecordCancel(t *testing.T) {
	src := newGateSource(audio.SplitFrames(testFormat, audio.Tone(testFormat, 440, 8000, time.Second), time.Now()))
	in, w := io.Pipe()
	defer w.Close()
	h := newHarness(t, src, in)
	wait := h.start(t, ModeRecord)

	send(t, w, "r")
	<-src.sent
	send(t, w, "c")
	send(t, w, "q")

	if err := wait(); err != nil {
		t.Fatalf("Record mode failed: %v", err)
	}
	if got := h.requests.Load(); got != 0 {
		t.Errorf("Cancelled recording was uploaded %d times", got)
	}
	if !strings.Contains(h.out.String(), "Recording cancelled.") {
		t.Errorf("Expected cancel message, got %q", h.out.String())
	}
}

func TestRecordDeviceFailure(t *testing.T) {
	src := &audio.SliceSource{Err: &audio.DeviceError{Op: "open", Err: errors.New("no input device")}}
	in, w := io.Pipe()
	defer w.Close()
	h := newHarness(t, src, in)
	wait := h.start(t, ModeRecord)

	send(t, w, "r")
	waitFor(t, "device error", func() bool { return strings.Contains(h.out.String(), "no input device") })
	send(t, w, "q")

	if err := wait(); err != nil {
		t.Fatalf("Record mode failed: %v", err)
	}
	if got := h.requests.Load(); got != 0 {
		t.Errorf("Expected no requests, got %d", got)
	}
}

func TestListenMode(t *testing.T) {
	src := newGateSource(speech())
	in, w := io.Pipe()
	defer w.Close()
	h := newHarness(t, src, in)
	wait := h.start(t, ModeListen)

	if _, ok := h.app.PipelineStats(); ok {
		t.Error("No pipeline expected before listening starts")
	}

	send(t, w, "l")
	waitFor(t, "delivery", func() bool { return len(h.sink.delivered()) == 1 })
	send(t, w, "l")
	waitFor(t, "stop", func() bool { return strings.Contains(h.out.String(), "Listening stopped.") })
	send(t, w, "q")

	if err := wait(); err != nil {
		t.Fatalf("Listen mode failed: %v", err)
	}
	if got := h.requests.Load(); got != 1 {
		t.Errorf("Expected 1 request, got %d", got)
	}
	stats, ok := h.app.PipelineStats()
	if !ok {
		t.Fatal("Expected stats of the last pipeline")
	}
	if stats.Running || stats.Delivered != 1 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
}

func TestContinuousWritesFiles(t *testing.T) {
	src := newGateSource(speech())
	in, w := io.Pipe()
	defer w.Close()
	h := newHarness(t, src, in)
	wait := h.start(t, ModeContinuous)

	var files []string
	waitFor(t, "transcript file", func() bool {
		files, _ = filepath.Glob(filepath.Join(h.config.Output.Directory, "speech_*.txt"))
		return len(files) == 1
	})
	send(t, w, "q")

	if err := wait(); err != nil {
		t.Fatalf("Continuous mode failed: %v", err)
	}
	data, err := os.ReadFile(files[0])
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "hello world" {
		t.Errorf("Transcript = %q", data)
	}
	if len(h.sink.delivered()) != 0 {
		t.Error("Continuous mode must not use the delivery sink")
	}
}

func TestSessionBusy(t *testing.T) {
	h := newHarness(t, newGateSource(nil), strings.NewReader(""))
	h.app.mode = ModeListen

	if err := h.app.RunRecord(context.Background()); !errors.Is(err, ErrBusy) {
		t.Errorf("Expected ErrBusy, got %v", err)
	}
}
