package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/allrounder02/Voice-to-text-Lemonfox-whisper-application/internal/audio"
)

// mockServer imitates the LemonFox transcription endpoint for manual runs
type mockServer struct {
	logger *slog.Logger
	apiKey string
	text   string
	delay  time.Duration
}

type transcriptionResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language,omitempty"`
	Duration float64 `json:"duration,omitempty"`
}

func (m *mockServer) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if m.apiKey != "" && r.Header.Get("Authorization") != "Bearer "+m.apiKey {
		http.Error(w, `{"error":"invalid api key"}`, http.StatusUnauthorized)
		return
	}

	var (
		source   string
		duration float64
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			http.Error(w, "Error parsing form", http.StatusBadRequest)
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "Error getting audio file", http.StatusBadRequest)
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			http.Error(w, "Error reading audio file", http.StatusInternalServerError)
			return
		}
		source = header.Filename
		if samples, rate, err := audio.DecodeWAV(data); err == nil && rate > 0 {
			duration = float64(len(samples)) / float64(rate)
		}
	} else {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Error parsing form", http.StatusBadRequest)
			return
		}
		source = r.FormValue("file")
		if source == "" {
			http.Error(w, "file is required", http.StatusBadRequest)
			return
		}
	}

	language := r.FormValue("language")
	format := r.FormValue("response_format")

	m.logger.Info("Transcription request received",
		slog.String("request_id", r.Header.Get("X-Request-ID")),
		slog.String("source", source),
		slog.String("language", language),
		slog.String("response_format", format),
		slog.Float64("duration", duration),
	)

	time.Sleep(m.delay)

	text := m.text
	if text == "" {
		text = fmt.Sprintf("Test transcription %s", uuid.NewString()[:8])
	}

	if format == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		io.WriteString(w, text)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(transcriptionResponse{
		Text:     text,
		Language: language,
		Duration: duration,
	})
}

func main() {
	addr := flag.String("addr", "127.0.0.1:9000", "Listen address")
	apiKey := flag.String("key", "", "Required bearer token, empty accepts any")
	text := flag.String("text", "", "Fixed transcription text, empty generates one per request")
	delay := flag.Duration("delay", 200*time.Millisecond, "Simulated processing time")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	m := &mockServer{logger: logger, apiKey: *apiKey, text: *text, delay: *delay}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/audio/transcriptions", m.handleTranscribe)

	logger.Info("Mock transcription API starting",
		slog.String("endpoint", fmt.Sprintf("http://%s/v1/audio/transcriptions", *addr)),
	)

	if err := http.ListenAndServe(*addr, mux); err != nil {
		logger.Error("Server failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
