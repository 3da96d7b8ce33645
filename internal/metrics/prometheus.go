package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics contains all Prometheus metrics for the voice transcriber
type Metrics struct {
	registry *prometheus.Registry

	// VAD metrics
	FramesClassified prometheus.Counter
	SpeechFrames     prometheus.Counter

	// Segmentation metrics
	SegmentsEmitted prometheus.Counter
	SegmentsForced  prometheus.Counter
	SegmentDuration prometheus.Histogram
	QueueDepth      prometheus.Gauge
	QueueDrops      prometheus.Counter

	// Transcription metrics
	TranscriptionRequests  prometheus.Counter
	TranscriptionSuccesses prometheus.Counter
	TranscriptionFailures  *prometheus.CounterVec
	TranscriptionDuration  prometheus.Histogram
	TranscriptionRetries   prometheus.Counter

	// Delivery metrics
	Deliveries *prometheus.CounterVec

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates all metrics in a fresh registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		FramesClassified: factory.NewCounter(prometheus.CounterOpts{
			Name: "lemonfox_vad_frames_total",
			Help: "Total number of audio frames classified",
		}),
		SpeechFrames: factory.NewCounter(prometheus.CounterOpts{
			Name: "lemonfox_vad_speech_frames_total",
			Help: "Total number of frames classified as speech",
		}),

		SegmentsEmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "lemonfox_segments_emitted_total",
			Help: "Total number of speech segments emitted",
		}),
		SegmentsForced: factory.NewCounter(prometheus.CounterOpts{
			Name: "lemonfox_segments_forced_total",
			Help: "Total number of segments cut at the maximum duration",
		}),
		SegmentDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "lemonfox_segment_duration_seconds",
			Help:    "Duration of emitted speech segments",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 9), // 250ms to ~1 minute
		}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "lemonfox_upload_queue_depth",
			Help: "Current number of segments waiting for upload",
		}),
		QueueDrops: factory.NewCounter(prometheus.CounterOpts{
			Name: "lemonfox_upload_queue_drops_total",
			Help: "Total number of segments evicted from a full upload queue",
		}),

		TranscriptionRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "lemonfox_transcription_requests_total",
			Help: "Total number of transcription requests sent",
		}),
		TranscriptionSuccesses: factory.NewCounter(prometheus.CounterOpts{
			Name: "lemonfox_transcription_successes_total",
			Help: "Total number of successful transcription requests",
		}),
		TranscriptionFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lemonfox_transcription_failures_total",
			Help: "Total number of failed transcription requests",
		}, []string{"kind"}),
		TranscriptionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "lemonfox_transcription_duration_seconds",
			Help:    "Duration of transcription requests including retries",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~50s
		}),
		TranscriptionRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "lemonfox_transcription_retries_total",
			Help: "Total number of transcription request retries",
		}),

		Deliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lemonfox_deliveries_total",
			Help: "Total number of text deliveries by sink and outcome",
		}, []string{"sink", "outcome"}),

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lemonfox_http_requests_total",
			Help: "Total number of status API requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lemonfox_http_request_duration_seconds",
			Help:    "Duration of status API requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
	}
}

// Registry returns the registry holding all metrics
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordFrame counts a classified frame
func (m *Metrics) RecordFrame(speech bool) {
	m.FramesClassified.Inc()
	if speech {
		m.SpeechFrames.Inc()
	}
}

// RecordSegment records an emitted segment
func (m *Metrics) RecordSegment(duration time.Duration, forced bool) {
	m.SegmentsEmitted.Inc()
	if forced {
		m.SegmentsForced.Inc()
	}
	m.SegmentDuration.Observe(duration.Seconds())
}

// RecordQueueDrop counts an evicted segment
func (m *Metrics) RecordQueueDrop() {
	m.QueueDrops.Inc()
}

// SetQueueDepth sets the current upload queue length
func (m *Metrics) SetQueueDepth(n int) {
	m.QueueDepth.Set(float64(n))
}

// RecordTranscriptionRequest increments transcription requests counter
func (m *Metrics) RecordTranscriptionRequest() {
	m.TranscriptionRequests.Inc()
}

// RecordTranscriptionSuccess records a successful transcription
func (m *Metrics) RecordTranscriptionSuccess(d time.Duration) {
	m.TranscriptionSuccesses.Inc()
	m.TranscriptionDuration.Observe(d.Seconds())
}

// RecordTranscriptionFailure records a failed transcription
func (m *Metrics) RecordTranscriptionFailure(kind string, d time.Duration) {
	m.TranscriptionFailures.WithLabelValues(kind).Inc()
	m.TranscriptionDuration.Observe(d.Seconds())
}

// RecordTranscriptionRetry increments the retry counter
func (m *Metrics) RecordTranscriptionRetry() {
	m.TranscriptionRetries.Inc()
}

// RecordDelivery records a delivery outcome
func (m *Metrics) RecordDelivery(sink, outcome string) {
	m.Deliveries.WithLabelValues(sink, outcome).Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, d time.Duration) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(d.Seconds())
}
