// Package transcription implements the HTTP client for the LemonFox transcription API.
// Audio is submitted as a remote URL, a local file or an in-memory WAV segment.
// Failures are typed: APIError carries the HTTP status and body, NetworkError marks
// transport failures and timeouts. Retryable failures are repeated with backoff.
package transcription
