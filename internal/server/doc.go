// Package server provides the optional local HTTP status endpoint: health,
// live pipeline statistics, the redacted configuration and Prometheus metrics.
package server
