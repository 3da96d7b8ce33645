// Package metrics defines the Prometheus metrics of the voice transcriber.
// Each Metrics value owns its registry, so several can coexist in one process.
package metrics
