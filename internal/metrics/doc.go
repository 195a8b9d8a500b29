// Package metrics exposes Prometheus counters and histograms for the
// admission pipeline, served on the health HTTP server's /metrics endpoint.
package metrics
