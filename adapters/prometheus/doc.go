// Package prometheus exports observer counters and histograms through
// prometheus/client_golang.
package prometheus
