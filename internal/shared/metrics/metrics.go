package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

var (
	protocolsGenerated = newLabeledCounter()

	protocolsReusedTotal     atomic.Uint64
	varietyFallbackTotal     atomic.Uint64
	protocolsFailedTotal     atomic.Uint64
	jobsReceivedTotal        atomic.Uint64
	jobsCompletedTotal       atomic.Uint64
	jobsFailedTotal          atomic.Uint64
	jobsDeletedUnrecoverable atomic.Uint64

	generateDuration = newHistogram([]float64{1, 5, 10, 25, 50, 100, 250, 500, 1000})
)

// IncProtocolGenerated counts a newly persisted protocol under the rule that produced it.
func IncProtocolGenerated(rule string) {
	protocolsGenerated.Inc(rule)
}

// IncProtocolReused counts a request answered with the day's existing protocol.
func IncProtocolReused() {
	protocolsReusedTotal.Add(1)
}

// IncVarietyFallback counts picks where every candidate collided with recent history.
func IncVarietyFallback() {
	varietyFallbackTotal.Add(1)
}

// IncProtocolFailed counts generation requests that returned an error.
func IncProtocolFailed() {
	protocolsFailedTotal.Add(1)
}

func IncJobsReceived()             { jobsReceivedTotal.Add(1) }
func IncJobsCompleted()            { jobsCompletedTotal.Add(1) }
func IncJobsFailed()               { jobsFailedTotal.Add(1) }
func IncJobsDeletedUnrecoverable() { jobsDeletedUnrecoverable.Add(1) }

// ObserveGenerateDurationMs records a generation duration in milliseconds.
func ObserveGenerateDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	generateDuration.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeLabeledCounter(&buf, "protocols_generated_total", "Protocols generated and stored", "rule", protocolsGenerated.Snapshot())
	writeCounter(&buf, "protocols_reused_total", "Requests answered with an existing protocol for the day", protocolsReusedTotal.Load())
	writeCounter(&buf, "protocols_variety_fallback_total", "Picks where every candidate collided with recent history", varietyFallbackTotal.Load())
	writeCounter(&buf, "protocols_failed_total", "Protocol generation requests that failed", protocolsFailedTotal.Load())
	writeCounter(&buf, "protocol_jobs_received_total", "Queue jobs received", jobsReceivedTotal.Load())
	writeCounter(&buf, "protocol_jobs_completed_total", "Queue jobs completed", jobsCompletedTotal.Load())
	writeCounter(&buf, "protocol_jobs_failed_total", "Queue jobs failed and left for retry", jobsFailedTotal.Load())
	writeCounter(&buf, "protocol_jobs_deleted_unrecoverable_total", "Queue jobs dropped as unrecoverable", jobsDeletedUnrecoverable.Load())
	writeHistogram(&buf, "protocol_generate_duration_ms", "Protocol generation duration in milliseconds", generateDuration.Snapshot())
	return buf.String()
}

type labeledCounter struct {
	mu     sync.Mutex
	values map[string]uint64
}

func newLabeledCounter() *labeledCounter {
	return &labeledCounter{values: make(map[string]uint64)}
}

func (l *labeledCounter) Inc(label string) {
	l.mu.Lock()
	l.values[label]++
	l.mu.Unlock()
}

func (l *labeledCounter) Snapshot() map[string]uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]uint64, len(l.values))
	for k, v := range l.values {
		out[k] = v
	}
	return out
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

// Observe records value in the first bucket whose bound it does not exceed.
func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
			return
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeLabeledCounter(buf *bytes.Buffer, name, help, label string, values map[string]uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(buf, "%s{%s=%q} %d\n", name, label, k, values[k])
	}
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}
