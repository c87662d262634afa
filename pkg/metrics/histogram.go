package metrics

import (
	"math"
	"sync"
)

// Histogram records observations into fixed buckets.
type Histogram struct {
	mu      sync.Mutex
	bounds  []float64
	counts  []uint64
	sum     float64
	count   uint64
	minSeen float64
	maxSeen float64
}

// NewHistogram creates a histogram with the given upper bucket bounds. Bounds
// must be sorted ascending; an implicit +Inf bucket is appended.
func NewHistogram(bounds []float64) *Histogram {
	return &Histogram{
		bounds:  append([]float64(nil), bounds...),
		counts:  make([]uint64, len(bounds)+1),
		minSeen: math.Inf(1),
		maxSeen: math.Inf(-1),
	}
}

// Observe records a single observation.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	i := 0
	for i < len(h.bounds) && v > h.bounds[i] {
		i++
	}
	h.counts[i]++
	h.sum += v
	h.count++
	if v < h.minSeen {
		h.minSeen = v
	}
	if v > h.maxSeen {
		h.maxSeen = v
	}
}

// HistogramSummary is a point-in-time view of a histogram.
type HistogramSummary struct {
	Count uint64
	Sum   float64
	Mean  float64
	Min   float64
	Max   float64
}

// Summary returns the current summary statistics.
func (h *Histogram) Summary() HistogramSummary {
	h.mu.Lock()
	defer h.mu.Unlock()

	s := HistogramSummary{Count: h.count, Sum: h.sum}
	if h.count > 0 {
		s.Mean = h.sum / float64(h.count)
		s.Min = h.minSeen
		s.Max = h.maxSeen
	}
	return s
}

// Reset clears all recorded observations.
func (h *Histogram) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i := range h.counts {
		h.counts[i] = 0
	}
	h.sum = 0
	h.count = 0
	h.minSeen = math.Inf(1)
	h.maxSeen = math.Inf(-1)
}
