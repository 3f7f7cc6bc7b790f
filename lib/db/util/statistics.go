// Package util
//
// This file implements a size histogram for tracking the distribution of record
// payload sizes. The histogram uses exponential buckets so that a handful of counters
// cover everything from tiny log entries up to multi-megabyte documents.
//
// Key features include:
//   - Fixed memory usage through bucketing
//   - Thread-safe sample addition and querying
//   - Percentile estimation (median, p99, ...)
//
// Record engines use it to report on payload characteristics without keeping every size.
package util

import (
	"math"
	"sync"
)

// ----------------------------------------------------------------------------
// SizeHistogram
// ----------------------------------------------------------------------------

// defaultBoundaries are the upper bounds (inclusive) of all but the last bucket
var defaultBoundaries = []int{
	16, 64, 256, 1024, 4096, // Bytes: 16B to 4KB
	16384, 65536, 262144, 1048576, // KB range: 16KB to 1MB
	4194304, 16777216, 67108864, // MB range: 4MB to 64MB
}

// SizeHistogram tracks the distribution of data sizes
// It organizes sizes into buckets for efficient memory usage
// while still providing usable size estimations.
type SizeHistogram struct {
	mutex      sync.RWMutex
	boundaries []int   // Bucket boundaries
	buckets    []int64 // Count of items in each bucket (one more than boundaries)
	count      int64   // Total number of samples
	sum        int64   // Sum of all sampled sizes
	largest    int     // Largest sample seen
}

// NewSizeHistogram creates a new size histogram with default bucket boundaries
func NewSizeHistogram() *SizeHistogram {
	return &SizeHistogram{
		boundaries: defaultBoundaries,
		buckets:    make([]int64, len(defaultBoundaries)+1),
	}
}

// AddSample adds a size sample to the histogram
//
// Thread-safe: This method is safe for concurrent use
func (h *SizeHistogram) AddSample(size int) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	bucketIndex := len(h.boundaries) // overflow bucket
	for i, boundary := range h.boundaries {
		if size <= boundary {
			bucketIndex = i
			break
		}
	}

	h.buckets[bucketIndex]++
	h.count++
	h.sum += int64(size)
	if size > h.largest {
		h.largest = size
	}
}

// GetCount returns the total number of samples
//
// Thread-safe: This method is safe for concurrent use
func (h *SizeHistogram) GetCount() int64 {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.count
}

// AverageSize returns the average size across all samples
//
// Thread-safe: This method is safe for concurrent use
func (h *SizeHistogram) AverageSize() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if h.count == 0 {
		return 0
	}
	return int(h.sum / h.count)
}

// MedianEstimate estimates the median size based on the histogram
//
// Thread-safe: This method is safe for concurrent use
func (h *SizeHistogram) MedianEstimate() int {
	return h.GetPercentileEstimate(50)
}

// GetPercentileEstimate returns an estimate for the given percentile (0-100).
// The estimate is the midpoint of the bucket containing the percentile,
// capped by the largest sample seen.
//
// Thread-safe: This method is safe for concurrent use
func (h *SizeHistogram) GetPercentileEstimate(percentile int) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if h.count == 0 || percentile < 0 || percentile > 100 {
		return 0
	}

	targetCount := int64(math.Ceil(float64(h.count) * float64(percentile) / 100.0))
	cumulativeCount := int64(0)

	for i, count := range h.buckets {
		cumulativeCount += count
		if cumulativeCount >= targetCount {
			return min(h.bucketMidpoint(i), h.largest)
		}
	}

	return h.largest
}

// bucketMidpoint estimates the representative size of bucket i
func (h *SizeHistogram) bucketMidpoint(i int) int {
	switch {
	case i == 0:
		return h.boundaries[0] / 2
	case i < len(h.boundaries):
		return (h.boundaries[i-1] + h.boundaries[i]) / 2
	default:
		return h.boundaries[len(h.boundaries)-1] * 2
	}
}

// Reset clears all histogram data
//
// Thread-safe: This method is safe for concurrent use
func (h *SizeHistogram) Reset() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.count = 0
	h.sum = 0
	h.largest = 0
	for i := range h.buckets {
		h.buckets[i] = 0
	}
}

// SizeDistribution returns the bucket boundaries and the percentage of samples in each bucket
//
// Thread-safe: This method is safe for concurrent use
func (h *SizeHistogram) SizeDistribution() ([]int, []float64) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	percentages := make([]float64, len(h.buckets))
	if h.count == 0 {
		return h.boundaries, percentages
	}

	for i, count := range h.buckets {
		percentages[i] = float64(count) * 100.0 / float64(h.count)
	}
	return h.boundaries, percentages
}
