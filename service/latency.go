package service

import (
	"math"
	"slices"
)

// LatencyStats accumulates one-way latency samples in nanoseconds.
// Percentiles are exact: they sort the full sample set.
type LatencyStats struct {
	count   uint64
	total   uint64
	min     uint64
	max     uint64
	samples []uint64
}

func NewLatencyStats(capacity int) *LatencyStats {
	return &LatencyStats{min: math.MaxUint64, samples: make([]uint64, 0, capacity)}
}

func (s *LatencyStats) Record(ns uint64) {
	s.count++
	s.total += ns
	if ns < s.min {
		s.min = ns
	}
	if ns > s.max {
		s.max = ns
	}
	s.samples = append(s.samples, ns)
}

func (s *LatencyStats) Count() uint64 { return s.count }

func (s *LatencyStats) Min() uint64 {
	if s.count == 0 {
		return 0
	}
	return s.min
}

func (s *LatencyStats) Max() uint64 { return s.max }

// Mean is the integer average, 0 with no samples.
func (s *LatencyStats) Mean() uint64 {
	if s.count == 0 {
		return 0
	}
	return s.total / s.count
}

// Percentile returns the sample at index floor(p/100*(n-1)) of the sorted
// set. p outside [0,100] is clamped.
func (s *LatencyStats) Percentile(p float64) uint64 {
	return percentile(s.sorted(), p)
}

func (s *LatencyStats) sorted() []uint64 {
	sorted := slices.Clone(s.samples)
	slices.Sort(sorted)
	return sorted
}

func percentile(sorted []uint64, p float64) uint64 {
	if len(sorted) == 0 {
		return 0
	}
	p = min(max(p, 0), 100)
	idx := int(p / 100 * float64(len(sorted)-1))
	return sorted[min(idx, len(sorted)-1)]
}

// LatencySummary is the fixed set of figures reported per run.
type LatencySummary struct {
	Count uint64 `json:"count"`
	Min   uint64 `json:"min_ns"`
	Max   uint64 `json:"max_ns"`
	Mean  uint64 `json:"mean_ns"`
	P50   uint64 `json:"p50_ns"`
	P90   uint64 `json:"p90_ns"`
	P95   uint64 `json:"p95_ns"`
	P99   uint64 `json:"p99_ns"`
	P999  uint64 `json:"p999_ns"`
}

// Summary sorts once and reads every percentile from the same copy.
func (s *LatencyStats) Summary() LatencySummary {
	sorted := s.sorted()
	return LatencySummary{
		Count: s.count,
		Min:   s.Min(),
		Max:   s.max,
		Mean:  s.Mean(),
		P50:   percentile(sorted, 50),
		P90:   percentile(sorted, 90),
		P95:   percentile(sorted, 95),
		P99:   percentile(sorted, 99),
		P999:  percentile(sorted, 99.9),
	}
}
