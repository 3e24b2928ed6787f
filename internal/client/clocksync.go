package client

import (
	"math"
	"sort"
)

// clockSyncSampleCapacity is the offset-sample ring size; it is above the
// lower bound of 10 samples spec.md §4.7 sets.
const clockSyncSampleCapacity = 16

// ClockSync estimates the offset between the client's local clock and
// the server's authoritative clock from round-trip ping/pong samples,
// smoothing out jitter with a median/stddev outlier filter before
// exposing a single usable offset. Grounded on the teacher's
// game_snapshot.go ring discipline (fixed-capacity, oldest evicted
// first), narrowed to a single running statistic instead of a render
// buffer.
type ClockSync struct {
	samples []float64 // offset_ms, oldest first
}

// NewClockSync creates an empty ClockSync.
func NewClockSync() *ClockSync {
	return &ClockSync{samples: make([]float64, 0, clockSyncSampleCapacity)}
}

// Sample records one round-trip measurement (spec.md §4.7):
// clientSendMs/clientReceiveMs are the client's own clock at ping-send
// and pong-receive; serverReceiveMs/serverSendMs come from the pong
// payload, both relative to the server's epoch.
func (c *ClockSync) Sample(clientSendMs, clientReceiveMs, serverReceiveMs, serverSendMs uint32) {
	rtt := float64(clientReceiveMs-clientSendMs) - float64(serverSendMs-serverReceiveMs)
	serverTimeAtReceive := float64(serverSendMs) + rtt/2
	offset := serverTimeAtReceive - float64(clientReceiveMs)

	c.samples = append(c.samples, offset)
	if len(c.samples) > clockSyncSampleCapacity {
		c.samples = c.samples[1:]
	}
}

// SmoothedOffsetMs implements spec.md §4.7's smoothing rule: arithmetic
// mean below 3 samples, otherwise a median/stddev outlier filter with a
// median fallback if every sample gets rejected.
func (c *ClockSync) SmoothedOffsetMs() float64 {
	n := len(c.samples)
	if n == 0 {
		return 0
	}
	if n < 3 {
		return mean(c.samples)
	}

	sorted := append([]float64(nil), c.samples...)
	sort.Float64s(sorted)
	med := median(sorted)
	sd := stddev(c.samples, med)
	threshold := math.Max(1.0, 1.5*sd)

	var survivors []float64
	for _, x := range c.samples {
		if math.Abs(x-med) <= threshold {
			survivors = append(survivors, x)
		}
	}
	if len(survivors) == 0 {
		return med
	}
	return mean(survivors)
}

// ServerTimeNowMs maps the client's current local clock reading to an
// estimate of the server's current clock.
func (c *ClockSync) ServerTimeNowMs(clientNowMs uint32) float64 {
	return float64(clientNowMs) + c.SmoothedOffsetMs()
}

// SampleCount reports how many samples are currently retained.
func (c *ClockSync) SampleCount() int {
	return len(c.samples)
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func stddev(xs []float64, mean float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sumSq float64
	for _, x := range xs {
		d := x - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(xs)))
}
