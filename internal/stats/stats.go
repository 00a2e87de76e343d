// Package stats accumulates round-trip samples for a ping session and
// renders the per-packet and summary lines.
package stats

import (
	"math"
	"sync"
	"time"
)

// Stats is the running accumulator of a ping session. RTT values are kept
// in milliseconds. It is safe for concurrent use: the session loop writes,
// while the reporter and the health endpoint read snapshots.
type Stats struct {
	mu sync.Mutex

	sent     int
	received int

	min   float64
	max   float64
	sum   float64
	sumSq float64

	start time.Time
	end   time.Time
}

// New returns an empty accumulator.
func New() *Stats {
	return &Stats{}
}

// Start records the session start time.
func (s *Stats) Start(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.start = t
	s.end = time.Time{}
}

// Finish records the session end time. Only the first call has effect.
func (s *Stats) Finish(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.end.IsZero() {
		s.end = t
	}
}

// RecordSent counts a transmitted request.
func (s *Stats) RecordSent() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sent++
}

// RecordReply adds one RTT sample. It returns false, leaving the state
// untouched, when every transmitted request already has a reply.
func (s *Stats) RecordReply(rtt time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.received >= s.sent {
		return false
	}

	ms := Milliseconds(rtt)
	if s.received == 0 || ms < s.min {
		s.min = ms
	}
	if s.received == 0 || ms > s.max {
		s.max = ms
	}
	s.sum += ms
	s.sumSq += ms * ms
	s.received++

	return true
}

// Snapshot returns a consistent copy of the accumulator with the derived
// values filled in.
func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Sent:     s.sent,
		Received: s.received,
		Start:    s.start,
		End:      s.end,
	}

	if s.received > 0 {
		n := float64(s.received)
		snap.Min = s.min
		snap.Max = s.max
		mean := s.sum / n
		// Rounding can push the mean just outside [min, max] and the
		// variance slightly below zero.
		snap.Avg = math.Min(math.Max(mean, s.min), s.max)
		variance := s.sumSq/n - mean*mean
		snap.Mdev = math.Sqrt(math.Max(variance, 0))
	}

	return snap
}

// Snapshot is a point-in-time view of a session. RTT fields are in
// milliseconds and are zero while Received is zero.
type Snapshot struct {
	Sent     int
	Received int

	Min  float64
	Avg  float64
	Max  float64
	Mdev float64

	Start time.Time
	End   time.Time
}

// Loss returns the integer packet loss percentage. A session that sent
// nothing reports zero loss.
func (s Snapshot) Loss() int {
	if s.Sent == 0 {
		return 0
	}
	return (s.Sent - s.Received) * 100 / s.Sent
}

// Elapsed returns the session duration. An unfinished session is measured
// up to now.
func (s Snapshot) Elapsed() time.Duration {
	if s.Start.IsZero() {
		return 0
	}
	if s.End.IsZero() {
		return time.Since(s.Start)
	}
	return s.End.Sub(s.Start)
}

// Milliseconds converts d to fractional milliseconds.
func Milliseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
