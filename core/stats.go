package core

import (
	"sync/atomic"
	"time"
)

// Stats holds the process-wide lifecycle counters: the start instant,
// captured once, and the number of accepted handler dispatches. The counter
// is written only by the routing goroutine but read by the stats surface, so
// it is atomic. There is no reset.
type Stats struct {
	start     time.Time
	responses atomic.Int64
	now       func() time.Time
}

// NewStats captures the process start time.
func NewStats() *Stats {
	s := &Stats{now: time.Now}
	s.start = s.now()
	return s
}

// CountResponse records one accepted dispatch.
func (s *Stats) CountResponse() {
	s.responses.Add(1)
}

// ResponseTimes returns the number of dispatches accepted since start.
func (s *Stats) ResponseTimes() int64 {
	return s.responses.Load()
}

// Uptime returns the elapsed time since the process started.
func (s *Stats) Uptime() time.Duration {
	return s.now().Sub(s.start)
}

// UptimeString is Uptime truncated to whole seconds, for operator display.
func (s *Stats) UptimeString() string {
	return s.Uptime().Truncate(time.Second).String()
}
