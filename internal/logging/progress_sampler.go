package logging

import (
	"math"
	"strings"
	"time"
)

const defaultIndeterminateInterval = 30 * time.Second

// ProgressSampler decides which encoder progress callbacks are worth a log
// line. Determinate progress logs each time it crosses the next step
// boundary; progress without a known duration logs at most once per interval.
// A new key (the file being encoded) always logs and restarts the steps.
type ProgressSampler struct {
	step     float64
	interval time.Duration
	now      func() time.Time

	key      string
	next     float64
	lastEmit time.Time
}

// NewProgressSampler returns a sampler with the given step in percent
// (default 5).
func NewProgressSampler(step float64) *ProgressSampler {
	if step <= 0 {
		step = 5
	}
	return &ProgressSampler{step: step, interval: defaultIndeterminateInterval, now: time.Now}
}

// ShouldLog reports whether this observation should be logged. percent is
// negative when the total duration is unknown.
func (s *ProgressSampler) ShouldLog(percent float64, key string) bool {
	if s == nil {
		return true
	}
	now := s.now()
	key = strings.TrimSpace(key)
	if key != "" && key != s.key {
		s.key = key
		s.next = 0
		if percent >= 0 {
			s.advance(percent)
		}
		s.lastEmit = now
		return true
	}
	if percent < 0 {
		if now.Sub(s.lastEmit) < s.interval {
			return false
		}
		s.lastEmit = now
		return true
	}
	if percent < s.next {
		return false
	}
	s.advance(percent)
	s.lastEmit = now
	return true
}

func (s *ProgressSampler) advance(percent float64) {
	if percent >= 100 {
		s.next = math.Inf(1)
		return
	}
	s.next = (math.Floor(percent/s.step) + 1) * s.step
}

// Reset forgets the current key so the next observation logs.
func (s *ProgressSampler) Reset() {
	if s == nil {
		return
	}
	s.key = ""
	s.next = 0
	s.lastEmit = time.Time{}
}
