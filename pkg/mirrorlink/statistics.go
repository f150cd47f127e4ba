// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mirrorlink

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Direction of a byte on the link, seen from the host
type Direction int

const (
	Up   Direction = iota // host -> device
	Down                  // device -> host
)

func (d Direction) String() string {
	if d == Up {
		return "Up"
	}
	return "Down"
}

// Statistics tracks link throughput and session outcomes. It is safe for
// concurrent use so a TUI can read it while a transfer runs.
type Statistics struct {
	mu sync.Mutex

	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	BytesUp           uint64
	BytesDown         uint64
	Sessions          uint64
	Verified          uint64
	Corrupt           uint64
	HandshakeFailures uint64
	TransportErrors   uint64
	OversizedFrames   uint64

	// Time spent inside Transmit/Receive calls
	timeUp   time.Duration
	timeDown time.Duration

	// Rates (calculated), bytes/sec
	InstantUp   float64
	InstantDown float64
	AverageUp   float64
	AverageDown float64
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// RecordByte records one byte moved in elapsed time. The instantaneous rate
// is the inverse of the time taken by that byte.
func (s *Statistics) RecordByte(dir Direction, elapsed time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rate := 0.0
	if elapsed > 0 {
		rate = 1 / elapsed.Seconds()
	}

	switch dir {
	case Up:
		s.BytesUp++
		s.timeUp += elapsed
		s.InstantUp = rate
	case Down:
		s.BytesDown++
		s.timeDown += elapsed
		s.InstantDown = rate
	}
	s.LastUpdateTime = time.Now()
}

// RecordSession records the outcome of a session
func (s *Statistics) RecordSession(verdict Verdict, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Sessions++
	switch {
	case errors.Is(err, ErrHandshakeTimeout), errors.Is(err, ErrHandshakeFailed):
		s.HandshakeFailures++
		return
	case errors.Is(err, ErrPayloadTooLarge):
		s.OversizedFrames++
		return
	case err != nil:
		s.TransportErrors++
		return
	}

	switch verdict {
	case VerdictOK:
		s.Verified++
	case VerdictCorrupt:
		s.Corrupt++
	}
	s.LastUpdateTime = time.Now()
}

// CalculateRates calculates average throughput per direction
func (s *Statistics) CalculateRates() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calculateRates()
}

func (s *Statistics) calculateRates() {
	if s.timeUp > 0 {
		s.AverageUp = float64(s.BytesUp) / s.timeUp.Seconds()
	}
	if s.timeDown > 0 {
		s.AverageDown = float64(s.BytesDown) / s.timeDown.Seconds()
	}
}

// Snapshot returns a copy of the counters and rates
func (s *Statistics) Snapshot() Statistics {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calculateRates()
	return Statistics{
		StartTime:         s.StartTime,
		LastUpdateTime:    s.LastUpdateTime,
		BytesUp:           s.BytesUp,
		BytesDown:         s.BytesDown,
		Sessions:          s.Sessions,
		Verified:          s.Verified,
		Corrupt:           s.Corrupt,
		HandshakeFailures: s.HandshakeFailures,
		TransportErrors:   s.TransportErrors,
		OversizedFrames:   s.OversizedFrames,
		timeUp:            s.timeUp,
		timeDown:          s.timeDown,
		InstantUp:         s.InstantUp,
		InstantDown:       s.InstantDown,
		AverageUp:         s.AverageUp,
		AverageDown:       s.AverageDown,
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	snap := s.Snapshot()

	elapsed := time.Since(snap.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Sessions:        %8d\n", snap.Sessions)
	if snap.Sessions > 0 {
		result += fmt.Sprintf("  Verified:      %8d (%.1f%%)\n", snap.Verified, percent(snap.Verified, snap.Sessions))
	}
	if snap.Corrupt > 0 {
		result += fmt.Sprintf("  Corrupt:       %8d (%.1f%%)\n", snap.Corrupt, percent(snap.Corrupt, snap.Sessions))
	}
	if snap.HandshakeFailures > 0 {
		result += fmt.Sprintf("  Handshake Err: %8d\n", snap.HandshakeFailures)
	}
	if snap.TransportErrors > 0 {
		result += fmt.Sprintf("  Transport Err: %8d\n", snap.TransportErrors)
	}
	if snap.OversizedFrames > 0 {
		result += fmt.Sprintf("  Too Large:     %8d\n", snap.OversizedFrames)
	}
	result += fmt.Sprintf("Bytes Up:        %8d (%.1f bytes/sec)\n", snap.BytesUp, snap.AverageUp)
	result += fmt.Sprintf("Bytes Down:      %8d (%.1f bytes/sec)\n", snap.BytesDown, snap.AverageDown)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.StartTime = now
	s.LastUpdateTime = now
	s.BytesUp = 0
	s.BytesDown = 0
	s.Sessions = 0
	s.Verified = 0
	s.Corrupt = 0
	s.HandshakeFailures = 0
	s.TransportErrors = 0
	s.OversizedFrames = 0
	s.timeUp = 0
	s.timeDown = 0
	s.InstantUp = 0
	s.InstantDown = 0
	s.AverageUp = 0
	s.AverageDown = 0
}

func percent(n, total uint64) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) * 100.0 / float64(total)
}
