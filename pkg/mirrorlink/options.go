// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mirrorlink

import (
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// Phase is the stage a transfer has reached
type Phase int

const (
	PhaseSettle Phase = iota
	PhaseHandshake
	PhaseSending
	PhaseReadback
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseSettle:
		return "settle"
	case PhaseHandshake:
		return "handshake"
	case PhaseSending:
		return "sending"
	case PhaseReadback:
		return "readback"
	case PhaseDone:
		return "done"
	default:
		return "unknown"
	}
}

// Progress reports transfer progress to a ProgressFunc
type Progress struct {
	Phase Phase
	Done  int
	Total int // 0 while the total is unknown (readback)
	Rate  float64
}

// ProgressFunc is called from the transferring goroutine
type ProgressFunc func(Progress)

// HostConfig holds the host session configuration
type HostConfig struct {
	// Capacity is the device EEPROM size in cells
	Capacity int

	// Timeout bounds the handshake reply and each readback byte
	Timeout time.Duration

	// SettleDelay is waited before the handshake
	SettleDelay time.Duration

	// HandshakeGap is waited between the handshake and the first frame byte
	HandshakeGap time.Duration

	// Fault corrupts the outgoing frame (optional)
	Fault *FaultInjector

	Logger     *log.Logger
	Stats      *Statistics
	OnProgress ProgressFunc
}

func defaultHostConfig() HostConfig {
	return HostConfig{
		Capacity:     DefaultCapacity,
		Timeout:      DefaultTimeout,
		HandshakeGap: DefaultHandshakeGap,
	}
}

// HostOption configures a Host
type HostOption func(*HostConfig)

// WithCapacity sets the device EEPROM size the host encodes for
func WithCapacity(capacity int) HostOption {
	return func(c *HostConfig) {
		c.Capacity = capacity
	}
}

// WithTimeout sets the handshake and readback timeout
func WithTimeout(timeout time.Duration) HostOption {
	return func(c *HostConfig) {
		c.Timeout = timeout
	}
}

// WithSettleDelay sets the pause before the handshake
func WithSettleDelay(d time.Duration) HostOption {
	return func(c *HostConfig) {
		c.SettleDelay = d
	}
}

// WithHandshakeGap sets the pause after the handshake
func WithHandshakeGap(d time.Duration) HostOption {
	return func(c *HostConfig) {
		c.HandshakeGap = d
	}
}

// WithFault corrupts one byte of every frame the host sends
func WithFault(f *FaultInjector) HostOption {
	return func(c *HostConfig) {
		c.Fault = f
	}
}

// WithHostLogger sets the host logger
func WithHostLogger(l *log.Logger) HostOption {
	return func(c *HostConfig) {
		c.Logger = l
	}
}

// WithHostStatistics records throughput and outcomes into s
func WithHostStatistics(s *Statistics) HostOption {
	return func(c *HostConfig) {
		c.Stats = s
	}
}

// WithProgress sets a progress callback
func WithProgress(fn ProgressFunc) HostOption {
	return func(c *HostConfig) {
		c.OnProgress = fn
	}
}

// DeviceConfig holds the device configuration
type DeviceConfig struct {
	// Capacity is the number of EEPROM cells used, at most the storage size
	Capacity int

	// PollInterval bounds each blocking receive so cancellation is noticed
	PollInterval time.Duration

	// ReceiveTimeout abandons a frame after this long without a byte.
	// Zero waits forever.
	ReceiveTimeout time.Duration

	// EchoDiagnostics sends the verification lines to the host ahead of the
	// readback, as the bench firmware did
	EchoDiagnostics bool

	Logger    *log.Logger
	Stats     *Statistics
	OnSession func(*SessionReport)
}

func defaultDeviceConfig() DeviceConfig {
	return DeviceConfig{
		PollInterval: DefaultPollInterval,
	}
}

// DeviceOption configures a Device
type DeviceOption func(*DeviceConfig)

// WithDeviceCapacity limits the EEPROM cells the device uses
func WithDeviceCapacity(capacity int) DeviceOption {
	return func(c *DeviceConfig) {
		c.Capacity = capacity
	}
}

// WithPollInterval sets the cancellation poll interval
func WithPollInterval(d time.Duration) DeviceOption {
	return func(c *DeviceConfig) {
		c.PollInterval = d
	}
}

// WithReceiveTimeout abandons stalled frames
func WithReceiveTimeout(d time.Duration) DeviceOption {
	return func(c *DeviceConfig) {
		c.ReceiveTimeout = d
	}
}

// WithEchoDiagnostics sends verification lines over the link
func WithEchoDiagnostics(echo bool) DeviceOption {
	return func(c *DeviceConfig) {
		c.EchoDiagnostics = echo
	}
}

// WithDeviceLogger sets the device logger
func WithDeviceLogger(l *log.Logger) DeviceOption {
	return func(c *DeviceConfig) {
		c.Logger = l
	}
}

// WithDeviceStatistics records throughput and outcomes into s
func WithDeviceStatistics(s *Statistics) DeviceOption {
	return func(c *DeviceConfig) {
		c.Stats = s
	}
}

// WithSessionCallback is called after every completed session
func WithSessionCallback(fn func(*SessionReport)) DeviceOption {
	return func(c *DeviceConfig) {
		c.OnSession = fn
	}
}

func discardLogger() *log.Logger {
	return log.New(io.Discard)
}
