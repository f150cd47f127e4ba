// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mirrorlink

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Thermoquad/mirrorlink/pkg/link"
	"github.com/charmbracelet/log"
)

// TransferResult describes one completed host transfer
type TransferResult struct {
	Payload []byte
	// Frame is the wire frame as transmitted, after any fault injection
	Frame []byte
	Fault *FaultInjector

	// Readback is the data the device returned, without terminator and
	// without echoed diagnostics
	Readback []byte
	// Expected is what the device should return for the frame it was
	// actually sent: the received payload and the device's own CRC of it
	Expected []byte
	// RemoteVerdict is the verdict announced by a device that echoes
	// diagnostics, VerdictUnknown otherwise
	RemoteVerdict Verdict

	Started      time.Time
	UpDuration   time.Duration
	DownDuration time.Duration
}

// Match returns true if the device persisted exactly what it was sent
func (r *TransferResult) Match() bool {
	return bytes.Equal(r.Readback, r.Expected)
}

// Intact returns true if the readback is the original payload and its CRC
func (r *TransferResult) Intact() bool {
	return bytes.Equal(r.Readback, ExpectedReadback(r.Payload))
}

// staleInputQuiet is how long a driver without its own input flush must be
// silent before the handshake starts
const staleInputQuiet = 10 * time.Millisecond

// Host is the sending end of a link session
type Host struct {
	drv       link.Driver
	cfg       HostConfig
	logger    *log.Logger
	handshake Handshake
}

// NewHost creates a host on drv
func NewHost(drv link.Driver, opts ...HostOption) *Host {
	cfg := defaultHostConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = discardLogger()
	}
	return &Host{
		drv:    drv,
		cfg:    cfg,
		logger: cfg.Logger.WithPrefix("host"),
	}
}

// HandshakeState returns the state the last handshake ended in
func (h *Host) HandshakeState() HandshakeState {
	return h.handshake.State()
}

// Transfer sends payload to the device and reads the stored copy back.
//
// Oversized payloads fail with ErrPayloadTooLarge and a silent device with
// ErrHandshakeTimeout, both before any frame byte is sent. Once streaming
// has started the frame is always sent to the end. A checksum failure on the
// device is not an error here; compare Readback with Expected.
func (h *Host) Transfer(ctx context.Context, payload []byte) (*TransferResult, error) {
	result, err := h.transfer(ctx, payload)
	if h.cfg.Stats != nil {
		verdict := VerdictUnknown
		if result != nil {
			verdict = result.RemoteVerdict
			if verdict == VerdictUnknown {
				verdict = Verify(result.Frame[:len(result.Frame)-1])
			}
		}
		h.cfg.Stats.RecordSession(verdict, err)
	}
	return result, err
}

func (h *Host) transfer(ctx context.Context, payload []byte) (*TransferResult, error) {
	frame, err := EncodeFrame(payload, h.cfg.Capacity)
	if err != nil {
		return nil, err
	}

	result := &TransferResult{
		Payload: payload,
		Fault:   h.cfg.Fault,
		Started: time.Now(),
	}
	if h.cfg.Fault != nil {
		frame, err = h.cfg.Fault.Apply(frame)
		if err != nil {
			return nil, fmt.Errorf("fault injection: %w", err)
		}
		h.logger.Warn("corrupting frame", "fault", h.cfg.Fault.String())
	}
	result.Frame = frame
	result.Expected = h.expectedFor(frame)

	if h.cfg.SettleDelay > 0 {
		h.progress(Progress{Phase: PhaseSettle})
		if err := sleepContext(ctx, h.cfg.SettleDelay); err != nil {
			return nil, err
		}
	}

	// Leftovers of an earlier session, such as the tail of a readback cut
	// short at an early terminator, would be taken for the handshake reply
	if err := link.ResetInput(h.drv, staleInputQuiet); err != nil {
		return nil, fmt.Errorf("reset input: %w", err)
	}

	h.logger.Info("starting handshake")
	h.progress(Progress{Phase: PhaseHandshake})
	h.handshake.Reset()
	if err := h.handshake.Initiate(ctx, h.drv, h.cfg.Timeout); err != nil {
		h.logger.Error("handshake failed", "err", err)
		return nil, err
	}
	h.logger.Info("handshake completed")

	if h.cfg.HandshakeGap > 0 {
		if err := sleepContext(ctx, h.cfg.HandshakeGap); err != nil {
			return nil, err
		}
	}

	if err := h.send(frame, result); err != nil {
		return result, err
	}
	h.logger.Info("frame sent", "bytes", len(frame), "elapsed", result.UpDuration)

	if err := h.readback(result); err != nil {
		return result, err
	}
	h.progress(Progress{Phase: PhaseDone, Done: len(result.Readback)})

	h.logger.Info("readback complete",
		"bytes", len(result.Readback),
		"match", result.Match(),
		"intact", result.Intact(),
		"remote", result.RemoteVerdict)
	return result, nil
}

// send streams the frame one byte per Transmit, timing each call
func (h *Host) send(frame []byte, result *TransferResult) error {
	start := time.Now()
	for i, b := range frame {
		t0 := time.Now()
		if err := h.drv.Transmit(b); err != nil {
			return fmt.Errorf("transmit byte %d: %w", i, err)
		}
		if err := h.drv.Drain(); err != nil {
			return fmt.Errorf("transmit byte %d: %w", i, err)
		}
		elapsed := time.Since(t0)
		if h.cfg.Stats != nil {
			h.cfg.Stats.RecordByte(Up, elapsed)
		}
		h.progress(Progress{Phase: PhaseSending, Done: i + 1, Total: len(frame), Rate: rate(elapsed)})
	}
	result.UpDuration = time.Since(start)
	return nil
}

// readback collects bytes until the terminator
func (h *Host) readback(result *TransferResult) error {
	// Readback plus the longest diagnostic preamble
	limit := h.cfg.Capacity + len(DiagnosticVerifying) + len(DiagnosticCorrupt) + 1
	buf := make([]byte, 0, len(result.Expected)+len(DiagnosticVerifying)+len(DiagnosticCorrupt))

	start := time.Now()
	for {
		t0 := time.Now()
		b, err := h.drv.Receive(h.cfg.Timeout)
		if errors.Is(err, link.ErrTimeout) {
			result.Readback, result.RemoteVerdict = SplitDiagnostics(buf)
			return fmt.Errorf("%w after %d bytes", ErrReadbackTimeout, len(buf))
		}
		if err != nil {
			return fmt.Errorf("readback: %w", err)
		}
		elapsed := time.Since(t0)
		if h.cfg.Stats != nil {
			h.cfg.Stats.RecordByte(Down, elapsed)
		}
		if b == Terminator {
			break
		}
		buf = append(buf, b)
		if len(buf) > limit {
			return fmt.Errorf("readback exceeds %d bytes without terminator", limit)
		}
		h.progress(Progress{Phase: PhaseReadback, Done: len(buf), Rate: rate(elapsed)})
	}
	result.DownDuration = time.Since(start)
	result.Readback, result.RemoteVerdict = SplitDiagnostics(buf)
	return nil
}

// expectedFor returns the readback a device produces for frame, decoding it
// exactly as the device will, as far as the host can see it
func (h *Host) expectedFor(frame []byte) []byte {
	d := NewDecoder(h.cfg.Capacity)
	for _, b := range frame {
		f, err := d.DecodeByte(b)
		if err != nil {
			break
		}
		if f != nil {
			// The host stops reading at the first terminator value
			expected := ExpectedReadback(f.Payload())
			if i := bytes.IndexByte(expected, Terminator); i >= 0 {
				expected = expected[:i]
			}
			return expected
		}
	}
	return nil
}

func (h *Host) progress(p Progress) {
	if h.cfg.OnProgress != nil {
		h.cfg.OnProgress(p)
	}
}

func rate(elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return 1 / elapsed.Seconds()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
