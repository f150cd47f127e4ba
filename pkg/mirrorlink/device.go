// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mirrorlink

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Thermoquad/mirrorlink/pkg/eeprom"
	"github.com/Thermoquad/mirrorlink/pkg/link"
	"github.com/charmbracelet/log"
)

// SessionReport describes one device session
type SessionReport struct {
	Started  time.Time
	Duration time.Duration

	// Bytes discarded while waiting for the handshake request
	Skipped int

	Frame   *Frame
	Verdict Verdict
	// VerifyErr details a VerdictCorrupt result
	VerifyErr error

	// Checksum is the device's own CRC of the received payload, stored at
	// address Frame.Size()
	Checksum uint8
	// Readback is what was read from EEPROM and sent to the host, without
	// diagnostics or terminator
	Readback []byte
}

// Device is the receiving end of a link session. It owns the link and the
// storage for the duration of each session.
type Device struct {
	drv       link.Driver
	store     eeprom.Storage
	cfg       DeviceConfig
	logger    *log.Logger
	decoder   *Decoder
	handshake Handshake
}

// NewDevice creates a device serving drv and mirroring into store
func NewDevice(drv link.Driver, store eeprom.Storage, opts ...DeviceOption) *Device {
	cfg := defaultDeviceConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Capacity <= 0 || cfg.Capacity > store.Size() {
		cfg.Capacity = store.Size()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = discardLogger()
	}
	return &Device{
		drv:     drv,
		store:   store,
		cfg:     cfg,
		logger:  cfg.Logger.WithPrefix("device"),
		decoder: NewDecoder(cfg.Capacity),
	}
}

// Capacity returns the number of EEPROM cells in use
func (d *Device) Capacity() int {
	return d.cfg.Capacity
}

// Serve runs sessions back to back until ctx is done or the link closes.
// A failed session is logged and the device re-arms; no input ends the loop.
func (d *Device) Serve(ctx context.Context) error {
	for {
		report, err := d.RunSession(ctx)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if errors.Is(err, link.ErrClosed) {
			return err
		}
		if err != nil {
			d.logger.Error("session failed", "err", err)
			if err := sleepContext(ctx, d.cfg.PollInterval); err != nil {
				return err
			}
			continue
		}
		if d.cfg.OnSession != nil {
			d.cfg.OnSession(report)
		}
	}
}

// RunSession runs one prepare, handshake, receive, verify, commit and
// readback cycle.
func (d *Device) RunSession(ctx context.Context) (*SessionReport, error) {
	report, err := d.runSession(ctx)
	if d.cfg.Stats != nil && ctx.Err() == nil {
		verdict := VerdictUnknown
		if report != nil {
			verdict = report.Verdict
		}
		d.cfg.Stats.RecordSession(verdict, err)
	}
	return report, err
}

func (d *Device) runSession(ctx context.Context) (*SessionReport, error) {
	// Erase is much slower than write. Erasing everything up front lets the
	// receive loop use plain writes at line rate.
	d.logger.Debug("erasing", "cells", d.cfg.Capacity)
	if err := eeprom.EraseRange(d.store, d.cfg.Capacity); err != nil {
		return nil, fmt.Errorf("erase: %w", err)
	}

	d.handshake.Reset()
	d.logger.Debug("awaiting handshake")
	if err := d.handshake.Accept(ctx, d.drv, d.cfg.PollInterval); err != nil {
		return nil, err
	}
	report := &SessionReport{
		Started: time.Now(),
		Skipped: d.handshake.Skipped(),
	}
	d.logger.Info("handshake completed", "skipped", report.Skipped)

	frame, err := d.receive(ctx)
	if err != nil {
		return report, err
	}
	report.Frame = frame
	if frame.Truncated() {
		d.logger.Warn("frame hit capacity before terminator",
			"err", &PayloadTooLargeError{Length: frame.Size() + 1, Capacity: d.cfg.Capacity})
	}

	if err := d.diagnostic(DiagnosticVerifying); err != nil {
		return report, err
	}
	report.Verdict, report.VerifyErr = VerifyFrame(frame)
	if report.Verdict == VerdictOK {
		d.logger.Info("checksum verified", "size", frame.Size())
	} else {
		d.logger.Warn("data corruption", "size", frame.Size(), "err", report.VerifyErr)
	}
	if err := d.diagnostic(report.Verdict.Diagnostic()); err != nil {
		return report, err
	}

	// The stored checksum is always the device's own
	size := frame.Size()
	report.Checksum = CalculateCRC(frame.Payload())
	if err := d.store.EraseWrite(size, report.Checksum); err != nil {
		return report, fmt.Errorf("commit checksum: %w", err)
	}

	readback := make([]byte, 0, size+1)
	for addr := 0; addr <= size; addr++ {
		b, err := d.store.Read(addr)
		if err != nil {
			return report, fmt.Errorf("readback: %w", err)
		}
		if err := d.transmit(b); err != nil {
			return report, err
		}
		readback = append(readback, b)
	}
	report.Readback = readback
	if err := d.transmit(Terminator); err != nil {
		return report, err
	}
	if err := d.drv.Drain(); err != nil {
		return report, fmt.Errorf("readback: %w", err)
	}

	report.Duration = time.Since(report.Started)
	d.logger.Info("session complete",
		"size", size,
		"verdict", report.Verdict,
		"elapsed", report.Duration)
	return report, nil
}

// receive stores each byte in EEPROM as it arrives and stops at the
// terminator or at capacity
func (d *Device) receive(ctx context.Context) (*Frame, error) {
	d.decoder.Reset()
	lastByte := time.Now()

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		t0 := time.Now()
		b, err := d.drv.Receive(d.cfg.PollInterval)
		if errors.Is(err, link.ErrTimeout) {
			if d.cfg.ReceiveTimeout > 0 && time.Since(lastByte) >= d.cfg.ReceiveTimeout {
				return nil, fmt.Errorf("%w after %d bytes", ErrReceiveTimeout, d.decoder.Len())
			}
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("receive: %w", err)
		}
		lastByte = time.Now()
		if d.cfg.Stats != nil {
			d.cfg.Stats.RecordByte(Up, lastByte.Sub(t0))
		}

		if b != Terminator {
			// Cells were erased before the handshake
			if err := d.store.Write(d.decoder.Len(), b); err != nil {
				return nil, fmt.Errorf("store byte %d: %w", d.decoder.Len(), err)
			}
		}

		frame, err := d.decoder.DecodeByte(b)
		if err != nil {
			return nil, err
		}
		if frame != nil {
			return frame, nil
		}
	}
}

func (d *Device) diagnostic(line string) error {
	if !d.cfg.EchoDiagnostics || line == "" {
		return nil
	}
	for i := 0; i < len(line); i++ {
		if err := d.transmit(line[i]); err != nil {
			return err
		}
	}
	return nil
}

func (d *Device) transmit(b byte) error {
	t0 := time.Now()
	if err := d.drv.Transmit(b); err != nil {
		return fmt.Errorf("transmit: %w", err)
	}
	if d.cfg.Stats != nil {
		d.cfg.Stats.RecordByte(Down, time.Since(t0))
	}
	return nil
}
