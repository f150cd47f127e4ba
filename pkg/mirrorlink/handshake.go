// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mirrorlink

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Thermoquad/mirrorlink/pkg/link"
)

// HandshakeState is the position of one end in the handshake
type HandshakeState int

const (
	HandshakeIdle HandshakeState = iota
	HandshakeAwaitPeer
	HandshakeSynced
	HandshakeFailed
)

func (s HandshakeState) String() string {
	switch s {
	case HandshakeIdle:
		return "IDLE"
	case HandshakeAwaitPeer:
		return "AWAIT_PEER"
	case HandshakeSynced:
		return "SYNCED"
	case HandshakeFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("HandshakeState(%d)", int(s))
	}
}

// Handshake runs the two message handshake on one end of a link:
// the host sends 'O', the device answers 'T'. Nothing is negotiated.
type Handshake struct {
	state   HandshakeState
	skipped int
}

// State returns the current handshake state
func (h *Handshake) State() HandshakeState {
	return h.state
}

// Skipped returns how many bytes the device discarded while waiting for
// the request
func (h *Handshake) Skipped() int {
	return h.skipped
}

// Reset returns the handshake to IDLE
func (h *Handshake) Reset() {
	h.state = HandshakeIdle
	h.skipped = 0
}

// Initiate performs the host side. It transmits the request and waits up to
// timeout for the reply. There is no retry.
func (h *Handshake) Initiate(ctx context.Context, drv link.Driver, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		h.state = HandshakeFailed
		return err
	}

	h.state = HandshakeAwaitPeer
	if err := drv.Transmit(HandshakeRequest); err != nil {
		h.state = HandshakeFailed
		return fmt.Errorf("handshake request: %w", err)
	}
	if err := drv.Drain(); err != nil {
		h.state = HandshakeFailed
		return fmt.Errorf("handshake request: %w", err)
	}

	reply, err := drv.Receive(timeout)
	if err != nil {
		h.state = HandshakeFailed
		if errors.Is(err, link.ErrTimeout) {
			return fmt.Errorf("%w: no reply within %v", ErrHandshakeTimeout, timeout)
		}
		return fmt.Errorf("handshake reply: %w", err)
	}
	if reply != HandshakeReply {
		h.state = HandshakeFailed
		return &HandshakeMismatchError{Expected: HandshakeReply, Actual: reply}
	}

	h.state = HandshakeSynced
	return nil
}

// Accept performs the device side. It discards bytes until the request
// arrives, then replies. poll bounds each blocking receive so ctx is
// honoured; Accept otherwise waits forever.
func (h *Handshake) Accept(ctx context.Context, drv link.Driver, poll time.Duration) error {
	h.state = HandshakeAwaitPeer
	h.skipped = 0

	for {
		if err := ctx.Err(); err != nil {
			h.state = HandshakeFailed
			return err
		}

		b, err := drv.Receive(poll)
		if errors.Is(err, link.ErrTimeout) {
			continue
		}
		if err != nil {
			h.state = HandshakeFailed
			return fmt.Errorf("awaiting handshake: %w", err)
		}
		if b != HandshakeRequest {
			h.skipped++
			continue
		}

		if err := drv.Transmit(HandshakeReply); err != nil {
			h.state = HandshakeFailed
			return fmt.Errorf("handshake reply: %w", err)
		}
		h.state = HandshakeSynced
		return nil
	}
}
