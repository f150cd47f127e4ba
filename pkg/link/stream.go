// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Stream adapts an io.ReadWriteCloser (a pseudo-terminal, a WebSocket) to
// Driver. A reader goroutine feeds received bytes into a channel so that
// receives can time out.
type Stream struct {
	rwc       io.ReadWriteCloser
	rx        chan byte
	done      chan struct{}
	err       error // set before rx is closed
	closeOnce sync.Once
	buf       [1]byte
}

// NewStream starts reading from rwc
func NewStream(rwc io.ReadWriteCloser) *Stream {
	s := &Stream{
		rwc:  rwc,
		rx:   make(chan byte, 256),
		done: make(chan struct{}),
	}
	go s.readLoop()
	return s
}

func (s *Stream) readLoop() {
	defer close(s.rx)
	buf := make([]byte, 128)
	for {
		n, err := s.rwc.Read(buf)
		for i := 0; i < n; i++ {
			select {
			case s.rx <- buf[i]:
			case <-s.done:
				s.err = ErrClosed
				return
			}
		}
		if err != nil {
			if err == io.EOF {
				s.err = ErrClosed
			} else {
				s.err = fmt.Errorf("%w: %v", ErrClosed, err)
			}
			return
		}
	}
}

func (s *Stream) Receive(timeout time.Duration) (byte, error) {
	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}

	select {
	case b, ok := <-s.rx:
		if !ok {
			return 0, s.err
		}
		return b, nil
	case <-timer:
		return 0, ErrTimeout
	case <-s.done:
		return 0, ErrClosed
	}
}

func (s *Stream) Transmit(b byte) error {
	select {
	case <-s.done:
		return ErrClosed
	default:
	}
	s.buf[0] = b
	if _, err := s.rwc.Write(s.buf[:]); err != nil {
		return fmt.Errorf("%w: %v", ErrClosed, err)
	}
	return nil
}

// ResetInput drops bytes the reader goroutine has queued
func (s *Stream) ResetInput() error {
	for {
		select {
		case _, ok := <-s.rx:
			if !ok {
				return s.err
			}
		default:
			return nil
		}
	}
}

// Drain is a no-op; writes on the wrapped stream are synchronous
func (s *Stream) Drain() error {
	return nil
}

func (s *Stream) Close() error {
	err := ErrClosed
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.rwc.Close()
	})
	return err
}
