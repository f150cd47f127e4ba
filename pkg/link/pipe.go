// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import (
	"sync"
	"time"
)

// pipeBuffer bounds bytes in flight per direction. It is larger than any
// frame the protocol sends so a writer never waits on a slow reader.
const pipeBuffer = 8192

// PipeEnd is one end of an in-memory link
type PipeEnd struct {
	rx     chan byte
	tx     chan byte
	closed chan struct{}
	once   *sync.Once

	mu      sync.Mutex
	txLog   []byte
	latency time.Duration
}

// Pipe returns two connected link ends. Closing either end closes the link.
func Pipe() (*PipeEnd, *PipeEnd) {
	ab := make(chan byte, pipeBuffer)
	ba := make(chan byte, pipeBuffer)
	closed := make(chan struct{})
	once := &sync.Once{}

	a := &PipeEnd{rx: ba, tx: ab, closed: closed, once: once}
	b := &PipeEnd{rx: ab, tx: ba, closed: closed, once: once}
	return a, b
}

// SetLatency delays every transmit from this end, to imitate a slow line
func (p *PipeEnd) SetLatency(d time.Duration) {
	p.mu.Lock()
	p.latency = d
	p.mu.Unlock()
}

// Transmitted returns a copy of every byte this end has sent
func (p *PipeEnd) Transmitted() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]byte, len(p.txLog))
	copy(out, p.txLog)
	return out
}

func (p *PipeEnd) Receive(timeout time.Duration) (byte, error) {
	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}

	// Bytes already in flight are delivered even after close
	select {
	case b := <-p.rx:
		return b, nil
	default:
	}

	select {
	case b := <-p.rx:
		return b, nil
	case <-timer:
		return 0, ErrTimeout
	case <-p.closed:
		return 0, ErrClosed
	}
}

func (p *PipeEnd) Transmit(b byte) error {
	p.mu.Lock()
	latency := p.latency
	p.txLog = append(p.txLog, b)
	p.mu.Unlock()

	if latency > 0 {
		time.Sleep(latency)
	}

	select {
	case <-p.closed:
		return ErrClosed
	default:
	}

	select {
	case p.tx <- b:
		return nil
	case <-p.closed:
		return ErrClosed
	}
}

// ResetInput drops bytes that arrived but were not received
func (p *PipeEnd) ResetInput() error {
	for {
		select {
		case <-p.rx:
		default:
			return nil
		}
	}
}

func (p *PipeEnd) Drain() error {
	return nil
}

func (p *PipeEnd) Close() error {
	p.once.Do(func() {
		close(p.closed)
	})
	return nil
}
