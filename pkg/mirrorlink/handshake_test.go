// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mirrorlink

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Thermoquad/mirrorlink/pkg/link"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandshake_Synced(t *testing.T) {
	hostEnd, deviceEnd := link.Pipe()
	defer hostEnd.Close()

	accepted := make(chan error, 1)
	var device Handshake
	go func() {
		accepted <- device.Accept(context.Background(), deviceEnd, 10*time.Millisecond)
	}()

	var host Handshake
	assert.Equal(t, HandshakeIdle, host.State())
	require.NoError(t, host.Initiate(context.Background(), hostEnd, time.Second))
	assert.Equal(t, HandshakeSynced, host.State())

	require.NoError(t, <-accepted)
	assert.Equal(t, HandshakeSynced, device.State())
	assert.Equal(t, []byte{HandshakeRequest}, hostEnd.Transmitted())
	assert.Equal(t, []byte{HandshakeReply}, deviceEnd.Transmitted())
}

func TestHandshake_Timeout(t *testing.T) {
	hostEnd, _ := link.Pipe()
	defer hostEnd.Close()

	var host Handshake
	err := host.Initiate(context.Background(), hostEnd, 20*time.Millisecond)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrHandshakeTimeout))
	assert.Equal(t, HandshakeFailed, host.State())
}

func TestHandshake_WrongReply(t *testing.T) {
	hostEnd, deviceEnd := link.Pipe()
	defer hostEnd.Close()
	require.NoError(t, deviceEnd.Transmit('X'))

	var host Handshake
	err := host.Initiate(context.Background(), hostEnd, time.Second)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrHandshakeFailed))

	var mismatch *HandshakeMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, byte('X'), mismatch.Actual)
	assert.Equal(t, byte(HandshakeReply), mismatch.Expected)
}

func TestHandshake_AcceptSkipsNoise(t *testing.T) {
	hostEnd, deviceEnd := link.Pipe()
	defer hostEnd.Close()

	for _, b := range []byte("\r\nnoise") {
		require.NoError(t, hostEnd.Transmit(b))
	}
	require.NoError(t, hostEnd.Transmit(HandshakeRequest))

	var device Handshake
	require.NoError(t, device.Accept(context.Background(), deviceEnd, 10*time.Millisecond))
	assert.Equal(t, 7, device.Skipped())

	reply, err := hostEnd.Receive(time.Second)
	require.NoError(t, err)
	assert.Equal(t, byte(HandshakeReply), reply)
}

func TestHandshake_AcceptCancelled(t *testing.T) {
	_, deviceEnd := link.Pipe()
	defer deviceEnd.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	var device Handshake
	err := device.Accept(ctx, deviceEnd, 5*time.Millisecond)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, HandshakeFailed, device.State())
}

func TestHandshake_AcceptClosedLink(t *testing.T) {
	hostEnd, deviceEnd := link.Pipe()
	require.NoError(t, hostEnd.Close())

	var device Handshake
	err := device.Accept(context.Background(), deviceEnd, 5*time.Millisecond)
	assert.True(t, errors.Is(err, link.ErrClosed))
}

func TestHandshakeState_String(t *testing.T) {
	assert.Equal(t, "IDLE", HandshakeIdle.String())
	assert.Equal(t, "AWAIT_PEER", HandshakeAwaitPeer.String())
	assert.Equal(t, "SYNCED", HandshakeSynced.String())
}
