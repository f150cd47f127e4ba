// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import (
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStream_ReceiveAndTransmit(t *testing.T) {
	local, remote := net.Pipe()
	s := NewStream(local)
	defer s.Close()

	go func() {
		remote.Write([]byte("T"))
	}()
	b, err := s.Receive(time.Second)
	require.NoError(t, err)
	assert.Equal(t, byte('T'), b)

	got := make(chan byte, 1)
	go func() {
		buf := make([]byte, 1)
		remote.Read(buf)
		got <- buf[0]
	}()
	require.NoError(t, s.Transmit('O'))
	assert.Equal(t, byte('O'), <-got)
}

func TestStream_Timeout(t *testing.T) {
	local, remote := net.Pipe()
	defer remote.Close()
	s := NewStream(local)
	defer s.Close()

	_, err := s.Receive(20 * time.Millisecond)
	assert.True(t, errors.Is(err, ErrTimeout))
}

func TestStream_ResetInput(t *testing.T) {
	local, remote := net.Pipe()
	defer remote.Close()
	s := NewStream(local)
	defer s.Close()

	go func() {
		remote.Write([]byte{0x00, 0x00, 0x00})
	}()
	require.Eventually(t, func() bool { return len(s.rx) == 3 }, time.Second, time.Millisecond)

	require.NoError(t, s.ResetInput())
	_, err := s.Receive(20 * time.Millisecond)
	assert.True(t, errors.Is(err, ErrTimeout))
}

func TestStream_PeerClosed(t *testing.T) {
	local, remote := net.Pipe()
	s := NewStream(local)
	defer s.Close()

	require.NoError(t, remote.Close())
	_, err := s.Receive(time.Second)
	assert.True(t, errors.Is(err, ErrClosed))
}

func TestWebSocket_RoundTrip(t *testing.T) {
	served := make(chan error, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dev, err := AcceptWebSocket(w, r)
		if err != nil {
			served <- err
			return
		}
		defer dev.Close()

		// Echo one byte, answering 'O' with 'T'
		b, err := dev.Receive(time.Second)
		if err == nil && b == 'O' {
			err = dev.Transmit('T')
		}
		served <- err
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	host, err := DialWebSocket(wsURL, "", "", false)
	require.NoError(t, err)
	defer host.Close()

	require.NoError(t, host.Transmit('O'))
	reply, err := host.Receive(time.Second)
	require.NoError(t, err)
	assert.Equal(t, byte('T'), reply)
	require.NoError(t, <-served)
}

func TestWebSocket_MessagesFormOneStream(t *testing.T) {
	creds := make(chan [2]string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, _ := r.BasicAuth()
		creds <- [2]string{user, pass}
		conn, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte("not link data"))
		conn.WriteMessage(websocket.BinaryMessage, []byte("AB"))
		conn.WriteMessage(websocket.BinaryMessage, []byte{})
		conn.WriteMessage(websocket.BinaryMessage, []byte{0x87, 0x00})
		// Hold the connection until the client is done
		conn.ReadMessage()
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	host, err := DialWebSocket(wsURL, "bench", "secret", false)
	require.NoError(t, err)
	defer host.Close()

	var got []byte
	for i := 0; i < 4; i++ {
		b, err := host.Receive(time.Second)
		require.NoError(t, err)
		got = append(got, b)
	}
	assert.Equal(t, []byte{'A', 'B', 0x87, 0x00}, got)
	assert.Equal(t, [2]string{"bench", "secret"}, <-creds)
}

func TestDialWebSocket_BadScheme(t *testing.T) {
	_, err := DialWebSocket("http://localhost/", "", "", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported URL scheme")
}
