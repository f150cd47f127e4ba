// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketConn presents a WebSocket as a plain byte stream. Each binary
// message is a run of link bytes; message boundaries carry no meaning, so
// reads continue across them. Text and other frames are skipped.
type WebSocketConn struct {
	conn *websocket.Conn
	msg  io.Reader // body of the binary message being read, nil between messages
	err  error     // sticky read error
}

// NewWebSocketConn wraps an established WebSocket connection
func NewWebSocketConn(conn *websocket.Conn) *WebSocketConn {
	return &WebSocketConn{conn: conn}
}

func (w *WebSocketConn) Read(p []byte) (int, error) {
	for w.err == nil {
		if w.msg == nil {
			w.err = w.nextBinary()
			continue
		}
		n, err := w.msg.Read(p)
		if err == io.EOF {
			w.msg = nil
			if n == 0 {
				continue
			}
			err = nil
		}
		if err != nil {
			w.err = err
		}
		return n, err
	}
	return 0, w.err
}

// nextBinary advances to the next binary message
func (w *WebSocketConn) nextBinary() error {
	for {
		kind, r, err := w.conn.NextReader()
		if err != nil {
			return err
		}
		if kind == websocket.BinaryMessage {
			w.msg = r
			return nil
		}
	}
}

// Write sends p as one binary message
func (w *WebSocketConn) Write(p []byte) (int, error) {
	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close drops the connection without a closing handshake; the peer sees
// the link as closed either way
func (w *WebSocketConn) Close() error {
	return w.conn.Close()
}

// DialWebSocket connects to a WebSocket bridge with optional HTTP Basic auth
// and returns it as a Driver
func DialWebSocket(wsURL, username, password string, skipSSLVerify bool) (*Stream, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	switch u.Scheme {
	case "ws":
	case "wss":
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: skipSSLVerify}
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	headers := http.Header{}
	if username != "" && password != "" {
		headers.Set("Authorization", "Basic "+basicAuth(username, password))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %w", err)
	}

	return NewStream(NewWebSocketConn(conn)), nil
}

func basicAuth(username, password string) string {
	return base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
}

// Upgrader accepts WebSocket link connections on the device side
var Upgrader = websocket.Upgrader{
	ReadBufferSize:  64,
	WriteBufferSize: 64,
}

// AcceptWebSocket upgrades an HTTP request to a link Driver
func AcceptWebSocket(w http.ResponseWriter, r *http.Request) (*Stream, error) {
	conn, err := Upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("WebSocket upgrade failed: %w", err)
	}
	return NewStream(NewWebSocketConn(conn)), nil
}
