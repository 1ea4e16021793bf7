package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// WebSocketConn adapts a websocket connection to the byte stream a
// FrameSocket expects. Each Write is sent as one binary message; reads drain
// incoming messages in order.
type WebSocketConn struct {
	conn *websocket.Conn

	readMu sync.Mutex
	reader io.Reader

	writeMu sync.Mutex
}

// NewWebSocketConn wraps an established websocket connection.
func NewWebSocketConn(conn *websocket.Conn) *WebSocketConn {
	return &WebSocketConn{conn: conn}
}

// DialWebSocket opens a websocket to url. origin may be empty.
func DialWebSocket(ctx context.Context, url, origin string) (*WebSocketConn, error) {
	header := http.Header{}
	if origin != "" {
		header.Set("Origin", origin)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial websocket %s: %w", url, err)
	}

	logrus.WithFields(logrus.Fields{
		"function": "DialWebSocket",
		"url":      url,
	}).Debug("Websocket connected")
	return NewWebSocketConn(conn), nil
}

// Read implements io.Reader across message boundaries. Text messages are
// treated the same as binary ones.
func (c *WebSocketConn) Read(p []byte) (int, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	for {
		if c.reader == nil {
			_, r, err := c.conn.NextReader()
			if err != nil {
				return 0, err
			}
			c.reader = r
		}
		n, err := c.reader.Read(p)
		if err == io.EOF {
			c.reader = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

// Write sends p as a single binary message.
func (c *WebSocketConn) Write(p []byte) (int, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close closes the underlying connection without a close handshake.
func (c *WebSocketConn) Close() error {
	return c.conn.Close()
}
