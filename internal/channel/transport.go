// internal/channel/transport.go
package channel

import (
	"context"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"
)

// Conn is one established transport. Read blocks until a text frame arrives
// or the transport closes; Close must make a blocked Read return.
type Conn interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, frame []byte) error
	Close() error
}

// Dialer opens transports. Dial must return when ctx is cancelled.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// WebSocketDialer dials with github.com/coder/websocket.
type WebSocketDialer struct {
	Options *websocket.DialOptions
	// ReadLimit caps inbound frame size in bytes. Zero keeps the library default.
	ReadLimit int64
	Logger    *logrus.Entry
}

func (d *WebSocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	c, resp, err := websocket.Dial(ctx, url, d.Options)
	if err != nil {
		if resp != nil {
			return nil, &HandshakeError{StatusCode: resp.StatusCode, Err: err}
		}
		return nil, err
	}
	if d.ReadLimit > 0 {
		c.SetReadLimit(d.ReadLimit)
	}
	logger := d.Logger
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &wsConn{conn: c, logger: logger}, nil
}

// HandshakeError is returned when the server answered the upgrade request with
// a non-101 status, e.g. 401 for a rejected credential.
type HandshakeError struct {
	StatusCode int
	Err        error
}

func (e *HandshakeError) Error() string {
	return e.Err.Error()
}

func (e *HandshakeError) Unwrap() error {
	return e.Err
}

type wsConn struct {
	conn   *websocket.Conn
	logger *logrus.Entry
}

func (c *wsConn) Read(ctx context.Context) ([]byte, error) {
	for {
		typ, data, err := c.conn.Read(ctx)
		if err != nil {
			return nil, err
		}
		if typ != websocket.MessageText {
			c.logger.Warnf("Received non-text message type %d (%d bytes). Ignoring.", typ, len(data))
			continue
		}
		return data, nil
	}
}

func (c *wsConn) Write(ctx context.Context, frame []byte) error {
	return c.conn.Write(ctx, websocket.MessageText, frame)
}

func (c *wsConn) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "client disconnect")
}
