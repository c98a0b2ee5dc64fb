// internal/channel/config.go
package channel

import (
	"errors"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultMaxAttempts bounds consecutive reconnect attempts.
	DefaultMaxAttempts = 5
	// DefaultBaseDelay is the first reconnect delay; each further attempt doubles it.
	DefaultBaseDelay = time.Second
	// DefaultWriteTimeout bounds a single Send.
	DefaultWriteTimeout = 5 * time.Second
)

// ErrInvalidConfig is returned by New when the Config cannot produce a dial URL.
var ErrInvalidConfig = errors.New("channel: invalid config")

// Handler receives the lifecycle events of a Manager. All methods for one
// Manager are invoked sequentially, never concurrently.
type Handler interface {
	OnOpen()
	OnMessage(msg Message)
	OnClose()
	OnError(err error)
}

// HandlerFuncs adapts plain functions to a Handler. Nil fields are no-ops.
type HandlerFuncs struct {
	Open    func()
	Message func(msg Message)
	Close   func()
	Error   func(err error)
}

func (h HandlerFuncs) OnOpen() {
	if h.Open != nil {
		h.Open()
	}
}

func (h HandlerFuncs) OnMessage(msg Message) {
	if h.Message != nil {
		h.Message(msg)
	}
}

func (h HandlerFuncs) OnClose() {
	if h.Close != nil {
		h.Close()
	}
}

func (h HandlerFuncs) OnError(err error) {
	if h.Error != nil {
		h.Error(err)
	}
}

// Metrics lets callers plug in a collector for channel activity.
type Metrics interface {
	IncConnections()
	IncDisconnects()
	IncReconnectAttempts()
	IncFramesReceived()
	IncFramesSent()
	IncDecodeErrors()
	SetConnectionStatus(status float64)
}

type nopMetrics struct{}

func (nopMetrics) IncConnections()              {}
func (nopMetrics) IncDisconnects()              {}
func (nopMetrics) IncReconnectAttempts()        {}
func (nopMetrics) IncFramesReceived()           {}
func (nopMetrics) IncFramesSent()               {}
func (nopMetrics) IncDecodeErrors()             {}
func (nopMetrics) SetConnectionStatus(float64) {}

// Config configures a Manager. Only Endpoint and Credential are required.
type Config struct {
	// Endpoint is the ws://, wss://, http:// or https:// URL to dial.
	Endpoint string
	// Credential is presented on every (re)connect and never mutated.
	Credential string
	// Handshake selects how Credential is put on the dial URL.
	Handshake Handshake

	// ManualConnect stops New from connecting immediately.
	ManualConnect bool

	// MaxAttempts bounds consecutive reconnect attempts. Zero means
	// DefaultMaxAttempts; a negative value disables reconnecting.
	MaxAttempts int
	// BaseDelay is the delay before the first reconnect attempt. Zero means DefaultBaseDelay.
	BaseDelay time.Duration
	// WriteTimeout bounds a single Send. Zero means DefaultWriteTimeout.
	WriteTimeout time.Duration

	Handler Handler
	Dialer  Dialer
	Metrics Metrics
	Logger  *logrus.Entry
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts == 0 {
		c.MaxAttempts = DefaultMaxAttempts
	} else if c.MaxAttempts < 0 {
		c.MaxAttempts = 0
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = DefaultBaseDelay
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.Handler == nil {
		c.Handler = HandlerFuncs{}
	}
	if c.Metrics == nil {
		c.Metrics = nopMetrics{}
	}
	if c.Logger == nil {
		c.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	if c.Dialer == nil {
		c.Dialer = &WebSocketDialer{Logger: c.Logger}
	}
	return c
}
