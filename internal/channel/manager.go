// internal/channel/manager.go

// Package channel maintains one logical real-time connection to the game
// server. A Manager dials a JSON-over-WebSocket transport, re-establishes it
// after unexpected loss with exponential backoff, and surfaces open, message,
// close and error events to a single Handler.
package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/dicebet/internal/middleware"
	"github.com/sirupsen/logrus"
)

// ErrNotConnected is returned by Send while the channel is not open.
var ErrNotConnected = errors.New("channel: not connected")

// scheduleFunc runs f after d and returns a function that cancels it.
type scheduleFunc func(d time.Duration, f func()) (stop func() bool)

func afterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

// Manager owns at most one transport at a time. Connect, Send and Disconnect
// never wait on the network beyond Send's write; callbacks run on an internal
// goroutine and may call back into the Manager.
type Manager struct {
	ID uuid.UUID

	endpoint     string
	dialURL      string
	maxAttempts  int
	baseDelay    time.Duration
	writeTimeout time.Duration
	handler      Handler
	dialer       Dialer
	metrics      Metrics
	logger       *logrus.Entry
	schedule     scheduleFunc

	mu       sync.Mutex
	state    State
	attempts int
	// epoch changes on every Connect and Disconnect; a close whose epoch is
	// stale no longer decides about reconnecting.
	epoch uint64
	cur   *link
	retry *pendingRetry
}

// link is one transport lifetime, from dial to close.
type link struct {
	ctx    context.Context
	cancel context.CancelFunc
	conn   Conn
	// released is set before the owner tears the link down, so its close
	// does not schedule a reconnect.
	released bool
	done     chan struct{}
}

type pendingRetry struct {
	stop func() bool
}

// New validates cfg and returns a Manager. Unless cfg.ManualConnect is set the
// first connection attempt starts before New returns.
func New(cfg Config) (*Manager, error) {
	cfg = cfg.withDefaults()
	dialURL, err := buildDialURL(cfg.Endpoint, cfg.Credential, cfg.Handshake)
	if err != nil {
		return nil, err
	}

	id := uuid.New()
	m := &Manager{
		ID:           id,
		endpoint:     cfg.Endpoint,
		dialURL:      dialURL,
		maxAttempts:  cfg.MaxAttempts,
		baseDelay:    cfg.BaseDelay,
		writeTimeout: cfg.WriteTimeout,
		handler:      cfg.Handler,
		dialer:       cfg.Dialer,
		metrics:      cfg.Metrics,
		logger: cfg.Logger.WithFields(logrus.Fields{
			"channel_id": id.String(),
			"endpoint":   cfg.Endpoint,
		}),
		schedule: afterFunc,
		state:    StateIdle,
	}

	if !cfg.ManualConnect {
		m.Connect()
	}
	return m, nil
}

// Connect opens a new transport, closing the current one first. The replaced
// transport still reports OnClose but never triggers a reconnect. Connect also
// cancels a pending reconnect and resets the attempt counter.
func (m *Manager) Connect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = 0
	m.connectLocked()
}

func (m *Manager) connectLocked() {
	m.stopRetryLocked()
	m.epoch++

	var prev <-chan struct{}
	if old := m.cur; old != nil {
		m.releaseLocked(old)
		prev = old.done
	}

	ctx, cancel := context.WithCancel(context.Background())
	l := &link{ctx: ctx, cancel: cancel, done: make(chan struct{})}
	m.cur = l
	m.state = StateConnecting
	m.logger.WithField("attempt", m.attempts).Info("Connecting")

	go m.run(l, prev)
}

// Disconnect closes the transport and suppresses any pending or future
// automatic reconnect. Calling it again is a no-op.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.epoch++
	m.stopRetryLocked()
	if m.cur != nil {
		m.releaseLocked(m.cur)
		m.cur = nil
		m.logger.Info("Disconnect requested")
	}
	m.state = StateClosed
}

// releaseLocked marks l as owner-closed and starts tearing it down.
func (m *Manager) releaseLocked(l *link) {
	l.released = true
	if l.conn == nil {
		// still dialing
		l.cancel()
		return
	}
	go func(c Conn) {
		if err := c.Close(); err != nil {
			m.logger.Debugf("close transport: %v", err)
		}
	}(l.conn)
}

func (m *Manager) stopRetryLocked() {
	if m.retry != nil {
		m.retry.stop()
		m.retry = nil
	}
}

// IsConnected reports whether the channel is open.
func (m *Manager) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == StateOpen && m.cur != nil && m.cur.conn != nil
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Attempts returns the number of consecutive reconnect attempts since the last open.
func (m *Manager) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

// Send serializes v as JSON and writes it as one text frame. Messages sent while
// the channel is not open are dropped and ErrNotConnected is returned.
func (m *Manager) Send(v interface{}) error {
	m.mu.Lock()
	var conn Conn
	if m.state == StateOpen && m.cur != nil {
		conn = m.cur.conn
	}
	m.mu.Unlock()

	if conn == nil {
		m.logger.Warn("Send while not connected; message dropped")
		return ErrNotConnected
	}

	data, err := json.Marshal(v)
	if err != nil {
		m.logger.Errorf("Error marshaling message: %v", err)
		return fmt.Errorf("channel: marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.writeTimeout)
	defer cancel()
	if err := conn.Write(ctx, data); err != nil {
		m.logger.Errorf("Error writing message: %v", err)
		return fmt.Errorf("channel: write: %w", err)
	}
	m.metrics.IncFramesSent()
	m.logger.Debugf("Sent frame (%d bytes)", len(data))
	return nil
}

// run drives one link: dial, open, read until closed, then decide about
// reconnecting. prev is closed once the replaced link has finished
// dispatching, which keeps callbacks strictly ordered.
func (m *Manager) run(l *link, prev <-chan struct{}) {
	defer close(l.done)
	defer l.cancel()

	// The replaced transport is fully torn down before the new dial, so at
	// most one socket is live per Manager.
	if prev != nil {
		<-prev
	}
	conn, err := m.dialer.Dial(l.ctx, m.dialURL)

	if err != nil {
		m.mu.Lock()
		released := l.released
		m.mu.Unlock()
		if !released {
			m.logger.Errorf("Error establishing WebSocket connection: %v", err)
			m.dispatchError(&DialError{Endpoint: m.endpoint, Err: err})
		}
		m.closed(l, err)
		return
	}

	m.mu.Lock()
	if l.released {
		m.mu.Unlock()
		if cerr := conn.Close(); cerr != nil {
			m.logger.Debugf("close superseded transport: %v", cerr)
		}
		m.closed(l, nil)
		return
	}
	l.conn = conn
	m.state = StateOpen
	m.attempts = 0
	m.mu.Unlock()

	m.metrics.IncConnections()
	m.metrics.SetConnectionStatus(1)
	middleware.LogWebSocketConnect(m.logger, m.endpoint)
	m.dispatch("open", m.handler.OnOpen)

	err = m.readLoop(l, conn)

	m.mu.Lock()
	released := l.released
	m.mu.Unlock()
	if !released && !cleanClose(err) {
		m.logger.Errorf("Error reading from WebSocket: %v (Status: %s)", err, describeClose(err))
		m.dispatchError(err)
	}
	if cerr := conn.Close(); cerr != nil {
		m.logger.Debugf("close transport: %v", cerr)
	}
	m.metrics.IncDisconnects()
	m.metrics.SetConnectionStatus(0)
	m.closed(l, err)
}

// readLoop delivers frames until the transport fails or closes.
func (m *Manager) readLoop(l *link, conn Conn) error {
	for {
		frame, err := conn.Read(l.ctx)
		if err != nil {
			return err
		}
		m.metrics.IncFramesReceived()

		msg, err := DecodeMessage(frame)
		if err != nil {
			m.metrics.IncDecodeErrors()
			m.logger.Warnf("Invalid JSON received: %v. Data: %s", err, string(frame))
			m.dispatchError(err)
			continue
		}
		m.logger.Debugf("Received frame kind=%q", msg.Kind())
		m.dispatch("message", func() { m.handler.OnMessage(msg) })
	}
}

// closed dispatches OnClose for l and, when l was lost rather than released,
// schedules the next reconnect attempt.
func (m *Manager) closed(l *link, err error) {
	m.mu.Lock()
	released := l.released
	current := m.cur == l
	if current {
		m.cur = nil
		m.state = StateClosing
	}
	epoch := m.epoch
	m.mu.Unlock()

	reason := "released"
	if !released {
		reason = describeClose(err)
	}
	middleware.LogWebSocketDisconnect(m.logger, m.endpoint, reason, err)
	m.dispatch("close", m.handler.OnClose)

	if released || !current {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.epoch != epoch {
		// the owner called Connect or Disconnect from OnClose
		return
	}
	m.state = StateClosed
	if m.attempts >= m.maxAttempts {
		m.logger.WithField("attempt", m.attempts).Warn("Maximum reconnect attempts reached")
		return
	}

	m.attempts++
	delay := backoff(m.baseDelay, m.attempts)
	m.metrics.IncReconnectAttempts()
	m.logger.WithFields(logrus.Fields{
		"attempt": m.attempts,
		"max":     m.maxAttempts,
		"delay":   delay,
	}).Info("Reconnecting")

	r := &pendingRetry{}
	r.stop = m.schedule(delay, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.retry != r {
			return
		}
		m.retry = nil
		m.connectLocked()
	})
	m.retry = r
}

// backoff returns base * 2^(attempt-1), saturating at the largest Duration.
func backoff(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	shift := uint(attempt - 1)
	if shift >= 63 || base > time.Duration(math.MaxInt64>>shift) {
		return time.Duration(math.MaxInt64)
	}
	return base << shift
}

func (m *Manager) dispatchError(err error) {
	m.dispatch("error", func() { m.handler.OnError(err) })
}

// dispatch runs an owner callback, containing any panic it raises.
func (m *Manager) dispatch(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.WithField("callback", name).Errorf("Callback panicked: %v", r)
		}
	}()
	fn()
}
