package channel

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

var errConnReset = errors.New("connection reset by peer")

// fakeConn is an in-memory transport. Frames pushed with deliver are returned
// by Read in order; drop and Close make Read fail.
type fakeConn struct {
	frames    chan []byte
	closed    chan struct{}
	closeOnce sync.Once

	mu       sync.Mutex
	written  [][]byte
	readErr  error
	closeCnt int
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		frames: make(chan []byte),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) Read(ctx context.Context) ([]byte, error) {
	select {
	case f := <-c.frames:
		return f, nil
	case <-c.closed:
		c.mu.Lock()
		defer c.mu.Unlock()
		return nil, c.readErr
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *fakeConn) Write(ctx context.Context, frame []byte) error {
	select {
	case <-c.closed:
		return errors.New("write on closed conn")
	default:
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, append([]byte(nil), frame...))
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closeCnt++
	c.mu.Unlock()
	c.shut(errors.New("closed by client"))
	return nil
}

// drop simulates the server going away.
func (c *fakeConn) drop() {
	c.shut(errConnReset)
}

func (c *fakeConn) shut(err error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.readErr = err
		c.mu.Unlock()
		close(c.closed)
	})
}

func (c *fakeConn) deliver(t *testing.T, frame string) {
	t.Helper()
	select {
	case c.frames <- []byte(frame):
	case <-time.After(2 * time.Second):
		t.Fatalf("frame %q was not read", frame)
	}
}

func (c *fakeConn) writes() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.written...)
}

// fakeDialer hands out fakeConns, or fails the next n dials.
type fakeDialer struct {
	mu       sync.Mutex
	failNext int
	failAll  bool
	block    bool
	urls     []string
	conns    chan *fakeConn
	// onDial runs at the start of every Dial when set.
	onDial func()
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{conns: make(chan *fakeConn, 16)}
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (Conn, error) {
	d.mu.Lock()
	d.urls = append(d.urls, url)
	fail := d.failAll || d.failNext > 0
	if d.failNext > 0 {
		d.failNext--
	}
	block := d.block
	onDial := d.onDial
	d.mu.Unlock()

	if onDial != nil {
		onDial()
	}

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if fail {
		return nil, errors.New("connection refused")
	}
	c := newFakeConn()
	d.conns <- c
	return c, nil
}

func (d *fakeDialer) dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.urls)
}

func (d *fakeDialer) nextConn(t *testing.T) *fakeConn {
	t.Helper()
	select {
	case c := <-d.conns:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("no connection was dialed")
		return nil
	}
}

// fakeScheduler records reconnect timers instead of running them.
type fakeScheduler struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

type fakeTimer struct {
	delay   time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (s *fakeScheduler) schedule(d time.Duration, f func()) func() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTimer{delay: d, f: f}
	s.timers = append(s.timers, t)
	return func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		active := !t.stopped && !t.fired
		t.stopped = true
		return active
	}
}

func (s *fakeScheduler) delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]time.Duration, 0, len(s.timers))
	for _, t := range s.timers {
		out = append(out, t.delay)
	}
	return out
}

func (s *fakeScheduler) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

func (s *fakeScheduler) active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// fire runs the most recent timer, as if it elapsed. Stopped timers still
// run their func, to model a stop that lost the race against expiry.
func (s *fakeScheduler) fire(t *testing.T) {
	t.Helper()
	s.mu.Lock()
	if len(s.timers) == 0 {
		s.mu.Unlock()
		t.Fatal("no timer scheduled")
	}
	tm := s.timers[len(s.timers)-1]
	tm.fired = true
	s.mu.Unlock()
	tm.f()
}

// recorder is a Handler that records every callback in order.
type recorder struct {
	events   chan string
	messages chan Message
	errs     chan error
}

func newRecorder() *recorder {
	return &recorder{
		events:   make(chan string, 64),
		messages: make(chan Message, 64),
		errs:     make(chan error, 64),
	}
}

func (r *recorder) OnOpen()  { r.events <- "open" }
func (r *recorder) OnClose() { r.events <- "close" }

func (r *recorder) OnMessage(msg Message) {
	r.messages <- msg
	r.events <- "message"
}

func (r *recorder) OnError(err error) {
	r.errs <- err
	r.events <- "error"
}

func (r *recorder) expect(t *testing.T, want ...string) {
	t.Helper()
	for _, w := range want {
		select {
		case got := <-r.events:
			require.Equal(t, w, got)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %q", w)
		}
	}
}

func (r *recorder) expectNone(t *testing.T) {
	t.Helper()
	select {
	case got := <-r.events:
		t.Fatalf("unexpected event %q", got)
	case <-time.After(50 * time.Millisecond):
	}
}

type harness struct {
	m      *Manager
	dialer *fakeDialer
	sched  *fakeScheduler
	rec    *recorder
}

// newHarness builds a Manager wired to fakes. The first Connect is left to the test.
func newHarness(t *testing.T, mutate func(*Config)) *harness {
	t.Helper()
	h := &harness{
		dialer: newFakeDialer(),
		sched:  &fakeScheduler{},
		rec:    newRecorder(),
	}
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	cfg := Config{
		Endpoint:      "ws://game.test/api/ws",
		Credential:    "tok",
		ManualConnect: true,
		Handler:       h.rec,
		Dialer:        h.dialer,
		Logger:        logrus.NewEntry(logger),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	m, err := New(cfg)
	require.NoError(t, err)
	m.schedule = h.sched.schedule
	h.m = m
	t.Cleanup(m.Disconnect)
	return h
}

// waitClosed waits until the reconnect decision after a close has been made.
func (h *harness) waitClosed(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool {
		return h.m.State() == StateClosed
	}, 2*time.Second, 5*time.Millisecond)
}
