package onyx

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultConnectTimeout    = 3 * time.Second
	defaultWriteTimeout      = 2 * time.Second
	defaultReconnectInterval = 5 * time.Second
)

// closeOnce wraps a channel with sync.Once to prevent double-close panics.
type closeOnce struct {
	ch   chan struct{}
	once sync.Once
}

func newCloseOnce() *closeOnce {
	return &closeOnce{ch: make(chan struct{})}
}

func (c *closeOnce) Close() {
	c.once.Do(func() { close(c.ch) })
}

func (c *closeOnce) Done() <-chan struct{} {
	return c.ch
}

// SessionConfig holds telnet connection settings.
type SessionConfig struct {
	Address           string
	ConnectTimeout    time.Duration
	WriteTimeout      time.Duration
	ReconnectInterval time.Duration
}

// SessionStats holds operational counters.
type SessionStats struct {
	CommandsTx      uint64
	ErrorsTotal     uint64
	ReconnectsTotal uint64
	Connected       bool
}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Session is a persistent telnet connection to Onyx MxManager.
//
// It dials in the background and redials at a fixed interval whenever the
// connection drops, until Close. Replies from the console are read and
// discarded so the socket never backs up.
type Session struct {
	cfg    SessionConfig
	logger Logger

	connMu    sync.RWMutex
	conn      net.Conn
	connected bool

	done *closeOnce
	wg   sync.WaitGroup

	commandsTx      atomic.Uint64
	errorsTotal     atomic.Uint64
	reconnectsTotal atomic.Uint64
	dials           atomic.Uint64
}

// OpenSession starts the connect loop and returns immediately. The session
// is usable once Connected reports true.
func OpenSession(cfg SessionConfig, logger Logger) *Session {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	if cfg.ReconnectInterval <= 0 {
		cfg.ReconnectInterval = defaultReconnectInterval
	}

	s := &Session{
		cfg:    cfg,
		logger: logger,
		done:   newCloseOnce(),
	}
	s.wg.Add(1)
	go s.run()
	return s
}

// run owns the connection lifecycle: dial, read until failure, wait the
// fixed interval, repeat.
func (s *Session) run() {
	defer s.wg.Done()

	for {
		conn, err := s.dial()
		if err != nil {
			s.errorsTotal.Add(1)
			s.logger.Warn("onyx connect failed", "address", s.cfg.Address, "error", err)
		} else {
			s.attach(conn)
			s.readUntilError(conn)
			s.detach(conn)
		}

		select {
		case <-s.done.Done():
			return
		case <-time.After(s.cfg.ReconnectInterval):
		}
	}
}

func (s *Session) dial() (net.Conn, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ConnectTimeout)
	defer cancel()

	// Abort the dial promptly on Close.
	go func() {
		select {
		case <-s.done.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", s.cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", s.cfg.Address, err)
	}
	return conn, nil
}

func (s *Session) attach(conn net.Conn) {
	s.connMu.Lock()
	s.conn = conn
	s.connected = true
	// Close may have run between dial and here; it only closes s.conn.
	if s.isClosed() {
		conn.Close()
	}
	s.connMu.Unlock()

	if s.dials.Add(1) > 1 {
		s.reconnectsTotal.Add(1)
	}
	s.logger.Info("onyx telnet connection established", "address", s.cfg.Address)
}

func (s *Session) readUntilError(conn net.Conn) {
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		s.logger.Debug("onyx reply", "line", scanner.Text())
	}
}

func (s *Session) detach(conn net.Conn) {
	s.connMu.Lock()
	if s.conn == conn {
		s.conn = nil
		s.connected = false
	}
	s.connMu.Unlock()
	conn.Close()

	if !s.isClosed() {
		s.logger.Warn("onyx telnet connection closed, reconnecting",
			"address", s.cfg.Address,
			"interval", s.cfg.ReconnectInterval.String(),
		)
	}
}

// Send writes one command line terminated by CRLF.
func (s *Session) Send(cmd string) error {
	if s.isClosed() {
		return ErrClosed
	}

	s.connMu.RLock()
	conn := s.conn
	s.connMu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}

	if err := conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout)); err != nil {
		s.errorsTotal.Add(1)
		return fmt.Errorf("set deadline: %w", err)
	}
	if _, err := conn.Write([]byte(cmd + "\r\n")); err != nil {
		s.errorsTotal.Add(1)
		// Force the reader out so the run loop redials.
		conn.Close()
		return fmt.Errorf("write %q: %w", cmd, err)
	}
	s.commandsTx.Add(1)
	return nil
}

// Connected reports whether a telnet connection is up.
func (s *Session) Connected() bool {
	s.connMu.RLock()
	defer s.connMu.RUnlock()
	return s.connected
}

// Stats returns a snapshot of the counters.
func (s *Session) Stats() SessionStats {
	return SessionStats{
		CommandsTx:      s.commandsTx.Load(),
		ErrorsTotal:     s.errorsTotal.Load(),
		ReconnectsTotal: s.reconnectsTotal.Load(),
		Connected:       s.Connected(),
	}
}

func (s *Session) isClosed() bool {
	select {
	case <-s.done.Done():
		return true
	default:
		return false
	}
}

// Close stops reconnecting, closes the connection and waits for the
// connect loop to exit. Safe to call more than once.
func (s *Session) Close() error {
	s.done.Close()
	s.connMu.Lock()
	if s.conn != nil {
		s.conn.Close()
	}
	s.connMu.Unlock()
	s.wg.Wait()
	return nil
}
