package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var (
	// ErrSendBufferFull is returned when a session cannot queue another frame.
	ErrSendBufferFull = errors.New("ws: send buffer full")
	// ErrSessionClosed is returned by Send after Close.
	ErrSessionClosed = errors.New("ws: session closed")
)

const (
	defaultSendBuffer      = 256
	defaultMaxMessageBytes = 64 * 1024
	defaultPongWait        = 60 * time.Second
	defaultWriteWait       = 10 * time.Second
)

// SessionConfig tunes per-connection buffering and liveness probing.
type SessionConfig struct {
	SendBuffer      int
	MaxMessageBytes int64
	PongWait        time.Duration
	WriteWait       time.Duration
}

func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		SendBuffer:      defaultSendBuffer,
		MaxMessageBytes: defaultMaxMessageBytes,
		PongWait:        defaultPongWait,
		WriteWait:       defaultWriteWait,
	}
}

func (c SessionConfig) normalized() SessionConfig {
	if c.SendBuffer <= 0 {
		c.SendBuffer = defaultSendBuffer
	}
	if c.MaxMessageBytes <= 0 {
		c.MaxMessageBytes = defaultMaxMessageBytes
	}
	if c.PongWait <= 0 {
		c.PongWait = defaultPongWait
	}
	if c.WriteWait <= 0 {
		c.WriteWait = defaultWriteWait
	}
	return c
}

// pingPeriod must stay below PongWait so a healthy peer always answers in time.
func (c SessionConfig) pingPeriod() time.Duration {
	return c.PongWait * 9 / 10
}

// Session is the transport of one websocket client. Send only queues; a
// dedicated writer goroutine owns every data write on the connection.
type Session struct {
	conn      *websocket.Conn
	cfg       SessionConfig
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

func newSession(conn *websocket.Conn, cfg SessionConfig) *Session {
	cfg = cfg.normalized()
	return &Session{
		conn: conn,
		cfg:  cfg,
		send: make(chan []byte, cfg.SendBuffer),
		done: make(chan struct{}),
	}
}

// Send queues a text frame without blocking.
func (s *Session) Send(data []byte) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}
	select {
	case s.send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Close sends a close frame and tears the connection down. It is safe to call
// from any goroutine and more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		if s.conn == nil {
			return
		}
		message := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		s.conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(s.cfg.WriteWait))
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

// Done is closed once the session has been closed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) writePump() {
	ticker := time.NewTicker(s.cfg.pingPeriod())
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case message := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				s.Close()
				return
			}
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.cfg.WriteWait)); err != nil {
				s.Close()
				return
			}
		}
	}
}

// readPump delivers every inbound data frame to handle until the connection
// fails, closes or misses a pong.
func (s *Session) readPump(handle func([]byte)) error {
	s.conn.SetReadLimit(s.cfg.MaxMessageBytes)
	s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.cfg.PongWait))
	})

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			return err
		}
		handle(payload)
	}
}
