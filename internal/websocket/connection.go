package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Settings tunes websocket timing and buffering
type Settings struct {
	WriteTimeout   time.Duration
	ReadTimeout    time.Duration // pong wait
	PingInterval   time.Duration
	SendBuffer     int
	MaxMessageSize int64
}

// DefaultSettings returns settings suited to classroom networks
func DefaultSettings() Settings {
	return Settings{
		WriteTimeout:   5 * time.Second,
		ReadTimeout:    60 * time.Second,
		PingInterval:   30 * time.Second,
		SendBuffer:     100,
		MaxMessageSize: 64 * 1024,
	}
}

func (s Settings) withDefaults() Settings {
	defaults := DefaultSettings()
	if s.WriteTimeout <= 0 {
		s.WriteTimeout = defaults.WriteTimeout
	}
	if s.ReadTimeout <= 0 {
		s.ReadTimeout = defaults.ReadTimeout
	}
	if s.PingInterval <= 0 || s.PingInterval >= s.ReadTimeout {
		s.PingInterval = s.ReadTimeout * 9 / 10
	}
	if s.SendBuffer <= 0 {
		s.SendBuffer = defaults.SendBuffer
	}
	if s.MaxMessageSize <= 0 {
		s.MaxMessageSize = defaults.MaxMessageSize
	}
	return s
}

// Connection implements the interfaces.Connection interface
// ARCHITECTURAL DISCOVERY: WebSocket writes must be serialized to prevent race conditions
// Interface boundary maintained - no session logic in connection wrapper
type Connection struct {
	id        string
	conn      *websocket.Conn
	settings  Settings
	writeCh   chan []byte        // FUNCTIONAL DISCOVERY: Bounded buffer, a full buffer marks a slow consumer
	drainCh   chan struct{}      // Closed by CloseGracefully
	ctx       context.Context    // For cancellation
	cancel    context.CancelFunc // For cleanup
	closeOnce sync.Once          // Ensure single close
	drainOnce sync.Once
}

// NewConnection wraps conn under the given connection id
func NewConnection(id string, conn *websocket.Conn, settings Settings) *Connection {
	settings = settings.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		id:       id,
		conn:     conn,
		settings: settings,
		writeCh:  make(chan []byte, settings.SendBuffer),
		drainCh:  make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}

	// Start the single writer goroutine
	go c.writeLoop()

	return c
}

// ID returns the identity assigned when the connection was accepted
func (c *Connection) ID() string {
	return c.id
}

// Done is closed once the connection is closed
func (c *Connection) Done() <-chan struct{} {
	return c.ctx.Done()
}

// ARCHITECTURAL DISCOVERY: Single writer goroutine pattern eliminates races
func (c *Connection) writeLoop() {
	for {
		select {
		case data := <-c.writeCh:
			if err := c.write(data); err != nil {
				_ = c.Close()
				return
			}

		case <-c.drainCh:
			c.flush()
			deadline := time.Now().Add(c.settings.WriteTimeout)
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			_ = c.Close()
			return

		case <-c.ctx.Done():
			return
		}
	}
}

// flush writes frames already queued, without waiting for new ones
func (c *Connection) flush() {
	for {
		select {
		case data := <-c.writeCh:
			if err := c.write(data); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *Connection) write(data []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.settings.WriteTimeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Send marshals v and queues it without blocking
func (c *Connection) Send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return ErrInvalidJSON
	}
	return c.SendEncoded(data)
}

// SendEncoded queues an encoded frame; a full buffer fails with ErrSendBufferFull
func (c *Connection) SendEncoded(data []byte) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	case <-c.drainCh:
		return ErrConnectionClosed
	default:
	}

	select {
	case c.writeCh <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// ping sends a heartbeat control frame
func (c *Connection) ping() error {
	return c.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(c.settings.WriteTimeout))
}

// CloseGracefully closes the connection after queued frames are written
func (c *Connection) CloseGracefully() {
	c.drainOnce.Do(func() { close(c.drainCh) })
}

// ARCHITECTURAL DISCOVERY: Clean shutdown requires careful goroutine coordination
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		// Cancel context to stop goroutines
		c.cancel()

		if c.conn != nil {
			err = c.conn.Close()
		}
	})
	return err
}
