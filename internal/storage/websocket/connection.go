package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/trackside/envstate/pkg/streaming"
)

const (
	sendChSize     = 4096
	ackChSize      = 16
	maxReconnect   = 10
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
	writeWait      = 10 * time.Second
	ackTimeout     = 10 * time.Second
)

// connection owns one websocket and the single goroutine allowed to write to it.
type connection struct {
	mu     sync.Mutex
	conn   *ws.Conn
	sendCh chan []byte
	ackCh  chan streaming.AckMessage
	done   chan struct{} // closed on shutdown
	closed bool

	wsURL   string
	secret  string
	backoff time.Duration

	// start_episode of the open episode, replayed after a reconnect
	cachedStartMsg []byte
	reconnects     atomic.Int32
	dropped        atomic.Int64

	logger *slog.Logger
}

func newConnection(logger *slog.Logger) *connection {
	return &connection{
		sendCh:  make(chan []byte, sendChSize),
		ackCh:   make(chan streaming.AckMessage, ackChSize),
		done:    make(chan struct{}),
		backoff: initialBackoff,
		logger:  logger,
	}
}

// dial connects and starts the read and write loops.
func (c *connection) dial(rawURL, secret string) error {
	c.wsURL = rawURL
	c.secret = secret

	conn, err := c.dialOnce()
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	go c.writeLoop(conn)
	go c.readLoop(conn)

	return nil
}

func (c *connection) dialOnce() (*ws.Conn, error) {
	u, err := url.Parse(c.wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid websocket URL: %w", err)
	}
	if c.secret != "" {
		q := u.Query()
		q.Set("secret", c.secret)
		u.RawQuery = q.Encode()
	}

	conn, _, err := ws.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

// writeLoop drains sendCh into conn. It exits on the first write error,
// handing over to reconnect, or on shutdown.
func (c *connection) writeLoop(conn *ws.Conn) {
	for {
		select {
		case <-c.done:
			return
		case data := <-c.sendCh:
			c.mu.Lock()
			current := c.conn == conn
			c.mu.Unlock()
			if !current {
				// superseded by a reconnect; leave data to the new loop
				c.send(data)
				return
			}

			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Warn("websocket set deadline failed", "error", err)
				go c.reconnect(conn)
				return
			}
			if err := conn.WriteMessage(ws.TextMessage, data); err != nil {
				c.logger.Warn("websocket write failed", "error", err)
				go c.reconnect(conn)
				return
			}
		}
	}
}

// readLoop routes acks from the server to ackCh.
func (c *connection) readLoop(conn *ws.Conn) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return
			default:
			}
			c.logger.Warn("websocket read failed", "error", err)
			go c.reconnect(conn)
			return
		}

		var ack streaming.AckMessage
		if err := json.Unmarshal(message, &ack); err != nil || ack.Type != streaming.TypeAck {
			c.logger.Debug("ignoring non-ack message", "raw", string(message))
			continue
		}

		select {
		case c.ackCh <- ack:
		default:
			c.logger.Debug("ack channel full, dropping", "for", ack.For)
		}
	}
}

// reconnect replaces broken with a fresh connection, backing off
// exponentially between attempts. Both loops call it when they fail; only
// the first call for a given broken connection does any work.
func (c *connection) reconnect(broken *ws.Conn) {
	c.mu.Lock()
	if c.closed || c.conn != broken {
		c.mu.Unlock()
		return
	}
	_ = c.conn.Close()
	c.conn = nil
	c.mu.Unlock()

	backoff := c.backoff
	for attempt := 1; attempt <= maxReconnect; attempt++ {
		select {
		case <-c.done:
			return
		case <-time.After(backoff):
		}

		c.logger.Info("reconnecting websocket", "attempt", attempt)

		conn, err := c.dialOnce()
		if err != nil {
			c.logger.Warn("reconnect dial failed", "attempt", attempt, "error", err)
			backoff = min(backoff*2, maxBackoff)
			continue
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			_ = conn.Close()
			return
		}
		c.conn = conn
		cached := c.cachedStartMsg
		c.mu.Unlock()

		if cached != nil {
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err == nil {
				err = conn.WriteMessage(ws.TextMessage, cached)
			}
			if err != nil {
				c.logger.Warn("start_episode replay failed", "error", err)
				c.mu.Lock()
				c.conn = nil
				c.mu.Unlock()
				_ = conn.Close()
				continue
			}
		}

		c.reconnects.Add(1)
		c.logger.Info("websocket reconnected", "attempt", attempt)
		go c.writeLoop(conn)
		go c.readLoop(conn)
		return
	}

	c.logger.Error("websocket reconnect gave up", "maxAttempts", maxReconnect)
}

// send queues data for the write loop, dropping it when the queue is full.
func (c *connection) send(data []byte) {
	select {
	case c.sendCh <- data:
	default:
		if n := c.dropped.Add(1); n == 1 || n%1000 == 0 {
			c.logger.Warn("websocket send channel full, dropping message", "dropped", n)
		}
	}
}

// sendAndWait queues data and blocks until the server acks ackFor.
func (c *connection) sendAndWait(data []byte, ackFor string, timeout time.Duration) error {
	c.send(data)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case ack := <-c.ackCh:
			if ack.For == ackFor {
				return nil
			}
		case <-timer.C:
			return fmt.Errorf("timeout waiting for ack of %q", ackFor)
		case <-c.done:
			return fmt.Errorf("connection closed while waiting for ack of %q", ackFor)
		}
	}
}

// close sends a close frame and stops both loops.
func (c *connection) close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		_ = conn.WriteControl(
			ws.CloseMessage,
			ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
			time.Now().Add(writeWait),
		)
		return conn.Close()
	}
	return nil
}
