// Package stream owns the single logical WebSocket connection to the
// detector service. It hands raw payloads to its consumer, exposes a
// read-only connectivity state, and reconnects on unexpected closes with
// bounded exponential backoff. Teardown is synchronous: once Close has run,
// no callback fires and no reconnect timer survives.
package stream

import (
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Reconnect backoff defaults. The delay for attempt n is
// min(MaxDelay, BaseDelay * 2^n) with n capped at MaxExponent, so the
// exponent can never overflow no matter how long the detector stays down.
const (
	DefaultBaseDelay = 500 * time.Millisecond
	DefaultMaxDelay  = 12 * time.Second
	MaxExponent      = 8
)

// State is the externally visible connectivity state. Attempt resets to
// zero on every successful open and counts unexpected closes since then.
type State struct {
	Connected bool `json:"connected"`
	Attempt   int  `json:"attempt"`
}

// Config configures a Client. OnFrame receives every raw payload read from
// a healthy connection, in arrival order, from a single goroutine. OnState
// fires on connectivity changes. Both callbacks are optional.
type Config struct {
	URL       string
	BaseDelay time.Duration
	MaxDelay  time.Duration
	OnFrame   func(raw []byte)
	OnState   func(State)
	Logger    *log.Logger
}

// Client is the stream connection manager. All state transitions happen
// under one mutex, and every asynchronous callback re-checks the cancelled
// flag before touching anything, so a Close can never race a reconnect into
// resurrecting the connection.
type Client struct {
	cfg Config

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	attempt   int
	cancelled bool
	retry     *time.Timer
}

// New creates a Client for the given detector URL. The client is inert
// until Open is called.
func New(cfg Config) *Client {
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultBaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = DefaultMaxDelay
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &Client{cfg: cfg}
}

// Open starts the connection attempt loop. It returns immediately; dialing
// happens in the background and failures schedule a reconnect. Calling Open
// after Close re-arms the client.
func (c *Client) Open() {
	c.mu.Lock()
	c.cancelled = false
	c.mu.Unlock()

	go c.connect()
}

// Close tears the connection down and disables all future reconnects until
// the next Open. Any pending reconnect timer is cancelled before Close
// returns; an in-flight read loop sees the cancelled flag and exits without
// side effects.
func (c *Client) Close() {
	c.mu.Lock()
	c.cancelled = true
	if c.retry != nil {
		c.retry.Stop()
		c.retry = nil
	}
	conn := c.conn
	c.conn = nil
	wasConnected := c.connected
	c.connected = false
	st := State{Connected: false, Attempt: c.attempt}
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	if wasConnected {
		c.notify(st)
	}
}

// State returns the current connectivity state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{Connected: c.connected, Attempt: c.attempt}
}

// connect dials the detector once. On success it resets the attempt
// counter and starts the read loop; on failure it schedules a reconnect.
func (c *Client) connect() {
	c.mu.Lock()
	if c.cancelled {
		c.mu.Unlock()
		return
	}
	url := c.cfg.URL
	c.mu.Unlock()

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)

	c.mu.Lock()
	if c.cancelled {
		c.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	if err != nil {
		c.cfg.Logger.Printf("stream: dial %s failed: %v", url, err)
		c.scheduleReconnectLocked()
		c.mu.Unlock()
		return
	}

	c.conn = conn
	c.connected = true
	c.attempt = 0
	st := State{Connected: true, Attempt: 0}
	c.mu.Unlock()

	c.cfg.Logger.Printf("stream: connected to %s", url)
	c.notify(st)

	go c.readLoop(conn)
}

// readLoop delivers payloads until the connection dies. A malformed payload
// is still delivered — schema validation is the consumer's concern and
// never closes the connection.
func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			c.handleClose(conn, err)
			return
		}

		c.mu.Lock()
		cancelled := c.cancelled || c.conn != conn
		onFrame := c.cfg.OnFrame
		c.mu.Unlock()
		if cancelled {
			return
		}
		if onFrame != nil {
			onFrame(raw)
		}
	}
}

// handleClose reacts to an unexpected connection loss. Caller-initiated
// closes are recognized by the cancelled flag (or by the connection having
// been swapped out) and trigger no reconnect.
func (c *Client) handleClose(conn *websocket.Conn, err error) {
	_ = conn.Close()

	c.mu.Lock()
	if c.cancelled || c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.connected = false
	c.cfg.Logger.Printf("stream: connection lost: %v", err)
	c.scheduleReconnectLocked()
	st := State{Connected: false, Attempt: c.attempt}
	c.mu.Unlock()

	c.notify(st)
}

// scheduleReconnectLocked arms the single reconnect timer. The caller must
// hold c.mu. Any previously pending timer is cancelled first so only one
// connection attempt can ever be in flight.
func (c *Client) scheduleReconnectLocked() {
	if c.cancelled {
		return
	}
	if c.retry != nil {
		c.retry.Stop()
	}

	delay := backoffDelay(c.attempt, c.cfg.BaseDelay, c.cfg.MaxDelay)
	if c.attempt < MaxExponent {
		c.attempt++
	}

	c.retry = time.AfterFunc(delay, func() {
		c.mu.Lock()
		if c.cancelled {
			c.mu.Unlock()
			return
		}
		c.retry = nil
		c.mu.Unlock()
		c.connect()
	})
}

// backoffDelay computes the reconnect delay for the given attempt number.
func backoffDelay(attempt int, base, max time.Duration) time.Duration {
	if attempt > MaxExponent {
		attempt = MaxExponent
	}
	delay := base << uint(attempt)
	if delay > max || delay <= 0 {
		return max
	}
	return delay
}

func (c *Client) notify(st State) {
	if c.cfg.OnState != nil {
		c.cfg.OnState(st)
	}
}
