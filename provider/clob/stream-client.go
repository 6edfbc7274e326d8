package clob

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jpillora/backoff"
	"github.com/spooky-finn/go-polymarket-session/domain/interfaces"
	promclient "github.com/spooky-finn/go-polymarket-session/infrastructure/prometheus"
)

const (
	handshakeTimeout = 5 * time.Second

	// Application-level keep-alive for the transport connection. Distinct
	// from the resting-order heartbeat.
	pingMessage = "PING"
	pongMessage = "PONG"
)

// FlatBackoffReconnect is the channel reconnect policy: a flat,
// non-exponential delay. Resubscription is self-correcting, so escalating
// the delay buys nothing.
func FlatBackoffReconnect(delay time.Duration) *backoff.Backoff {
	return &backoff.Backoff{Min: delay, Max: delay, Factor: 1}
}

// StreamClient maintains one live push-channel subscription. Immediately
// on every (re)open it sends the subscription frame, then pumps inbound
// frames in arrival order. At most one socket is ever live: reconnects are
// serialized by the single run loop, and Close sets the destroyed flag
// before any in-flight backoff timer can fire.
type StreamClient struct {
	endpoint  string
	subscribe SubscribeMessage
	topic     string
	keepAlive time.Duration
	reconnect *backoff.Backoff

	out  chan []byte
	done chan struct{}

	mu        sync.Mutex
	conn      *websocket.Conn
	destroyed bool
}

func NewStreamClient(endpoint string, sub SubscribeMessage, topic string, keepAlive, reconnectDelay time.Duration) *StreamClient {
	return &StreamClient{
		endpoint:  endpoint,
		subscribe: sub,
		topic:     topic,
		keepAlive: keepAlive,
		reconnect: FlatBackoffReconnect(reconnectDelay),
		out:       make(chan []byte),
		done:      make(chan struct{}),
	}
}

// Connect dials the endpoint, sends the subscription frame and starts the
// read/reconnect loop. The initial dial error is returned to the caller;
// later disconnects are handled by the loop itself.
func (c *StreamClient) Connect() error {
	conn, err := c.dial()
	if err != nil {
		return err
	}
	go c.run(conn)
	return nil
}

// Subscription exposes the raw frame stream. Unsubscribe tears the channel
// down and guarantees no further socket is opened for this topic.
func (c *StreamClient) Subscription() *interfaces.Subscription[[]byte] {
	return &interfaces.Subscription[[]byte]{
		Stream:      c.out,
		Unsubscribe: c.Close,
		Topic:       c.topic,
	}
}

// Done is closed when the channel is torn down. Typed streams built on
// top select on it around their sends, so an undelivered event can never
// park a forwarder past teardown.
func (c *StreamClient) Done() <-chan struct{} {
	return c.done
}

func (c *StreamClient) Close() {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return
	}
	c.destroyed = true
	conn := c.conn
	c.mu.Unlock()

	close(c.done)
	if conn != nil {
		conn.Close()
	}
}

func (c *StreamClient) dial() (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: handshakeTimeout,
	}

	conn, _, err := dialer.Dial(c.endpoint, nil)
	if err != nil {
		return nil, err
	}

	if err := conn.WriteJSON(c.subscribe); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

func (c *StreamClient) run(conn *websocket.Conn) {
	defer close(c.out)

	for {
		c.setConn(conn)
		c.pump(conn)
		conn.Close()
		c.setConn(nil)

		redialed := false
		for !redialed {
			if c.isDestroyed() {
				return
			}

			select {
			case <-time.After(c.reconnect.Duration()):
			case <-c.done:
				return
			}
			if c.isDestroyed() {
				return
			}

			next, err := c.dial()
			if err != nil {
				logger.Printf("failed to reconnect to %s: %s", c.topic, err)
				continue
			}
			if c.isDestroyed() {
				next.Close()
				return
			}

			promclient.WsReconnects.Inc()
			conn = next
			redialed = true
		}
	}
}

// pump reads frames until the socket errors out, running the keep-alive
// writer for the lifetime of this one connection.
func (c *StreamClient) pump(conn *websocket.Conn) {
	pingDone := make(chan struct{})
	defer close(pingDone)
	go c.pingLoop(conn, pingDone)

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if !c.isDestroyed() {
				logger.Printf("read error on %s: %s", c.topic, err)
			}
			return
		}

		// Degenerate keep-alive reply, discarded before any parsing.
		if string(msg) == pongMessage {
			continue
		}

		select {
		case c.out <- msg:
		case <-c.done:
			return
		}
	}
}

func (c *StreamClient) pingLoop(conn *websocket.Conn, pingDone chan struct{}) {
	ticker := time.NewTicker(c.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.TextMessage, []byte(pingMessage)); err != nil {
				return
			}
		case <-pingDone:
			return
		case <-c.done:
			return
		}
	}
}

func (c *StreamClient) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}

func (c *StreamClient) isDestroyed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.destroyed
}
