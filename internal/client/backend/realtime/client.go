// Package realtime implements backend.Realtime over the hosted realtime
// websocket: Phoenix channels carrying broadcast, presence and database
// change events.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/templesanathan/internal/client/backend"
	"github.com/dmitrijs2005/templesanathan/internal/common"
	"github.com/dmitrijs2005/templesanathan/internal/logging"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
)

const (
	writeWait         = 10 * time.Second
	heartbeatInterval = 25 * time.Second
	joinTimeout       = 10 * time.Second
)

var ErrClosed = errors.New("realtime connection closed")

// TokenSource yields the user's access token for channel authorization.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

type Client struct {
	endpoint  string
	tokens    TokenSource
	log       logging.Logger
	dialer    *websocket.Dialer
	heartbeat time.Duration

	mu       sync.Mutex
	conn     *websocket.Conn
	channels map[string]*Channel
	pending  map[string]chan replyPayload
	ref      int
	cancel   context.CancelFunc
	done     chan struct{}

	writeMu sync.Mutex
}

// NewClient derives the websocket endpoint from the backend base URL.
func NewClient(baseURL, anonKey string, tokens TokenSource, log logging.Logger) *Client {
	u := strings.TrimRight(baseURL, "/")
	u = strings.Replace(u, "https://", "wss://", 1)
	u = strings.Replace(u, "http://", "ws://", 1)
	q := url.Values{"apikey": {anonKey}, "vsn": {"1.0.0"}}
	return &Client{
		endpoint:  u + "/realtime/v1/websocket?" + q.Encode(),
		tokens:    tokens,
		log:       log,
		dialer:    websocket.DefaultDialer,
		heartbeat: heartbeatInterval,
		channels:  map[string]*Channel{},
		pending:   map[string]chan replyPayload{},
	}
}

func (c *Client) Channel(name string, opts backend.ChannelOptions) backend.Channel {
	return &Channel{
		client:        c,
		topic:         "realtime:" + name,
		opts:          opts,
		broadcast:     map[string][]func(json.RawMessage){},
		changes:       map[string][]func(backend.RowChange){},
		presenceState: map[string]struct{}{},
	}
}

// connect dials once; later calls reuse the live connection. The dial runs
// without mu held, so a slow handshake does not stall pushes or Close. When
// two callers race, the first connection installed wins.
func (c *Client) connect(ctx context.Context) error {
	c.mu.Lock()
	live := c.conn != nil
	c.mu.Unlock()
	if live {
		return nil
	}

	conn, _, err := c.dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrUnavailable, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		_ = conn.Close()
		return nil
	}
	c.conn = conn
	runCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error { return c.readLoop(conn) })
	g.Go(func() error { return c.heartbeatLoop(gctx) })
	go func(done chan struct{}) {
		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			c.log.Warn(context.Background(), "realtime connection dropped", "err", err)
		}
		c.dropConnection(conn)
		close(done)
	}(c.done)
	return nil
}

func (c *Client) dropConnection(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	if c.cancel != nil {
		c.cancel()
	}
	for ref, ch := range c.pending {
		close(ch)
		delete(c.pending, ref)
	}
	c.mu.Unlock()
	_ = conn.Close()
}

// Close tears the connection down and waits for the loops to exit.
func (c *Client) Close() error {
	c.mu.Lock()
	conn, done := c.conn, c.done
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	_ = c.writeControlClose(conn)
	_ = conn.Close()
	<-done
	return nil
}

func (c *Client) writeControlClose(conn *websocket.Conn) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
}

func (c *Client) nextRef() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ref++
	return strconv.Itoa(c.ref)
}

func (c *Client) push(topic, event string, payload any) (string, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return "", ErrClosed
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	ref := c.nextRef()
	frame := Frame{Topic: topic, Event: event, Payload: b, Ref: &ref}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(frame); err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrUnavailable, err)
	}
	return ref, nil
}

// request pushes a frame and waits for its phx_reply.
func (c *Client) request(ctx context.Context, topic, event string, payload any) (replyPayload, error) {
	wait := make(chan replyPayload, 1)

	// The waiter is registered before the write so the reply cannot race it.
	c.mu.Lock()
	conn := c.conn
	if conn == nil {
		c.mu.Unlock()
		return replyPayload{}, ErrClosed
	}
	c.ref++
	ref := strconv.Itoa(c.ref)
	c.pending[ref] = wait
	c.mu.Unlock()

	b, err := json.Marshal(payload)
	if err != nil {
		c.forget(ref)
		return replyPayload{}, err
	}
	c.writeMu.Lock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	err = conn.WriteJSON(Frame{Topic: topic, Event: event, Payload: b, Ref: &ref})
	c.writeMu.Unlock()
	if err != nil {
		c.forget(ref)
		return replyPayload{}, fmt.Errorf("%w: %v", common.ErrUnavailable, err)
	}

	ctx, cancel := context.WithTimeout(ctx, joinTimeout)
	defer cancel()
	select {
	case r, ok := <-wait:
		if !ok {
			return replyPayload{}, ErrClosed
		}
		return r, nil
	case <-ctx.Done():
		c.forget(ref)
		return replyPayload{}, ctx.Err()
	}
}

func (c *Client) forget(ref string) {
	c.mu.Lock()
	delete(c.pending, ref)
	c.mu.Unlock()
}

func (c *Client) heartbeatLoop(ctx context.Context) error {
	ticker := time.NewTicker(c.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if _, err := c.push(phoenixTopic, eventHeartbeat, struct{}{}); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Client) readLoop(conn *websocket.Conn) error {
	for {
		var f Frame
		if err := conn.ReadJSON(&f); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return context.Canceled
			}
			return err
		}
		c.dispatch(f)
	}
}

func (c *Client) dispatch(f Frame) {
	if f.Event == eventReply && f.Ref != nil {
		var r replyPayload
		_ = json.Unmarshal(f.Payload, &r)
		c.mu.Lock()
		wait, ok := c.pending[*f.Ref]
		delete(c.pending, *f.Ref)
		c.mu.Unlock()
		if ok {
			wait <- r
		}
		return
	}

	c.mu.Lock()
	ch := c.channels[f.Topic]
	c.mu.Unlock()
	if ch == nil {
		return
	}
	ch.handle(f)
}

func (c *Client) register(ch *Channel) {
	c.mu.Lock()
	c.channels[ch.topic] = ch
	c.mu.Unlock()
}

func (c *Client) unregister(ch *Channel) {
	c.mu.Lock()
	if c.channels[ch.topic] == ch {
		delete(c.channels, ch.topic)
	}
	c.mu.Unlock()
}
