package memory

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"

	"github.com/dmitrijs2005/templesanathan/internal/client/backend"
)

var ErrNotSubscribed = errors.New("channel not subscribed")

// Hub fans broadcasts, presence and row changes out to subscribed
// channels. Like the hosted service, a broadcast is not echoed to the
// sender.
type Hub struct {
	mu     sync.Mutex
	topics map[string]map[*Channel]struct{}
}

func NewHub() *Hub {
	return &Hub{topics: map[string]map[*Channel]struct{}{}}
}

func (h *Hub) Channel(name string, opts backend.ChannelOptions) backend.Channel {
	return &Channel{
		hub:       h,
		topic:     name,
		opts:      opts,
		broadcast: map[string][]func(json.RawMessage){},
		changes:   map[string][]func(backend.RowChange){},
	}
}

func (h *Hub) members(topic string) []*Channel {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*Channel, 0, len(h.topics[topic]))
	for ch := range h.topics[topic] {
		out = append(out, ch)
	}
	return out
}

func (h *Hub) all() []*Channel {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []*Channel
	for _, m := range h.topics {
		for ch := range m {
			out = append(out, ch)
		}
	}
	return out
}

func (h *Hub) publishChange(c backend.RowChange) {
	for _, ch := range h.all() {
		ch.deliverChange(c)
	}
}

func (h *Hub) presenceKeys(topic string) []string {
	seen := map[string]struct{}{}
	for _, ch := range h.members(topic) {
		ch.mu.Lock()
		if ch.tracked {
			seen[ch.opts.PresenceKey] = struct{}{}
		}
		ch.mu.Unlock()
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (h *Hub) syncPresence(topic string) {
	keys := h.presenceKeys(topic)
	for _, ch := range h.members(topic) {
		ch.deliverPresence(keys)
	}
}

type Channel struct {
	hub   *Hub
	topic string
	opts  backend.ChannelOptions

	mu         sync.Mutex
	broadcast  map[string][]func(json.RawMessage)
	changes    map[string][]func(backend.RowChange)
	presence   []func([]string)
	subscribed bool
	tracked    bool
}

func (ch *Channel) OnBroadcast(event string, fn func(json.RawMessage)) {
	ch.mu.Lock()
	ch.broadcast[event] = append(ch.broadcast[event], fn)
	ch.mu.Unlock()
}

func (ch *Channel) OnRowChange(table string, fn func(backend.RowChange)) {
	ch.mu.Lock()
	ch.changes[table] = append(ch.changes[table], fn)
	ch.mu.Unlock()
}

func (ch *Channel) OnPresenceSync(fn func([]string)) {
	ch.mu.Lock()
	ch.presence = append(ch.presence, fn)
	ch.mu.Unlock()
}

func (ch *Channel) Subscribe(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ch.mu.Lock()
	ch.subscribed = true
	ch.mu.Unlock()

	ch.hub.mu.Lock()
	m, ok := ch.hub.topics[ch.topic]
	if !ok {
		m = map[*Channel]struct{}{}
		ch.hub.topics[ch.topic] = m
	}
	m[ch] = struct{}{}
	ch.hub.mu.Unlock()

	ch.deliverPresence(ch.hub.presenceKeys(ch.topic))
	return nil
}

func (ch *Channel) Broadcast(ctx context.Context, event string, payload any) error {
	if !ch.isSubscribed() {
		return ErrNotSubscribed
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	for _, other := range ch.hub.members(ch.topic) {
		if other != ch {
			other.deliverBroadcast(event, b)
		}
	}
	return nil
}

func (ch *Channel) Track(ctx context.Context, meta any) error {
	if !ch.isSubscribed() {
		return ErrNotSubscribed
	}
	ch.mu.Lock()
	ch.tracked = true
	ch.mu.Unlock()
	ch.hub.syncPresence(ch.topic)
	return nil
}

func (ch *Channel) Unsubscribe(ctx context.Context) error {
	ch.mu.Lock()
	ch.subscribed = false
	ch.tracked = false
	ch.mu.Unlock()

	ch.hub.mu.Lock()
	delete(ch.hub.topics[ch.topic], ch)
	if len(ch.hub.topics[ch.topic]) == 0 {
		delete(ch.hub.topics, ch.topic)
	}
	ch.hub.mu.Unlock()

	ch.hub.syncPresence(ch.topic)
	return nil
}

func (ch *Channel) isSubscribed() bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.subscribed
}

func (ch *Channel) deliverBroadcast(event string, payload json.RawMessage) {
	ch.mu.Lock()
	fns := append([]func(json.RawMessage){}, ch.broadcast[event]...)
	ch.mu.Unlock()
	for _, fn := range fns {
		fn(payload)
	}
}

func (ch *Channel) deliverChange(c backend.RowChange) {
	ch.mu.Lock()
	fns := append([]func(backend.RowChange){}, ch.changes[c.Table]...)
	ch.mu.Unlock()
	for _, fn := range fns {
		fn(c)
	}
}

func (ch *Channel) deliverPresence(keys []string) {
	ch.mu.Lock()
	fns := append([]func([]string){}, ch.presence...)
	ch.mu.Unlock()
	for _, fn := range fns {
		fn(append([]string(nil), keys...))
	}
}
