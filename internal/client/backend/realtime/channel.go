package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/dmitrijs2005/templesanathan/internal/client/backend"
)

type Channel struct {
	client *Client
	topic  string
	opts   backend.ChannelOptions

	mu            sync.Mutex
	broadcast     map[string][]func(json.RawMessage)
	changes       map[string][]func(backend.RowChange)
	presence      []func([]string)
	presenceState map[string]struct{}
	joined        bool
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

// Subscribe joins the topic, asking for change events of every table that
// has a registered handler.
func (ch *Channel) Subscribe(ctx context.Context) error {
	if err := ch.client.connect(ctx); err != nil {
		return err
	}

	var p joinPayload
	p.Config.Presence.Key = ch.opts.PresenceKey
	p.Config.PostgresChanges = []changeFilter{}
	ch.mu.Lock()
	tables := make([]string, 0, len(ch.changes))
	for t := range ch.changes {
		tables = append(tables, t)
	}
	ch.mu.Unlock()
	sort.Strings(tables)
	for _, t := range tables {
		p.Config.PostgresChanges = append(p.Config.PostgresChanges, changeFilter{Event: "*", Schema: "public", Table: t})
	}
	if ch.client.tokens != nil {
		if tok, err := ch.client.tokens.AccessToken(ctx); err == nil {
			p.AccessToken = tok
		}
	}

	ch.client.register(ch)
	reply, err := ch.client.request(ctx, ch.topic, eventJoin, p)
	if err != nil {
		ch.client.unregister(ch)
		return err
	}
	if reply.Status != "ok" {
		ch.client.unregister(ch)
		return fmt.Errorf("join %s refused: %s", ch.topic, string(reply.Response))
	}

	ch.mu.Lock()
	ch.joined = true
	ch.mu.Unlock()
	return nil
}

func (ch *Channel) Broadcast(ctx context.Context, event string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = ch.client.push(ch.topic, eventBroadcast, broadcastPayload{Type: "broadcast", Event: event, Payload: b})
	return err
}

func (ch *Channel) Track(ctx context.Context, meta any) error {
	_, err := ch.client.push(ch.topic, eventPresence, presencePayload{Type: "presence", Event: "track", Payload: meta})
	return err
}

func (ch *Channel) Unsubscribe(ctx context.Context) error {
	ch.mu.Lock()
	joined := ch.joined
	ch.joined = false
	ch.mu.Unlock()

	ch.client.unregister(ch)
	if !joined {
		return nil
	}
	_, err := ch.client.push(ch.topic, eventLeave, struct{}{})
	if errors.Is(err, ErrClosed) {
		return nil
	}
	return err
}

func (ch *Channel) handle(f Frame) {
	switch f.Event {
	case eventBroadcast:
		var p broadcastPayload
		if err := json.Unmarshal(f.Payload, &p); err != nil {
			return
		}
		ch.mu.Lock()
		fns := append([]func(json.RawMessage){}, ch.broadcast[p.Event]...)
		ch.mu.Unlock()
		for _, fn := range fns {
			fn(p.Payload)
		}

	case eventChanges:
		var p changesPayload
		if err := json.Unmarshal(f.Payload, &p); err != nil {
			return
		}
		change := backend.RowChange{
			Type:  backend.ChangeType(p.Data.Type),
			Table: p.Data.Table,
			New:   p.Data.Record,
			Old:   p.Data.OldRecord,
		}
		ch.mu.Lock()
		fns := append([]func(backend.RowChange){}, ch.changes[change.Table]...)
		ch.mu.Unlock()
		for _, fn := range fns {
			fn(change)
		}

	case eventPresenceState:
		var state map[string]json.RawMessage
		if err := json.Unmarshal(f.Payload, &state); err != nil {
			return
		}
		ch.mu.Lock()
		ch.presenceState = make(map[string]struct{}, len(state))
		for k := range state {
			ch.presenceState[k] = struct{}{}
		}
		ch.mu.Unlock()
		ch.syncPresence()

	case eventPresenceDiff:
		var d presenceDiff
		if err := json.Unmarshal(f.Payload, &d); err != nil {
			return
		}
		ch.mu.Lock()
		for k := range d.Joins {
			ch.presenceState[k] = struct{}{}
		}
		for k := range d.Leaves {
			if _, rejoined := d.Joins[k]; !rejoined {
				delete(ch.presenceState, k)
			}
		}
		ch.mu.Unlock()
		ch.syncPresence()

	case eventClose, eventError:
		ch.mu.Lock()
		ch.joined = false
		ch.mu.Unlock()
	}
}

func (ch *Channel) syncPresence() {
	ch.mu.Lock()
	keys := make([]string, 0, len(ch.presenceState))
	for k := range ch.presenceState {
		keys = append(keys, k)
	}
	fns := append([]func([]string){}, ch.presence...)
	ch.mu.Unlock()

	sort.Strings(keys)
	for _, fn := range fns {
		fn(keys)
	}
}
