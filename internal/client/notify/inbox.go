// Package notify receives in-app broadcast notifications and handles web
// push payloads and subscriptions.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"strings"
	"sync"

	"github.com/dmitrijs2005/templesanathan/internal/client/backend"
	"github.com/dmitrijs2005/templesanathan/internal/logging"
	"github.com/google/uuid"
)

const (
	ChannelBroadcast = "notifications"
	EventNewMessage  = "new_message"

	// InboxSize is how many of the most recent items are kept.
	InboxSize = 5

	defaultItemTitle = "Message"
)

type Item struct {
	ID      string
	Title   string
	Message string
}

// Inbox collects new_message broadcasts from the shared channel and from
// the signed-in user's personal channel.
type Inbox struct {
	rt  backend.Realtime
	log logging.Logger

	mu       sync.Mutex
	items    []Item
	shared   backend.Channel
	personal backend.Channel
	email    string
	subs     []func()
}

func NewInbox(rt backend.Realtime, log logging.Logger) *Inbox {
	return &Inbox{rt: rt, log: log}
}

func UserChannel(email string) string {
	return "user:" + strings.ToLower(strings.TrimSpace(email))
}

// Subscribe registers fn to run after each new item.
func (in *Inbox) Subscribe(fn func()) {
	in.mu.Lock()
	in.subs = append(in.subs, fn)
	in.mu.Unlock()
}

func (in *Inbox) join(ctx context.Context, topic string) (backend.Channel, error) {
	ch := in.rt.Channel(topic, backend.ChannelOptions{})
	ch.OnBroadcast(EventNewMessage, in.receive)
	if err := ch.Subscribe(ctx); err != nil {
		return nil, err
	}
	return ch, nil
}

// Start joins the shared channel. It is a no-op when already started.
func (in *Inbox) Start(ctx context.Context) error {
	in.mu.Lock()
	started := in.shared != nil
	in.mu.Unlock()
	if started {
		return nil
	}
	ch, err := in.join(ctx, ChannelBroadcast)
	if err != nil {
		return err
	}
	in.mu.Lock()
	in.shared = ch
	in.mu.Unlock()
	return nil
}

// SetUser moves the personal subscription to email's channel. An empty
// email leaves only the shared channel.
func (in *Inbox) SetUser(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	in.mu.Lock()
	if email == in.email {
		in.mu.Unlock()
		return nil
	}
	old := in.personal
	in.personal, in.email = nil, email
	in.mu.Unlock()

	if old != nil {
		if err := old.Unsubscribe(ctx); err != nil {
			in.log.Warn(ctx, "leave user channel", "error", err)
		}
	}
	if email == "" {
		return nil
	}
	ch, err := in.join(ctx, UserChannel(email))
	if err != nil {
		return err
	}
	in.mu.Lock()
	if in.email == email {
		in.personal = ch
		ch = nil
	}
	in.mu.Unlock()
	if ch != nil {
		return ch.Unsubscribe(ctx)
	}
	return nil
}

// Stop leaves both channels and keeps the received items.
func (in *Inbox) Stop(ctx context.Context) error {
	in.mu.Lock()
	chans := []backend.Channel{in.shared, in.personal}
	in.shared, in.personal, in.email = nil, nil, ""
	in.mu.Unlock()

	var errs []error
	for _, ch := range chans {
		if ch != nil {
			errs = append(errs, ch.Unsubscribe(ctx))
		}
	}
	return errors.Join(errs...)
}

func (in *Inbox) receive(payload json.RawMessage) {
	var p struct {
		Title   string `json:"title"`
		Message string `json:"message"`
	}
	_ = json.Unmarshal(payload, &p)
	item := Item{ID: uuid.NewString(), Title: p.Title, Message: p.Message}
	if item.Title == "" {
		item.Title = defaultItemTitle
	}

	in.mu.Lock()
	in.items = append(in.items, item)
	if n := len(in.items); n > InboxSize {
		in.items = slices.Clone(in.items[n-InboxSize:])
	}
	subs := slices.Clone(in.subs)
	in.mu.Unlock()

	for _, fn := range subs {
		fn()
	}
}

// Items returns the inbox oldest first.
func (in *Inbox) Items() []Item {
	in.mu.Lock()
	defer in.mu.Unlock()
	return slices.Clone(in.items)
}

// Dismiss removes one item.
func (in *Inbox) Dismiss(id string) bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	n := len(in.items)
	in.items = slices.DeleteFunc(in.items, func(it Item) bool { return it.ID == id })
	return len(in.items) != n
}
