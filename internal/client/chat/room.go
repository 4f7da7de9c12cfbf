package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/templesanathan/internal/client/backend"
	"github.com/dmitrijs2005/templesanathan/internal/common"
	"github.com/dmitrijs2005/templesanathan/internal/logging"
	"github.com/google/uuid"
)

var (
	ErrEmptyMessage = errors.New("message is empty")
	ErrNotOwner     = errors.New("not your message")
	ErrNotMounted   = errors.New("chat room is not open")
	ErrSendFailed   = errors.New("message not saved")
	ErrEditFailed   = errors.New("edit not saved")
	ErrDeleteFailed = errors.New("failed to delete message")
)

// Session is what the room needs to know about the current user.
// *session.Context implements it.
type Session interface {
	Identity() *backend.Identity
	Offline() bool
}

type Room struct {
	tables   backend.Tables
	realtime backend.Realtime
	sess     Session
	log      logging.Logger
	now      func() time.Time
	newID    func() string

	mu          sync.Mutex
	gen         int
	mounted     bool
	state       State
	typing      Typing
	online      int
	persistence bool
	name        string
	channels    []backend.Channel
	live        backend.Channel
	stopSweep   context.CancelFunc
	listeners   map[int]func()
	nextL       int
}

func NewRoom(tables backend.Tables, rt backend.Realtime, sess Session, log logging.Logger) *Room {
	return &Room{
		tables:    tables,
		realtime:  rt,
		sess:      sess,
		log:       log,
		now:       time.Now,
		newID:     uuid.NewString,
		listeners: map[int]func(){},
	}
}

// Subscribe registers fn to run after every visible change.
func (r *Room) Subscribe(fn func()) (unsubscribe func()) {
	r.mu.Lock()
	id := r.nextL
	r.nextL++
	r.listeners[id] = fn
	r.mu.Unlock()
	return func() {
		r.mu.Lock()
		delete(r.listeners, id)
		r.mu.Unlock()
	}
}

func (r *Room) notify() {
	r.mu.Lock()
	fns := make([]func(), 0, len(r.listeners))
	for _, fn := range r.listeners {
		fns = append(fns, fn)
	}
	r.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// update runs fn under the lock if generation gen is still mounted.
// Results of calls that outlive an Unmount are dropped here.
func (r *Room) update(gen int, fn func()) bool {
	r.mu.Lock()
	ok := r.mounted && r.gen == gen
	if ok {
		fn()
	}
	r.mu.Unlock()
	if ok {
		r.notify()
	}
	return ok
}

func (r *Room) apply(gen int, ev Event) bool {
	return r.update(gen, func() { r.state = Reduce(r.state, ev) })
}

func (r *Room) current() (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gen, r.mounted
}

func (r *Room) nowMillis() int64 { return r.now().UnixMilli() }

// Mount loads history and joins the three chat channels. Channel failures
// are logged; the room stays usable with whatever sources are available.
func (r *Room) Mount(ctx context.Context) error {
	r.mu.Lock()
	if r.mounted {
		r.mu.Unlock()
		return nil
	}
	r.gen++
	gen := r.gen
	r.mounted = true
	r.state = State{}
	r.typing.Reset()
	r.online = 0
	r.persistence = false
	r.name = DisplayName(r.sess.Identity())
	name := r.name
	sweepCtx, stop := context.WithCancel(context.Background())
	r.stopSweep = stop
	r.mu.Unlock()

	rows := r.realtime.Channel(ChannelRows, backend.ChannelOptions{})
	rows.OnRowChange(Table, func(c backend.RowChange) { r.onRowChange(gen, c) })

	live := r.realtime.Channel(ChannelLive, backend.ChannelOptions{})
	live.OnBroadcast(EventMessage, func(p json.RawMessage) {
		m, err := decodeBroadcast(p)
		if err != nil {
			r.log.Warn(ctx, "dropping chat broadcast", "error", err)
			return
		}
		r.apply(gen, Broadcast{Message: m})
	})
	live.OnBroadcast(EventTyping, func(p json.RawMessage) {
		var ping struct {
			Name string `json:"name"`
		}
		_ = json.Unmarshal(p, &ping)
		r.update(gen, func() { r.typing.Ping(ping.Name, r.now()) })
	})

	presence := r.realtime.Channel(ChannelPresence, backend.ChannelOptions{PresenceKey: name})
	presence.OnPresenceSync(func(keys []string) {
		r.update(gen, func() { r.online = len(keys) })
	})

	var joined []backend.Channel
	for _, ch := range []backend.Channel{rows, live, presence} {
		if err := ch.Subscribe(ctx); err != nil {
			r.log.Warn(ctx, "chat channel subscribe failed", "error", err)
			continue
		}
		joined = append(joined, ch)
	}
	if err := presence.Track(ctx, map[string]string{"online_at": r.now().UTC().Format(time.RFC3339)}); err != nil {
		r.log.Warn(ctx, "presence track failed", "error", err)
	}

	if !r.update(gen, func() { r.channels, r.live = joined, live }) {
		for _, ch := range joined {
			_ = ch.Unsubscribe(ctx)
		}
		return ErrNotMounted
	}

	r.loadHistory(ctx, gen)
	go r.sweep(sweepCtx, gen)
	return nil
}

func (r *Room) loadHistory(ctx context.Context, gen int) {
	var rows []Row
	err := r.tables.Select(ctx, backend.Query{
		Table:   Table,
		Columns: []string{"id", "uid", "username", "text", "ts"},
		Order:   []backend.OrderBy{{Column: "ts"}},
		Limit:   MaxMessages,
	}, &rows)
	if err != nil {
		r.log.Warn(ctx, "chat history unavailable", "error", err)
		r.update(gen, func() { r.persistence = true })
		return
	}

	msgs := make([]Message, 0, len(rows))
	for _, row := range rows {
		m, err := row.Message()
		if err != nil {
			r.log.Warn(ctx, "skipping chat row", "error", err)
			continue
		}
		msgs = append(msgs, m)
	}
	r.update(gen, func() {
		r.state = Reduce(r.state, History{Messages: msgs})
		r.persistence = false
	})
}

func (r *Room) onRowChange(gen int, c backend.RowChange) {
	ctx := context.Background()
	switch c.Type {
	case backend.ChangeInsert, backend.ChangeUpdate:
		m, err := decodeRow(c.New)
		if err != nil {
			r.log.Warn(ctx, "dropping chat row change", "error", err)
			return
		}
		if c.Type == backend.ChangeInsert {
			r.apply(gen, RowInsert{Message: m})
		} else {
			r.apply(gen, RowUpdate{Message: m})
		}
	case backend.ChangeDelete:
		var old struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(c.Old, &old); err != nil || old.ID == "" {
			r.log.Warn(ctx, "dropping chat delete without id")
			return
		}
		r.apply(gen, RowDelete{ID: old.ID})
	}
}

func (r *Room) sweep(ctx context.Context, gen int) {
	ticker := time.NewTicker(SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.Sweep(gen)
		case <-ctx.Done():
			return
		}
	}
}

// Sweep drops expired typing entries; the ticker calls it once a second.
func (r *Room) Sweep(gen int) {
	r.mu.Lock()
	changed := r.mounted && r.gen == gen && r.typing.Sweep(r.now())
	r.mu.Unlock()
	if changed {
		r.notify()
	}
}

// Unmount leaves all channels and stops the sweep. In-flight calls finish
// but their results are discarded.
func (r *Room) Unmount(ctx context.Context) {
	r.mu.Lock()
	if !r.mounted {
		r.mu.Unlock()
		return
	}
	r.mounted = false
	r.gen++
	chans := r.channels
	r.channels, r.live = nil, nil
	stop := r.stopSweep
	r.stopSweep = nil
	r.mu.Unlock()

	if stop != nil {
		stop()
	}
	for _, ch := range chans {
		if err := ch.Unsubscribe(ctx); err != nil {
			r.log.Warn(ctx, "chat channel unsubscribe failed", "error", err)
		}
	}
}

func (r *Room) upsert(ctx context.Context, m Message) error {
	return r.tables.Upsert(ctx, Table, []Row{rowOf(m)}, "id")
}

// Send appends the message optimistically and persists it. When the write
// fails the message is broadcast so online peers still see it, and it is
// left failed for a retry.
func (r *Room) Send(ctx context.Context, text string) (Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Message{}, ErrEmptyMessage
	}
	if r.sess.Offline() {
		return Message{}, common.ErrOffline
	}
	gen, ok := r.current()
	if !ok {
		return Message{}, ErrNotMounted
	}

	m := Message{ID: r.newID(), User: r.displayName(), Text: text, TS: r.nowMillis(), Status: StatusSending}
	if id := r.sess.Identity(); id != nil {
		m.UID = id.ID
	}
	r.apply(gen, LocalSend{Message: m})

	if err := r.upsert(ctx, m); err != nil {
		r.log.Warn(ctx, "chat message not persisted, broadcasting", "id", m.ID, "error", err)
		r.update(gen, func() { r.persistence = true })
		echo := m
		echo.Status = StatusSent
		if live := r.liveChannel(); live != nil {
			if berr := live.Broadcast(ctx, EventMessage, echo); berr != nil {
				r.log.Warn(ctx, "chat broadcast failed", "error", berr)
			}
		}
		r.apply(gen, SendFailed{ID: m.ID, TS: m.TS})
		m.Status = StatusFailed
		return m, fmt.Errorf("%w: %w", ErrSendFailed, err)
	}
	r.apply(gen, SendAck{ID: m.ID, TS: m.TS})
	m.Status = StatusSent
	return m, nil
}

// Retry re-attempts the write of a failed message.
func (r *Room) Retry(ctx context.Context, id string) error {
	gen, m, err := r.own(id)
	if err != nil {
		return err
	}
	if m.Status != StatusFailed {
		return nil
	}
	r.apply(gen, Retry{ID: id})
	if err := r.upsert(ctx, m); err != nil {
		r.apply(gen, SendFailed{ID: id, TS: m.TS})
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}
	r.apply(gen, SendAck{ID: id, TS: m.TS})
	return nil
}

// Edit changes the text locally first. A failed write leaves the new text
// in place marked failed.
func (r *Room) Edit(ctx context.Context, id, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}
	gen, _, err := r.own(id)
	if err != nil {
		return err
	}
	ts := r.nowMillis()
	r.apply(gen, LocalEdit{ID: id, Text: text, TS: ts})

	patch := map[string]any{"text": text, "ts": ts}
	if err := r.tables.Update(ctx, Table, patch, backend.Eq("id", id)); err != nil {
		r.apply(gen, EditFailed{ID: id, TS: ts})
		return fmt.Errorf("%w: %w", ErrEditFailed, err)
	}
	r.apply(gen, EditAck{ID: id, TS: ts})
	return nil
}

// Delete removes the message locally first and puts it back if the
// backend delete fails.
func (r *Room) Delete(ctx context.Context, id string) error {
	gen, m, err := r.own(id)
	if err != nil {
		return err
	}
	r.apply(gen, LocalDelete{ID: id})
	if err := r.tables.Delete(ctx, Table, backend.Eq("id", id)); err != nil {
		r.log.Warn(ctx, "chat delete failed, restoring", "id", id, "error", err)
		r.apply(gen, Restore{Message: m})
		return fmt.Errorf("%w: %w", ErrDeleteFailed, err)
	}
	return nil
}

// Typing broadcasts a typing ping with the display name.
func (r *Room) Typing(ctx context.Context) error {
	live := r.liveChannel()
	if live == nil {
		return ErrNotMounted
	}
	return live.Broadcast(ctx, EventTyping, map[string]string{"name": r.displayName()})
}

func (r *Room) own(id string) (int, Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.mounted {
		return 0, Message{}, ErrNotMounted
	}
	m, ok := r.state.Find(id)
	if !ok {
		return 0, Message{}, common.ErrNotFound
	}
	if !Mine(m, r.sess.Identity(), r.name) {
		return 0, Message{}, ErrNotOwner
	}
	return r.gen, m, nil
}

func (r *Room) liveChannel() backend.Channel {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.live
}

func (r *Room) displayName() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.name
}

func (r *Room) DisplayName() string { return r.displayName() }

func (r *Room) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.state.Messages...)
}

// IsMine applies the ownership rule for the current user.
func (r *Room) IsMine(m Message) bool {
	return Mine(m, r.sess.Identity(), r.displayName())
}

func (r *Room) TypingIndicator() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.typing.Indicator()
}

func (r *Room) OnlineCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.online
}

// PersistenceIssue reports that history or a write failed and the room
// is running on broadcast only.
func (r *Room) PersistenceIssue() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.persistence
}

func (r *Room) Mounted() bool {
	_, ok := r.current()
	return ok
}
