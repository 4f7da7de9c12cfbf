package memory

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/templesanathan/internal/client/backend"
	"github.com/dmitrijs2005/templesanathan/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuth_SignUpSignInSignOut(t *testing.T) {
	ctx := context.Background()
	a := NewAuth("Admin@Temple.org")

	var events []backend.AuthEvent
	unsub := a.OnAuthStateChange(func(ev backend.AuthEvent, _ *backend.Session) { events = append(events, ev) })
	defer unsub()

	s, err := a.SignUp(ctx, "admin@temple.org", "secret")
	require.NoError(t, err)
	assert.True(t, s.User.IsAdmin())

	_, err = a.SignUp(ctx, "ADMIN@temple.org", "x")
	assert.ErrorIs(t, err, common.ErrAlreadyRegistered)

	_, err = a.SignIn(ctx, "admin@temple.org", "wrong")
	assert.ErrorIs(t, err, common.ErrUnauthorized)

	_, err = a.SignIn(ctx, "admin@temple.org", "secret")
	require.NoError(t, err)

	id, err := a.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "admin@temple.org", id.Email)

	require.NoError(t, a.SignOut(ctx))
	id, err = a.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Nil(t, id)

	a.ExpireSession()
	assert.Equal(t, []backend.AuthEvent{
		backend.EventSignedIn, backend.EventSignedIn, backend.EventSignedOut, backend.EventTokenRefreshFailed,
	}, events)
}

func TestTables_FiltersOrderLimit(t *testing.T) {
	ctx := context.Background()
	tb := NewTables(nil)
	require.NoError(t, tb.Seed("temples", []map[string]any{
		{"id": "1", "name": map[string]any{"english": "Sri Rama Temple"}, "popularity": 3},
		{"id": "2", "name": map[string]any{"english": "Lakshmi Temple"}, "popularity": 10},
		{"id": "3", "name": map[string]any{"english": "SRI venkateswara"}, "popularity": 7},
	}))

	var out []struct {
		ID string `json:"id"`
	}
	err := tb.Select(ctx, backend.Query{
		Table:   "temples",
		Columns: []string{"id"},
		Filters: []backend.Filter{backend.ILike("name->>english", "sri%")},
		Order:   []backend.OrderBy{{Column: "popularity", Descending: true}},
	}, &out)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "3", out[0].ID)
	assert.Equal(t, "1", out[1].ID)

	out = nil
	require.NoError(t, tb.Select(ctx, backend.Query{
		Table:   "temples",
		Filters: []backend.Filter{backend.Gte("popularity", "5")},
		Order:   []backend.OrderBy{{Column: "popularity"}},
		Limit:   1,
	}, &out))
	require.Len(t, out, 1)
	assert.Equal(t, "3", out[0].ID)
}

func TestTables_ILikeEscapedWildcards(t *testing.T) {
	ctx := context.Background()
	tb := NewTables(nil)
	require.NoError(t, tb.Seed("temples", []map[string]any{
		{"id": "1", "name": map[string]any{"english": "Tirumala Venkateswara Temple"}},
		{"id": "2", "name": map[string]any{"english": "Tirumala % Temple"}},
		{"id": "3", "name": map[string]any{"english": `Back\slash`}},
	}))

	ids := func(pattern string) []string {
		var out []struct {
			ID string `json:"id"`
		}
		require.NoError(t, tb.Select(ctx, backend.Query{
			Table:   "temples",
			Filters: []backend.Filter{backend.ILike("name->>english", pattern)},
			Order:   []backend.OrderBy{{Column: "id"}},
		}, &out))
		got := make([]string, 0, len(out))
		for _, r := range out {
			got = append(got, r.ID)
		}
		return got
	}

	assert.Equal(t, []string{"1", "2"}, ids("tirumala % temple"))
	assert.Equal(t, []string{"2"}, ids(backend.EscapeLike("tirumala % temple")))
	assert.Empty(t, ids(backend.EscapeLike("Tirumala_Venkateswara_Temple")))
	assert.Equal(t, []string{"3"}, ids(backend.EscapeLike(`back\slash`)))
}

func TestTables_SelectEmptyTableGivesEmptySlice(t *testing.T) {
	tb := NewTables(nil)
	var out []map[string]any
	require.NoError(t, tb.Select(context.Background(), backend.Query{Table: "festivals"}, &out))
	assert.NotNil(t, out)
	assert.Empty(t, out)
}

func TestTables_WritesEmitRowChanges(t *testing.T) {
	ctx := context.Background()
	hub := NewHub()
	tb := NewTables(hub)

	ch := hub.Channel("db", backend.ChannelOptions{})
	var got []backend.RowChange
	ch.OnRowChange("chat_messages", func(c backend.RowChange) { got = append(got, c) })
	require.NoError(t, ch.Subscribe(ctx))

	require.NoError(t, tb.Upsert(ctx, "chat_messages", []map[string]any{{"id": "m1", "text": "hi", "ts": 1}}, "id"))
	require.NoError(t, tb.Upsert(ctx, "chat_messages", []map[string]any{{"id": "m1", "text": "hello", "ts": 2}}, "id"))
	require.NoError(t, tb.Update(ctx, "chat_messages", map[string]any{"text": "edited"}, backend.Eq("id", "m1")))
	require.NoError(t, tb.Delete(ctx, "chat_messages", backend.Eq("id", "m1")))
	require.NoError(t, tb.Insert(ctx, "other", map[string]any{"x": 1}))

	require.Len(t, got, 4)
	assert.Equal(t, backend.ChangeInsert, got[0].Type)
	assert.Equal(t, backend.ChangeUpdate, got[1].Type)
	assert.JSONEq(t, `"hello"`, string(field(t, got[1].New, "text")))
	assert.JSONEq(t, `"hi"`, string(field(t, got[1].Old, "text")))
	assert.Equal(t, backend.ChangeUpdate, got[2].Type)
	assert.Equal(t, backend.ChangeDelete, got[3].Type)
	assert.Empty(t, got[3].New)
	assert.JSONEq(t, `"m1"`, string(field(t, got[3].Old, "id")))
	assert.Empty(t, tb.Rows("chat_messages"))
}

func TestTables_UnfilteredWritesRefused(t *testing.T) {
	tb := NewTables(nil)
	assert.ErrorIs(t, tb.Delete(context.Background(), "temples"), ErrNoFilters)
	assert.ErrorIs(t, tb.Update(context.Background(), "temples", map[string]any{"a": 1}), ErrNoFilters)
}

func TestTables_InsertFillsIDAndCreatedAt(t *testing.T) {
	tb := NewTables(nil)
	tb.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	require.NoError(t, tb.Insert(context.Background(), "festivals", map[string]any{"name": "Ugadi"}))
	rows := tb.Rows("festivals")
	require.Len(t, rows, 1)
	assert.NotEmpty(t, rows[0]["id"])
	assert.Equal(t, "2026-01-02T03:04:05Z", rows[0]["created_at"])
}

func TestHub_BroadcastSkipsSenderAndPresence(t *testing.T) {
	ctx := context.Background()
	hub := NewHub()
	a := hub.Channel("room", backend.ChannelOptions{PresenceKey: "alice"})
	b := hub.Channel("room", backend.ChannelOptions{PresenceKey: "bob"})

	var aGot, bGot []string
	a.OnBroadcast("message", func(p json.RawMessage) { aGot = append(aGot, string(p)) })
	b.OnBroadcast("message", func(p json.RawMessage) { bGot = append(bGot, string(p)) })
	var bPresence []string
	b.OnPresenceSync(func(keys []string) { bPresence = keys })

	assert.ErrorIs(t, a.Broadcast(ctx, "message", "x"), ErrNotSubscribed)

	require.NoError(t, a.Subscribe(ctx))
	require.NoError(t, b.Subscribe(ctx))
	require.NoError(t, a.Broadcast(ctx, "message", map[string]string{"text": "om"}))
	assert.Empty(t, aGot)
	assert.Equal(t, []string{`{"text":"om"}`}, bGot)

	require.NoError(t, a.Track(ctx, nil))
	require.NoError(t, b.Track(ctx, nil))
	assert.Equal(t, []string{"alice", "bob"}, bPresence)

	require.NoError(t, a.Unsubscribe(ctx))
	assert.Equal(t, []string{"bob"}, bPresence)
}

func TestStorage(t *testing.T) {
	ctx := context.Background()
	s := NewStorage("avatars")

	_, err := s.SignedURL(ctx, "u/a.png", time.Hour)
	assert.ErrorIs(t, err, common.ErrNotFound)

	require.NoError(t, s.Upload(ctx, "u/a.png", strings.NewReader("png"), "image/png"))
	data, ct, ok := s.Object("u/a.png")
	require.True(t, ok)
	assert.Equal(t, "png", string(data))
	assert.Equal(t, "image/png", ct)

	u, ok := s.PublicURL("u/a.png")
	assert.True(t, ok)
	assert.Equal(t, "memory://avatars/u/a.png", u)

	signed, err := s.SignedURL(ctx, "u/a.png", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "memory://avatars/u/a.png?expires=3600", signed)
}

func field(t *testing.T, raw json.RawMessage, name string) json.RawMessage {
	t.Helper()
	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &m))
	return m[name]
}
