package rest

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/dmitrijs2005/templesanathan/internal/client/backend"
	"github.com/dmitrijs2005/templesanathan/internal/common"
	"github.com/dmitrijs2005/templesanathan/internal/netx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticToken struct {
	tok string
	err error
}

func (s staticToken) AccessToken(context.Context) (string, error) { return s.tok, s.err }

type captured struct {
	method, path, rawQuery, body string
	header                       http.Header
}

func newServer(t *testing.T, status int, reply string) (*httptest.Server, *captured) {
	t.Helper()
	got := &captured{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		got.method, got.path, got.rawQuery, got.body, got.header = r.Method, r.URL.Path, r.URL.RawQuery, string(b), r.Header
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(ts.Close)
	return ts, got
}

func TestSelect_BuildsPostgrestQuery(t *testing.T) {
	ts, got := newServer(t, http.StatusOK, `[{"id":"m1","text":"Om"}]`)
	c := NewClient(ts.URL, "anon", netx.NewClient(time.Second), staticToken{tok: "user-jwt"})

	var rows []struct{ ID, Text string }
	err := c.Select(context.Background(), backend.Query{
		Table:   "chat_messages",
		Columns: []string{"id", "uid", "username", "text", "ts"},
		Order:   []backend.OrderBy{{Column: "ts"}},
		Limit:   200,
	}, &rows)
	require.NoError(t, err)

	assert.Equal(t, http.MethodGet, got.method)
	assert.Equal(t, "/rest/v1/chat_messages", got.path)
	assert.Equal(t, "limit=200&order=ts.asc&select=id%2Cuid%2Cusername%2Ctext%2Cts", got.rawQuery)
	assert.Equal(t, "anon", got.header.Get("apikey"))
	assert.Equal(t, "Bearer user-jwt", got.header.Get("Authorization"))
	require.Len(t, rows, 1)
	assert.Equal(t, "Om", rows[0].Text)
}

func TestSelect_JSONPathFilterAndAnonBearer(t *testing.T) {
	ts, got := newServer(t, http.StatusOK, `[]`)
	c := NewClient(ts.URL, "anon", netx.NewClient(time.Second), staticToken{})

	var rows []map[string]any
	err := c.Select(context.Background(), backend.Query{
		Table:   "temples",
		Columns: []string{"name"},
		Filters: []backend.Filter{backend.ILike("name->>english", "Yadadri")},
	}, &rows)
	require.NoError(t, err)
	assert.Contains(t, got.rawQuery, "name-%3E%3Eenglish=ilike.Yadadri")
	assert.Equal(t, "Bearer anon", got.header.Get("Authorization"))
}

func TestSelect_ILikeUsesStarWildcard(t *testing.T) {
	ts, got := newServer(t, http.StatusOK, `[]`)
	c := NewClient(ts.URL, "anon", netx.NewClient(time.Second), nil)

	var rows []map[string]any
	err := c.Select(context.Background(), backend.Query{
		Table: "temples",
		Filters: []backend.Filter{
			backend.ILike("name->>english", "sri%"),
			backend.ILike("name->>telugu", backend.EscapeLike("Tirumala % Temple")),
		},
	}, &rows)
	require.NoError(t, err)
	q, err := url.ParseQuery(got.rawQuery)
	require.NoError(t, err)
	assert.Equal(t, "ilike.sri*", q.Get("name->>english"))
	assert.Equal(t, `ilike.Tirumala \% Temple`, q.Get("name->>telugu"))
}

func TestRestPattern(t *testing.T) {
	assert.Equal(t, "*sri*", restPattern("%sri%"))
	assert.Equal(t, `a\%b\_c`, restPattern(`a\%b\_c`))
	assert.Equal(t, `a\\*`, restPattern(`a\\%`))
	assert.Equal(t, "Om_Namah", restPattern("Om*Namah"))
}

func TestUpsert_SetsConflictTarget(t *testing.T) {
	ts, got := newServer(t, http.StatusCreated, ``)
	c := NewClient(ts.URL, "anon", netx.NewClient(time.Second), nil)

	err := c.Upsert(context.Background(), "chat_messages", []map[string]any{{"id": "m1"}}, "id")
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, "on_conflict=id", got.rawQuery)
	assert.Equal(t, "resolution=merge-duplicates,return=minimal", got.header.Get("Prefer"))
	assert.JSONEq(t, `[{"id":"m1"}]`, got.body)
}

func TestUpdateAndDelete(t *testing.T) {
	ts, got := newServer(t, http.StatusNoContent, ``)
	c := NewClient(ts.URL, "anon", netx.NewClient(time.Second), nil)
	ctx := context.Background()

	require.NoError(t, c.Update(ctx, "temple_submissions", map[string]string{"status": "approved"}, backend.Eq("id", "s1")))
	assert.Equal(t, http.MethodPatch, got.method)
	assert.Equal(t, "id=eq.s1", got.rawQuery)
	assert.JSONEq(t, `{"status":"approved"}`, got.body)

	require.NoError(t, c.Delete(ctx, "chat_messages", backend.Eq("id", "m1")))
	assert.Equal(t, http.MethodDelete, got.method)

	assert.Error(t, c.Delete(ctx, "chat_messages"))
}

func TestServerErrorIsUnavailable(t *testing.T) {
	ts, _ := newServer(t, http.StatusServiceUnavailable, `{"message":"down"}`)
	c := NewClient(ts.URL, "anon", netx.NewClient(time.Second), nil)

	err := c.Insert(context.Background(), "temples", map[string]any{"id": "x"})
	assert.ErrorIs(t, err, common.ErrUnavailable)
}

func TestTokenSourceErrorStopsRequest(t *testing.T) {
	ts, got := newServer(t, http.StatusOK, `[]`)
	boom := errors.New("refresh failed")
	c := NewClient(ts.URL, "anon", netx.NewClient(time.Second), staticToken{err: boom})

	err := c.Select(context.Background(), backend.Query{Table: "temples"}, &[]map[string]any{})
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, got.method)
}
