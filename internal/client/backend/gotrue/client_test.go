package gotrue

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/templesanathan/internal/client/backend"
	"github.com/dmitrijs2005/templesanathan/internal/common"
	"github.com/dmitrijs2005/templesanathan/internal/logging"
	"github.com/dmitrijs2005/templesanathan/internal/netx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu sync.Mutex
	m  map[string]string
}

func newMemStore() *memStore { return &memStore{m: map[string]string{}} }

func (s *memStore) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[key]
	return v, ok
}

func (s *memStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = value
	return nil
}

func (s *memStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
	return nil
}

func makeToken(t *testing.T, sub, email, role string, exp time.Time) string {
	t.Helper()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: sub, ExpiresAt: jwt.NewNumericDate(exp)},
		Email:            email,
		Role:             "authenticated",
	}
	claims.AppMetadata.Role = role
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return tok
}

type fakeState struct {
	refreshReply int
	userReply    int
	refreshes    int
	role         string
}

type fakeGoTrue struct {
	t  *testing.T
	mu sync.Mutex
	st fakeState
}

func (f *fakeGoTrue) set(fn func(st *fakeState)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(&f.st)
}

func (f *fakeGoTrue) snapshot() fakeState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.st
}

func (f *fakeGoTrue) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/v1/token", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		switch r.URL.Query().Get("grant_type") {
		case "password":
			if body["password"] != "om-namah" {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Invalid login credentials"}`))
				return
			}
		case "refresh_token":
			f.mu.Lock()
			f.st.refreshes++
			reply := f.st.refreshReply
			f.mu.Unlock()
			if reply != 0 {
				w.WriteHeader(reply)
				_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Invalid Refresh Token: Refresh Token Not Found"}`))
				return
			}
		}
		tok := makeToken(f.t, "u1", "devotee@example.com", f.snapshot().role, time.Now().Add(time.Hour))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": tok, "refresh_token": "rt-2", "expires_in": 3600,
			"user": map[string]string{"id": "u1", "email": "devotee@example.com"},
		})
	})
	mux.HandleFunc("/auth/v1/user", func(w http.ResponseWriter, r *http.Request) {
		st := f.snapshot()
		if st.userReply != 0 {
			w.WriteHeader(st.userReply)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "u1", "email": "devotee@example.com", "app_metadata": map[string]string{"role": st.role},
		})
	})
	mux.HandleFunc("/auth/v1/logout", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	mux.HandleFunc("/auth/v1/health", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(`{}`)) })
	return mux
}

func setup(t *testing.T, store *memStore) (*Client, *fakeGoTrue, *httptest.Server) {
	t.Helper()
	f := &fakeGoTrue{t: t}
	ts := httptest.NewServer(f.handler())
	t.Cleanup(ts.Close)
	c := NewClient(context.Background(), ts.URL, "anon", netx.NewClient(time.Second), store, logging.Nop())
	return c, f, ts
}

func collect(c *Client) (*[]backend.AuthEvent, *sync.Mutex) {
	var mu sync.Mutex
	events := []backend.AuthEvent{}
	c.OnAuthStateChange(func(e backend.AuthEvent, _ *backend.Session) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	})
	return &events, &mu
}

func TestSignIn_PersistsSessionAndEmits(t *testing.T) {
	store := newMemStore()
	c, f, _ := setup(t, store)
	f.set(func(st *fakeState) { st.role = "admin" })
	events, _ := collect(c)

	s, err := c.SignIn(context.Background(), "devotee@example.com", "om-namah")
	require.NoError(t, err)
	assert.Equal(t, "u1", s.User.ID)
	assert.Equal(t, "admin", s.User.Role)
	assert.Equal(t, []backend.AuthEvent{backend.EventSignedIn}, *events)

	raw, ok := store.Get(c.StorageKey())
	require.True(t, ok)
	assert.Contains(t, raw, `"refresh_token":"rt-2"`)

	id, err := c.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.True(t, id.IsAdmin())
}

func TestSignIn_BadPasswordIsUnauthorized(t *testing.T) {
	c, _, _ := setup(t, newMemStore())

	_, err := c.SignIn(context.Background(), "devotee@example.com", "wrong")
	assert.ErrorIs(t, err, common.ErrUnauthorized)
}

func TestCurrentUser_NoSession(t *testing.T) {
	c, _, _ := setup(t, newMemStore())

	id, err := c.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Nil(t, id)
}

func TestAccessToken_RefreshesExpiredToken(t *testing.T) {
	store := newMemStore()
	c, f, _ := setup(t, store)
	events, _ := collect(c)

	_, err := c.SignIn(context.Background(), "devotee@example.com", "om-namah")
	require.NoError(t, err)
	c.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	tok, err := c.AccessToken(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, tok)
	assert.Equal(t, 1, f.snapshot().refreshes)
	assert.Equal(t, []backend.AuthEvent{backend.EventSignedIn, backend.EventTokenRefreshed}, *events)
}

func TestAccessToken_InvalidRefreshPurgesAndEmitsFailure(t *testing.T) {
	store := newMemStore()
	c, f, _ := setup(t, store)
	events, _ := collect(c)

	_, err := c.SignIn(context.Background(), "devotee@example.com", "om-namah")
	require.NoError(t, err)
	f.set(func(st *fakeState) { st.refreshReply = http.StatusBadRequest })
	c.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	_, err = c.AccessToken(context.Background())
	assert.ErrorIs(t, err, common.ErrRefreshTokenInvalid)
	assert.Equal(t, backend.EventTokenRefreshFailed, (*events)[len(*events)-1])

	_, ok := store.Get(c.StorageKey())
	assert.False(t, ok)

	tok, err := c.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tok)
}

func TestAccessToken_ServerErrorKeepsSession(t *testing.T) {
	store := newMemStore()
	c, f, _ := setup(t, store)

	_, err := c.SignIn(context.Background(), "devotee@example.com", "om-namah")
	require.NoError(t, err)
	f.set(func(st *fakeState) { st.refreshReply = http.StatusBadGateway })
	c.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	_, err = c.AccessToken(context.Background())
	assert.ErrorIs(t, err, common.ErrUnavailable)
	_, ok := store.Get(c.StorageKey())
	assert.True(t, ok)
}

func TestSignOut_ClearsAndEmits(t *testing.T) {
	store := newMemStore()
	c, _, _ := setup(t, store)
	events, _ := collect(c)

	_, err := c.SignIn(context.Background(), "devotee@example.com", "om-namah")
	require.NoError(t, err)
	require.NoError(t, c.SignOut(context.Background()))

	assert.Equal(t, backend.EventSignedOut, (*events)[1])
	_, ok := store.Get(c.StorageKey())
	assert.False(t, ok)
}

func TestNewClient_RestoresStoredSession(t *testing.T) {
	f := &fakeGoTrue{t: t}
	ts := httptest.NewServer(f.handler())
	defer ts.Close()

	store := newMemStore()
	tok := makeToken(t, "u1", "devotee@example.com", "", time.Now().Add(time.Hour))
	blob, _ := json.Marshal(map[string]any{"access_token": tok, "refresh_token": "rt", "expires_at": time.Now().Add(time.Hour).Unix()})
	_ = store.Set(context.Background(), common.AuthStorageKey(ts.URL), string(blob))

	c := NewClient(context.Background(), ts.URL, "anon", netx.NewClient(time.Second), store, logging.Nop())
	got, err := c.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, tok, got)
}

func TestPing(t *testing.T) {
	c, _, _ := setup(t, newMemStore())
	assert.NoError(t, c.Ping(context.Background()))
}
