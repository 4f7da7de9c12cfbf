package gotrue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dmitrijs2005/templesanathan/internal/client/backend"
)

// SessionStore persists the session blob; prefs.Store satisfies it.
type SessionStore interface {
	Get(key string) (string, bool)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

type storedSession struct {
	AccessToken  string           `json:"access_token"`
	RefreshToken string           `json:"refresh_token"`
	ExpiresAt    int64            `json:"expires_at"`
	User         backend.Identity `json:"user"`
}

// refreshTokenOf finds the refresh token in a stored blob. Older builds
// nested the session under currentSession.
func refreshTokenOf(blob map[string]any) (string, bool) {
	if cs, ok := blob["currentSession"].(map[string]any); ok {
		if rt, ok := cs["refresh_token"].(string); ok && rt != "" {
			return rt, true
		}
	}
	if rt, ok := blob["refresh_token"].(string); ok && rt != "" {
		return rt, true
	}
	return "", false
}

// CheckStoredSession validates the blob under key and deletes it when it is
// not JSON or carries no string refresh token. It reports whether a usable
// blob remains.
func CheckStoredSession(ctx context.Context, store SessionStore, key string) bool {
	raw, ok := store.Get(key)
	if !ok {
		return false
	}
	var blob map[string]any
	if err := json.Unmarshal([]byte(raw), &blob); err != nil {
		_ = store.Delete(ctx, key)
		return false
	}
	if _, ok := refreshTokenOf(blob); !ok {
		_ = store.Delete(ctx, key)
		return false
	}
	return true
}

func loadSession(store SessionStore, key string) *backend.Session {
	raw, ok := store.Get(key)
	if !ok {
		return nil
	}
	var blob map[string]any
	if err := json.Unmarshal([]byte(raw), &blob); err != nil {
		return nil
	}
	rt, ok := refreshTokenOf(blob)
	if !ok {
		return nil
	}
	var s storedSession
	_ = json.Unmarshal([]byte(raw), &s)
	return &backend.Session{
		AccessToken:  s.AccessToken,
		RefreshToken: rt,
		ExpiresAt:    time.Unix(s.ExpiresAt, 0),
		User:         s.User,
	}
}

func saveSession(ctx context.Context, store SessionStore, key string, s *backend.Session) error {
	b, err := json.Marshal(storedSession{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		ExpiresAt:    s.ExpiresAt.Unix(),
		User:         s.User,
	})
	if err != nil {
		return err
	}
	return store.Set(ctx, key, string(b))
}
