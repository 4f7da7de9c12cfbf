package gotrue

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckStoredSession(t *testing.T) {
	const key = "templesanathan-auth-proj"

	tests := []struct {
		name     string
		blob     string
		wantKeep bool
	}{
		{"flat refresh token", `{"refresh_token":"rt"}`, true},
		{"nested refresh token", `{"currentSession":{"refresh_token":"rt"}}`, true},
		{"not json", `{{{`, false},
		{"missing refresh token", `{"access_token":"at"}`, false},
		{"non-string refresh token", `{"refresh_token":42}`, false},
		{"empty refresh token", `{"refresh_token":""}`, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := newMemStore()
			_ = store.Set(context.Background(), key, tc.blob)

			assert.Equal(t, tc.wantKeep, CheckStoredSession(context.Background(), store, key))
			_, ok := store.Get(key)
			assert.Equal(t, tc.wantKeep, ok)
		})
	}
}

func TestCheckStoredSession_Absent(t *testing.T) {
	assert.False(t, CheckStoredSession(context.Background(), newMemStore(), "k"))
}

func TestClaims_AppRole(t *testing.T) {
	c := &Claims{Role: "authenticated"}
	assert.Equal(t, "", c.AppRole())
	c.AppMetadata.Role = "admin"
	assert.Equal(t, "admin", c.AppRole())
	assert.Equal(t, "moderator", (&Claims{Role: "moderator"}).AppRole())
}

func TestParseClaims_Garbage(t *testing.T) {
	_, err := ParseClaims("not-a-jwt")
	assert.Error(t, err)
}
