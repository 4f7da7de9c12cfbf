package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAuthStorageKey(t *testing.T) {
	assert.Equal(t, "templesanathan-auth-abcd", AuthStorageKey("https://abcd.supabase.co"))
	assert.Equal(t, "templesanathan-auth-localhost", AuthStorageKey("http://localhost:54321"))
	assert.Equal(t, "templesanathan-auth-local", AuthStorageKey(""))
}

func TestIsAuthKey(t *testing.T) {
	k := AuthStorageKey("https://abcd.supabase.co")

	tests := []struct {
		key  string
		want bool
	}{
		{"sb-abcd-auth-token", true},
		{k, true},
		{k + "-code-verifier", true},
		{KeyFirstLaunchDone, false},
		{KeyBookmarks, false},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, IsAuthKey(tc.key, k), tc.key)
	}
}
