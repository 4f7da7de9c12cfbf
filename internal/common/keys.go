package common

import (
	"net/url"
	"strings"
)

// Keys of locally persisted flags.
const (
	KeyFirstLaunchDone      = "firstLaunchDone"
	KeyLocalAdmin           = "ts-admin"
	KeySkippedUpdateVersion = "skippedUpdateVersion"
	KeyBookmarks            = "templeBookmarks"
	KeyLanguage             = "language"
)

// LegacyAuthKeyPrefix marks auth entries written by older client builds.
const LegacyAuthKeyPrefix = "sb-"

// AuthStorageKey derives the key under which the auth session blob is stored.
// The project ref is the first host label of the backend URL.
func AuthStorageKey(backendURL string) string {
	ref := "local"
	if u, err := url.Parse(backendURL); err == nil && u.Hostname() != "" {
		ref = strings.SplitN(u.Hostname(), ".", 2)[0]
	}
	return "templesanathan-auth-" + ref
}

// IsAuthKey reports whether key holds auth state that must be purged when
// the refresh token is rejected.
func IsAuthKey(key, authStorageKey string) bool {
	return strings.HasPrefix(key, LegacyAuthKeyPrefix) || strings.Contains(key, authStorageKey)
}
