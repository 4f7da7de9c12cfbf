// Package session owns the process-scoped session state (identity,
// connectivity, boot phase) and the resolver that routes the user at boot
// and on auth events.
package session

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/templesanathan/internal/client/backend"
)

// Flags is the persisted state the session reads and writes.
// *prefs.Store implements it.
type Flags interface {
	FirstLaunchDone() bool
	MarkFirstLaunchDone(ctx context.Context) error
	LocalAdmin() bool
	SetLocalAdmin(ctx context.Context, admin bool) error
	PurgeAuth(ctx context.Context, authStorageKey string) error
}

type Snapshot struct {
	Identity *backend.Identity
	Offline  bool
	Booting  bool
}

// Context is passed explicitly to the components that need identity. It
// also implements nav.Gate.
type Context struct {
	flags Flags

	mu       sync.RWMutex
	identity *backend.Identity
	offline  bool
	booting  bool
}

func NewContext(flags Flags) *Context {
	return &Context{flags: flags, booting: true}
}

func (c *Context) Identity() *backend.Identity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.identity == nil {
		return nil
	}
	id := *c.identity
	return &id
}

func (c *Context) SetIdentity(id *backend.Identity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id == nil {
		c.identity = nil
		return
	}
	cp := *id
	c.identity = &cp
}

func (c *Context) Offline() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.offline
}

// SetOffline reports whether the value changed.
func (c *Context) SetOffline(offline bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	changed := c.offline != offline
	c.offline = offline
	return changed
}

func (c *Context) Booting() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.booting
}

func (c *Context) setBooting(b bool) {
	c.mu.Lock()
	c.booting = b
	c.mu.Unlock()
}

func (c *Context) Snapshot() Snapshot {
	return Snapshot{Identity: c.Identity(), Offline: c.Offline(), Booting: c.Booting()}
}

func (c *Context) Authenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.identity != nil
}

// IsAdmin reports the moderation capability from the role claim.
func (c *Context) IsAdmin() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.identity.IsAdmin()
}

func (c *Context) FirstLaunchDone() bool {
	return c.flags != nil && c.flags.FirstLaunchDone()
}

// AdminOverride is the admin capability cached from the last signed-in
// session; it lets the admin screen open before the identity is resolved.
func (c *Context) AdminOverride() bool {
	return c.flags != nil && c.flags.LocalAdmin()
}
