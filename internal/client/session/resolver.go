package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/templesanathan/internal/client/backend"
	"github.com/dmitrijs2005/templesanathan/internal/client/nav"
	"github.com/dmitrijs2005/templesanathan/internal/common"
	"github.com/dmitrijs2005/templesanathan/internal/logging"
)

// Navigator is the part of the navigation stack the resolver drives.
type Navigator interface {
	Current() nav.Screen
	Force(screen nav.Screen) nav.State
	Reset(screen nav.Screen) nav.State
}

const (
	pingTimeout  = 3 * time.Second
	writeTimeout = 5 * time.Second
)

type Resolver struct {
	sess    *Context
	auth    backend.Auth
	pinger  backend.Pinger
	nav     Navigator
	flags   Flags
	authKey string
	log     logging.Logger

	mu    sync.Mutex
	unsub func()
}

func NewResolver(sess *Context, b *backend.Backend, navigator Navigator, flags Flags, authStorageKey string, log logging.Logger) *Resolver {
	return &Resolver{
		sess:    sess,
		auth:    b.Auth,
		pinger:  b.Pinger,
		nav:     navigator,
		flags:   flags,
		authKey: authStorageKey,
		log:     log,
	}
}

// Init resolves the landing screen and subscribes to auth events.
func (r *Resolver) Init(ctx context.Context) nav.Screen {
	screen := r.Boot(ctx)

	r.mu.Lock()
	if r.unsub == nil {
		r.unsub = r.auth.OnAuthStateChange(func(ev backend.AuthEvent, s *backend.Session) {
			ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
			defer cancel()
			r.HandleAuthEvent(ctx, ev, s)
		})
	}
	r.mu.Unlock()
	return screen
}

func (r *Resolver) Teardown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.unsub != nil {
		r.unsub()
		r.unsub = nil
	}
}

func (r *Resolver) unauthenticatedScreen() nav.Screen {
	if r.sess.FirstLaunchDone() {
		return nav.Auth
	}
	return nav.Welcome
}

// Boot picks the initial screen and resets navigation to it.
func (r *Resolver) Boot(ctx context.Context) nav.Screen {
	defer r.sess.setBooting(false)

	screen := r.unauthenticatedScreen()
	if !r.probe(ctx) {
		r.sess.SetOffline(true)
		r.log.Info(ctx, "booting offline", "screen", screen)
		r.nav.Reset(screen)
		return screen
	}
	r.sess.SetOffline(false)

	id, err := r.auth.CurrentUser(ctx)
	if err != nil {
		r.log.Warn(ctx, "current user lookup failed", "error", err)
		id = nil
	}
	if id != nil {
		r.signedIn(ctx, id)
		screen = nav.Home
	}
	r.nav.Reset(screen)
	return screen
}

// probe reports whether the backend is reachable. A backend that is not
// configured counts as reachable: every call fails fast with the advisory
// error rather than blocking the app.
func (r *Resolver) probe(ctx context.Context) bool {
	if r.pinger == nil {
		return true
	}
	pctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	err := r.pinger.Ping(pctx)
	return err == nil || errors.Is(err, common.ErrNotConfigured)
}

func (r *Resolver) signedIn(ctx context.Context, id *backend.Identity) {
	r.sess.SetIdentity(id)
	if err := r.flags.MarkFirstLaunchDone(ctx); err != nil {
		r.log.Warn(ctx, "could not persist first launch flag", "error", err)
	}
	if err := r.flags.SetLocalAdmin(ctx, id.IsAdmin()); err != nil {
		r.log.Warn(ctx, "could not persist admin flag", "error", err)
	}
}

func (r *Resolver) HandleAuthEvent(ctx context.Context, ev backend.AuthEvent, s *backend.Session) {
	switch ev {
	case backend.EventSignedIn, backend.EventTokenRefreshed:
		if s == nil {
			return
		}
		r.signedIn(ctx, &s.User)
		if r.nav.Current() == nav.Welcome {
			r.nav.Force(nav.Home)
		}

	case backend.EventSignedOut:
		r.sess.SetIdentity(nil)
		if err := r.flags.SetLocalAdmin(ctx, false); err != nil {
			r.log.Warn(ctx, "could not clear admin flag", "error", err)
		}
		r.nav.Force(nav.Auth)

	case backend.EventTokenRefreshFailed:
		r.log.Warn(ctx, "session refresh failed, purging stored auth")
		if err := r.flags.PurgeAuth(ctx, r.authKey); err != nil {
			r.log.Error(ctx, "purging auth storage failed", "error", err)
		}
		r.sess.SetIdentity(nil)
		r.nav.Force(nav.Auth)

	default:
		if s == nil {
			r.sess.SetIdentity(nil)
			return
		}
		r.sess.SetIdentity(&s.User)
	}
}

// Blocked reports whether the blocking offline state applies: the app is
// offline and not on a screen that works without the backend.
func (r *Resolver) Blocked() bool {
	if !r.sess.Offline() {
		return false
	}
	cur := r.nav.Current()
	return cur != nav.Auth && cur != nav.Welcome
}

// Watch pings the backend every interval and flips the offline flag until
// ctx is done.
func (r *Resolver) Watch(ctx context.Context, interval time.Duration, onChange func(offline bool)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			offline := !r.probe(ctx)
			if ctx.Err() != nil {
				return nil
			}
			if r.sess.SetOffline(offline) {
				r.log.Info(ctx, "connectivity changed", "offline", offline)
				if onChange != nil {
					onChange(offline)
				}
			}
		case <-ctx.Done():
			return nil
		}
	}
}
