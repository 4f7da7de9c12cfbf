package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/templesanathan/internal/client/backend"
	"github.com/dmitrijs2005/templesanathan/internal/common"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type user struct {
	id   string
	hash []byte
	role string
}

type Auth struct {
	mu        sync.Mutex
	users     map[string]*user
	admins    map[string]struct{}
	session   *backend.Session
	listeners map[int]backend.AuthListener
	nextID    int
}

func NewAuth(adminEmails ...string) *Auth {
	a := &Auth{
		users:     map[string]*user{},
		admins:    map[string]struct{}{},
		listeners: map[int]backend.AuthListener{},
	}
	for _, e := range adminEmails {
		a.admins[strings.ToLower(e)] = struct{}{}
	}
	return a
}

func (a *Auth) OnAuthStateChange(fn backend.AuthListener) func() {
	a.mu.Lock()
	id := a.nextID
	a.nextID++
	a.listeners[id] = fn
	a.mu.Unlock()
	return func() {
		a.mu.Lock()
		delete(a.listeners, id)
		a.mu.Unlock()
	}
}

func (a *Auth) emit(ev backend.AuthEvent, s *backend.Session) {
	a.mu.Lock()
	fns := make([]backend.AuthListener, 0, len(a.listeners))
	for _, fn := range a.listeners {
		fns = append(fns, fn)
	}
	a.mu.Unlock()
	for _, fn := range fns {
		fn(ev, s)
	}
}

func (a *Auth) newSession(email string, u *user) *backend.Session {
	return &backend.Session{
		AccessToken:  uuid.NewString(),
		RefreshToken: uuid.NewString(),
		ExpiresAt:    time.Now().Add(time.Hour),
		User:         backend.Identity{ID: u.id, Email: email, Role: u.role},
	}
}

func (a *Auth) SignUp(ctx context.Context, email, password string) (*backend.Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	if _, ok := a.users[email]; ok {
		a.mu.Unlock()
		return nil, common.ErrAlreadyRegistered
	}
	u := &user{id: uuid.NewString(), hash: hash, role: "authenticated"}
	if _, ok := a.admins[email]; ok {
		u.role = backend.RoleAdmin
	}
	a.users[email] = u
	s := a.newSession(email, u)
	a.session = s
	a.mu.Unlock()

	a.emit(backend.EventSignedIn, s)
	return s, nil
}

func (a *Auth) SignIn(ctx context.Context, email, password string) (*backend.Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	a.mu.Lock()
	u, ok := a.users[email]
	a.mu.Unlock()
	if !ok || bcrypt.CompareHashAndPassword(u.hash, []byte(password)) != nil {
		return nil, common.ErrUnauthorized
	}

	a.mu.Lock()
	s := a.newSession(email, u)
	a.session = s
	a.mu.Unlock()

	a.emit(backend.EventSignedIn, s)
	return s, nil
}

func (a *Auth) SignOut(ctx context.Context) error {
	a.mu.Lock()
	a.session = nil
	a.mu.Unlock()
	a.emit(backend.EventSignedOut, nil)
	return nil
}

func (a *Auth) CurrentUser(ctx context.Context) (*backend.Identity, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session == nil {
		return nil, nil
	}
	id := a.session.User
	return &id, nil
}

// ExpireSession simulates a refresh failure: the session is dropped and
// listeners get TOKEN_REFRESH_FAILED.
func (a *Auth) ExpireSession() {
	a.mu.Lock()
	a.session = nil
	a.mu.Unlock()
	a.emit(backend.EventTokenRefreshFailed, nil)
}
