// Package services contains application services for the Temple Sanathan
// client. This file defines the authentication service: sign in, sign up,
// sign out, the liveness probe and housekeeping of locally stored auth data.
package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/dmitrijs2005/templesanathan/internal/client/backend"
)

// MinPasswordLength mirrors the hosted auth service's default policy.
const MinPasswordLength = 6

var (
	ErrInvalidEmail = errors.New("please enter a valid email address")
	ErrWeakPassword = fmt.Errorf("password must be at least %d characters", MinPasswordLength)
)

// AuthService defines authentication operations for the CLI.
//
// Contract:
//   - SignIn/SignUp: validate input locally, then authenticate with the backend.
//     Navigation follows from the auth event the backend emits.
//   - SignOut: end the backend session and purge locally stored tokens.
//   - Ping: check backend reachability.
//   - ClearLocalData: wipe locally stored auth state without contacting the backend.
//
// All methods must honor context cancellation/timeouts.
type AuthService interface {
	SignIn(ctx context.Context, email string, password []byte) (*backend.Identity, error)
	SignUp(ctx context.Context, email string, password []byte) (*backend.Identity, error)
	SignOut(ctx context.Context) error
	Ping(ctx context.Context) error
	ClearLocalData(ctx context.Context) error
}

// LocalAuth removes persisted auth state. *prefs.Store implements it.
type LocalAuth interface {
	PurgeAuth(ctx context.Context, authStorageKey string) error
}

type authService struct {
	auth       backend.Auth
	pinger     backend.Pinger
	local      LocalAuth
	storageKey string
}

// NewAuthService constructs an AuthService bound to the backend and the
// local preference store.
func NewAuthService(b *backend.Backend, local LocalAuth, authStorageKey string) AuthService {
	return &authService{auth: b.Auth, pinger: b.Pinger, local: local, storageKey: authStorageKey}
}

func credentials(email string, password []byte) (string, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return "", "", ErrInvalidEmail
	}
	if utf8.RuneCount(password) < MinPasswordLength {
		return "", "", ErrWeakPassword
	}
	return email, string(password), nil
}

func (a *authService) SignIn(ctx context.Context, email string, password []byte) (*backend.Identity, error) {
	email, pw, err := credentials(email, password)
	if err != nil {
		return nil, err
	}
	s, err := a.auth.SignIn(ctx, email, pw)
	if err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}
	return &s.User, nil
}

// SignUp creates the account. Backends that require email confirmation
// return no session; the identity is nil in that case.
func (a *authService) SignUp(ctx context.Context, email string, password []byte) (*backend.Identity, error) {
	email, pw, err := credentials(email, password)
	if err != nil {
		return nil, err
	}
	s, err := a.auth.SignUp(ctx, email, pw)
	if err != nil {
		return nil, fmt.Errorf("sign up: %w", err)
	}
	if s == nil {
		return nil, nil
	}
	return &s.User, nil
}

// SignOut ends the backend session. Local tokens are purged even when the
// backend call fails.
func (a *authService) SignOut(ctx context.Context) error {
	remote := a.auth.SignOut(ctx)
	local := a.ClearLocalData(ctx)
	return errors.Join(remote, local)
}

func (a *authService) Ping(ctx context.Context) error {
	return a.pinger.Ping(ctx)
}

func (a *authService) ClearLocalData(ctx context.Context) error {
	return a.local.PurgeAuth(ctx, a.storageKey)
}
