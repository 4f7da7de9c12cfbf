// Package gotrue implements backend.Auth against the hosted GoTrue auth API
// and keeps the session alive: the blob is persisted in the local store and
// the access token is refreshed shortly before it expires.
package gotrue

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/templesanathan/internal/client/backend"
	"github.com/dmitrijs2005/templesanathan/internal/common"
	"github.com/dmitrijs2005/templesanathan/internal/logging"
	"github.com/dmitrijs2005/templesanathan/internal/netx"
)

// refreshLeeway is how long before expiry the access token is renewed.
const refreshLeeway = 30 * time.Second

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	User         *struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

type userResponse struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	AppMetadata struct {
		Role string `json:"role"`
	} `json:"app_metadata"`
}

type Client struct {
	baseURL    string
	anonKey    string
	http       *netx.Client
	store      SessionStore
	storageKey string
	log        logging.Logger
	now        func() time.Time

	mu        sync.Mutex
	session   *backend.Session
	listeners map[int]backend.AuthListener
	nextID    int
}

// NewClient restores a previously persisted session after shape-checking it.
func NewClient(ctx context.Context, baseURL, anonKey string, hc *netx.Client, store SessionStore, log logging.Logger) *Client {
	key := common.AuthStorageKey(baseURL)
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		anonKey:    anonKey,
		http:       hc,
		store:      store,
		storageKey: key,
		log:        log,
		now:        time.Now,
		listeners:  map[int]backend.AuthListener{},
	}
	if CheckStoredSession(ctx, store, key) {
		c.session = loadSession(store, key)
	} else {
		log.Debug(ctx, "no usable stored session", "key", key)
	}
	return c
}

func (c *Client) StorageKey() string { return c.storageKey }

func (c *Client) header(bearer string) http.Header {
	h := http.Header{}
	h.Set("apikey", c.anonKey)
	if bearer == "" {
		bearer = c.anonKey
	}
	h.Set("Authorization", "Bearer "+bearer)
	return h
}

func (c *Client) OnAuthStateChange(fn backend.AuthListener) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

func (c *Client) emit(event backend.AuthEvent, s *backend.Session) {
	c.mu.Lock()
	fns := make([]backend.AuthListener, 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(event, s)
	}
}

func (c *Client) sessionFrom(tr tokenResponse) (*backend.Session, error) {
	claims, err := ParseClaims(tr.AccessToken)
	if err != nil {
		return nil, err
	}
	s := &backend.Session{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		User: backend.Identity{
			ID:    claims.Subject,
			Email: claims.Email,
			Role:  claims.AppRole(),
		},
	}
	if tr.User != nil {
		s.User.ID, s.User.Email = tr.User.ID, tr.User.Email
	}
	switch {
	case tr.ExpiresAt > 0:
		s.ExpiresAt = time.Unix(tr.ExpiresAt, 0)
	case tr.ExpiresIn > 0:
		s.ExpiresAt = c.now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	default:
		s.ExpiresAt = claims.Expiry()
	}
	return s, nil
}

func (c *Client) setSession(ctx context.Context, s *backend.Session) {
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()
	if err := saveSession(ctx, c.store, c.storageKey, s); err != nil {
		c.log.Warn(ctx, "failed to persist session", "err", err)
	}
}

func (c *Client) clearSession(ctx context.Context) {
	c.mu.Lock()
	c.session = nil
	c.mu.Unlock()
	if err := c.store.Delete(ctx, c.storageKey); err != nil {
		c.log.Warn(ctx, "failed to delete stored session", "err", err)
	}
}

func (c *Client) current() *backend.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	s := *c.session
	return &s
}

func (c *Client) SignIn(ctx context.Context, email, password string) (*backend.Session, error) {
	var tr tokenResponse
	err := c.http.DoJSON(ctx, http.MethodPost, c.baseURL+"/auth/v1/token?grant_type=password",
		c.header(""), map[string]string{"email": email, "password": password}, &tr)
	if err != nil {
		return nil, authError(err)
	}
	s, err := c.sessionFrom(tr)
	if err != nil {
		return nil, err
	}
	c.setSession(ctx, s)
	c.emit(backend.EventSignedIn, s)
	return s, nil
}

// SignUp registers the user. It returns (nil, nil) when the backend requires
// email confirmation before issuing a session.
func (c *Client) SignUp(ctx context.Context, email, password string) (*backend.Session, error) {
	var tr tokenResponse
	err := c.http.DoJSON(ctx, http.MethodPost, c.baseURL+"/auth/v1/signup",
		c.header(""), map[string]string{"email": email, "password": password}, &tr)
	if err != nil {
		return nil, authError(err)
	}
	if tr.AccessToken == "" {
		return nil, nil
	}
	s, err := c.sessionFrom(tr)
	if err != nil {
		return nil, err
	}
	c.setSession(ctx, s)
	c.emit(backend.EventSignedIn, s)
	return s, nil
}

// SignOut always clears the local session, even when the backend call fails.
func (c *Client) SignOut(ctx context.Context) error {
	var err error
	if s := c.current(); s != nil {
		err = c.http.DoJSON(ctx, http.MethodPost, c.baseURL+"/auth/v1/logout", c.header(s.AccessToken), nil, nil)
	}
	c.clearSession(ctx)
	c.emit(backend.EventSignedOut, nil)
	if err != nil {
		c.log.Warn(ctx, "remote sign-out failed", "err", err)
	}
	return nil
}

// AccessToken returns a valid access token, refreshing it when it is about
// to expire. It returns "" without error when nobody is signed in.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	s := c.current()
	if s == nil {
		return "", nil
	}
	if s.AccessToken != "" && c.now().Add(refreshLeeway).Before(s.ExpiresAt) {
		return s.AccessToken, nil
	}
	s, err := c.refresh(ctx, s.RefreshToken)
	if err != nil {
		return "", err
	}
	return s.AccessToken, nil
}

func (c *Client) refresh(ctx context.Context, refreshToken string) (*backend.Session, error) {
	var tr tokenResponse
	err := c.http.DoJSON(ctx, http.MethodPost, c.baseURL+"/auth/v1/token?grant_type=refresh_token",
		c.header(""), map[string]string{"refresh_token": refreshToken}, &tr)
	if err != nil {
		if isInvalidRefresh(err) {
			c.log.Warn(ctx, "refresh token rejected, purging session")
			c.clearSession(ctx)
			c.emit(backend.EventTokenRefreshFailed, nil)
			return nil, fmt.Errorf("%w: %v", common.ErrRefreshTokenInvalid, err)
		}
		return nil, err
	}
	s, err := c.sessionFrom(tr)
	if err != nil {
		return nil, err
	}
	c.setSession(ctx, s)
	c.emit(backend.EventTokenRefreshed, s)
	return s, nil
}

// CurrentUser asks the backend who owns the current token. It returns
// (nil, nil) when no session exists or the session has been revoked.
func (c *Client) CurrentUser(ctx context.Context) (*backend.Identity, error) {
	tok, err := c.AccessToken(ctx)
	if err != nil {
		if errors.Is(err, common.ErrRefreshTokenInvalid) {
			return nil, nil
		}
		return nil, err
	}
	if tok == "" {
		return nil, nil
	}

	id, err := c.fetchUser(ctx, tok)
	if !errors.Is(err, common.ErrUnauthorized) {
		return id, err
	}

	s := c.current()
	if s == nil {
		return nil, nil
	}
	s, err = c.refresh(ctx, s.RefreshToken)
	if err != nil {
		if errors.Is(err, common.ErrRefreshTokenInvalid) {
			return nil, nil
		}
		return nil, err
	}
	id, err = c.fetchUser(ctx, s.AccessToken)
	if errors.Is(err, common.ErrUnauthorized) {
		return nil, nil
	}
	return id, err
}

func (c *Client) fetchUser(ctx context.Context, tok string) (*backend.Identity, error) {
	var ur userResponse
	if err := c.http.DoJSON(ctx, http.MethodGet, c.baseURL+"/auth/v1/user", c.header(tok), nil, &ur); err != nil {
		return nil, err
	}
	id := &backend.Identity{ID: ur.ID, Email: ur.Email, Role: ur.AppMetadata.Role}
	if id.Role == "" {
		if claims, err := ParseClaims(tok); err == nil {
			id.Role = claims.AppRole()
		}
	}
	return id, nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.http.DoJSON(ctx, http.MethodGet, c.baseURL+"/auth/v1/health", c.header(""), nil, nil)
}

// isInvalidRefresh recognises the backend's replies to a revoked or unknown
// refresh token.
func isInvalidRefresh(err error) bool {
	var se *netx.StatusError
	if !errors.As(err, &se) || se.Code >= 500 {
		return false
	}
	body := strings.ToLower(se.Body)
	return strings.Contains(body, "invalid refresh token") ||
		strings.Contains(body, "refresh token not found") ||
		strings.Contains(body, "invalid_grant")
}

// authError turns credential rejections into common.ErrUnauthorized.
func authError(err error) error {
	var se *netx.StatusError
	if errors.As(err, &se) && (se.Code == http.StatusBadRequest || se.Code == http.StatusUnauthorized) {
		return fmt.Errorf("%w: %s", common.ErrUnauthorized, se.Body)
	}
	return err
}
