// Package backend declares the contract between the client core and the
// hosted backend: auth, relational tables, realtime channels and object
// storage. Adapters live in the sub-packages.
package backend

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"time"
)

// Identity is the signed-in user as reported by the auth service.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	// Role comes from the access token claims; "admin" grants moderation.
	Role string `json:"role,omitempty"`
}

func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == RoleAdmin
}

const RoleAdmin = "admin"

type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         Identity  `json:"user"`
}

type AuthEvent string

const (
	EventSignedIn           AuthEvent = "SIGNED_IN"
	EventSignedOut          AuthEvent = "SIGNED_OUT"
	EventTokenRefreshed     AuthEvent = "TOKEN_REFRESHED"
	EventTokenRefreshFailed AuthEvent = "TOKEN_REFRESH_FAILED"
	EventUserUpdated        AuthEvent = "USER_UPDATED"
	EventInitialSession     AuthEvent = "INITIAL_SESSION"
)

// AuthListener receives auth state changes. session is nil for sign-out and
// refresh failure.
type AuthListener func(event AuthEvent, session *Session)

type Auth interface {
	CurrentUser(ctx context.Context) (*Identity, error)
	SignIn(ctx context.Context, email, password string) (*Session, error)
	SignUp(ctx context.Context, email, password string) (*Session, error)
	SignOut(ctx context.Context) error
	OnAuthStateChange(fn AuthListener) (unsubscribe func())
}

type Op string

const (
	OpEq    Op = "eq"
	OpILike Op = "ilike"
	OpGte   Op = "gte"
)

// Filter is a predicate on a column. Column may address a JSON field with
// the arrow syntax, e.g. "name->>english".
type Filter struct {
	Column string
	Op     Op
	Value  string
}

func Eq(column, value string) Filter    { return Filter{Column: column, Op: OpEq, Value: value} }
func ILike(column, value string) Filter { return Filter{Column: column, Op: OpILike, Value: value} }
func Gte(column, value string) Filter   { return Filter{Column: column, Op: OpGte, Value: value} }

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// EscapeLike quotes the ILIKE wildcards in s so it matches literally.
// Backslash is the escape character in every adapter.
func EscapeLike(s string) string { return likeEscaper.Replace(s) }

type OrderBy struct {
	Column     string
	Descending bool
}

type Query struct {
	Table   string
	Columns []string
	Filters []Filter
	Order   []OrderBy
	Limit   int
}

// Tables runs relational queries. Select decodes the result rows into dest,
// which must point to a slice. Rows passed to writes are JSON-encodable
// values or slices of them.
type Tables interface {
	Select(ctx context.Context, q Query, dest any) error
	Insert(ctx context.Context, table string, rows any) error
	Upsert(ctx context.Context, table string, rows any, onConflict string) error
	Update(ctx context.Context, table string, patch any, filters ...Filter) error
	Delete(ctx context.Context, table string, filters ...Filter) error
}

// Atomic is implemented by table adapters that can group writes in a
// database transaction. fn receives Tables bound to that transaction.
type Atomic interface {
	Atomically(ctx context.Context, fn func(ctx context.Context, tx Tables) error) error
}

type ChangeType string

const (
	ChangeInsert ChangeType = "INSERT"
	ChangeUpdate ChangeType = "UPDATE"
	ChangeDelete ChangeType = "DELETE"
)

// RowChange is a database change notification. New is empty for deletes,
// Old carries at least the primary key for updates and deletes.
type RowChange struct {
	Type  ChangeType
	Table string
	New   json.RawMessage
	Old   json.RawMessage
}

type ChannelOptions struct {
	// PresenceKey identifies this client in the channel's presence state.
	PresenceKey string
}

// Channel is a realtime topic. Handlers must be registered before Subscribe.
type Channel interface {
	OnBroadcast(event string, fn func(payload json.RawMessage))
	OnRowChange(table string, fn func(RowChange))
	OnPresenceSync(fn func(keys []string))
	Subscribe(ctx context.Context) error
	Broadcast(ctx context.Context, event string, payload any) error
	Track(ctx context.Context, meta any) error
	Unsubscribe(ctx context.Context) error
}

type Realtime interface {
	Channel(name string, opts ChannelOptions) Channel
}

type Storage interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string) error
	// PublicURL returns ("", false) when the bucket is not public.
	PublicURL(key string) (string, bool)
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// Pinger checks backend reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Backend bundles the collaborators a running client needs.
type Backend struct {
	Auth     Auth
	Tables   Tables
	Realtime Realtime
	Storage  Storage
	Pinger   Pinger
}
