package backend

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/dmitrijs2005/templesanathan/internal/common"
)

// NotConfigured returns a Backend whose every call fails with
// common.ErrNotConfigured.
func NotConfigured() *Backend {
	nc := notConfigured{}
	return &Backend{Auth: nc, Tables: nc, Realtime: nc, Storage: nc, Pinger: nc}
}

type notConfigured struct{}

func (notConfigured) CurrentUser(context.Context) (*Identity, error) {
	return nil, common.ErrNotConfigured
}

func (notConfigured) SignIn(context.Context, string, string) (*Session, error) {
	return nil, common.ErrNotConfigured
}

func (notConfigured) SignUp(context.Context, string, string) (*Session, error) {
	return nil, common.ErrNotConfigured
}

func (notConfigured) SignOut(context.Context) error { return common.ErrNotConfigured }

func (notConfigured) OnAuthStateChange(AuthListener) func() { return func() {} }

func (notConfigured) Select(context.Context, Query, any) error { return common.ErrNotConfigured }

func (notConfigured) Insert(context.Context, string, any) error { return common.ErrNotConfigured }

func (notConfigured) Upsert(context.Context, string, any, string) error {
	return common.ErrNotConfigured
}

func (notConfigured) Update(context.Context, string, any, ...Filter) error {
	return common.ErrNotConfigured
}

func (notConfigured) Delete(context.Context, string, ...Filter) error {
	return common.ErrNotConfigured
}

func (notConfigured) Channel(string, ChannelOptions) Channel { return notConfiguredChannel{} }

func (notConfigured) Upload(context.Context, string, io.Reader, string) error {
	return common.ErrNotConfigured
}

func (notConfigured) PublicURL(string) (string, bool) { return "", false }

func (notConfigured) SignedURL(context.Context, string, time.Duration) (string, error) {
	return "", common.ErrNotConfigured
}

func (notConfigured) Ping(context.Context) error { return common.ErrNotConfigured }

type notConfiguredChannel struct{}

func (notConfiguredChannel) OnBroadcast(string, func(json.RawMessage)) {}
func (notConfiguredChannel) OnRowChange(string, func(RowChange))       {}
func (notConfiguredChannel) OnPresenceSync(func([]string))             {}
func (notConfiguredChannel) Subscribe(context.Context) error           { return common.ErrNotConfigured }
func (notConfiguredChannel) Broadcast(context.Context, string, any) error {
	return common.ErrNotConfigured
}
func (notConfiguredChannel) Track(context.Context, any) error  { return common.ErrNotConfigured }
func (notConfiguredChannel) Unsubscribe(context.Context) error { return nil }
