package backend

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/templesanathan/internal/common"
	"github.com/stretchr/testify/assert"
)

func TestNotConfigured_EveryCallFails(t *testing.T) {
	b := NotConfigured()
	ctx := context.Background()

	_, err := b.Auth.CurrentUser(ctx)
	assert.ErrorIs(t, err, common.ErrNotConfigured)
	_, err = b.Auth.SignIn(ctx, "a@b.c", "pw")
	assert.ErrorIs(t, err, common.ErrNotConfigured)
	assert.ErrorIs(t, b.Tables.Select(ctx, Query{Table: "temples"}, &[]map[string]any{}), common.ErrNotConfigured)
	assert.ErrorIs(t, b.Tables.Insert(ctx, "temples", map[string]any{}), common.ErrNotConfigured)
	assert.ErrorIs(t, b.Tables.Delete(ctx, "temples", Eq("id", "1")), common.ErrNotConfigured)
	assert.ErrorIs(t, b.Storage.Upload(ctx, "k", strings.NewReader("x"), "image/png"), common.ErrNotConfigured)
	_, err = b.Storage.SignedURL(ctx, "k", time.Hour)
	assert.ErrorIs(t, err, common.ErrNotConfigured)
	assert.ErrorIs(t, b.Pinger.Ping(ctx), common.ErrNotConfigured)

	ch := b.Realtime.Channel("devotion_chat", ChannelOptions{})
	assert.ErrorIs(t, ch.Subscribe(ctx), common.ErrNotConfigured)
	assert.NoError(t, ch.Unsubscribe(ctx))

	unsubscribe := b.Auth.OnAuthStateChange(func(AuthEvent, *Session) {})
	unsubscribe()
	assert.Contains(t, common.ErrNotConfigured.Error(), "Backend not configured")
}

func TestIdentity_IsAdmin(t *testing.T) {
	var nilID *Identity
	assert.False(t, nilID.IsAdmin())
	assert.False(t, (&Identity{Role: "authenticated"}).IsAdmin())
	assert.True(t, (&Identity{Role: RoleAdmin}).IsAdmin())
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `Tirumala \% Temple`, EscapeLike("Tirumala % Temple"))
	assert.Equal(t, `Sri\_Rama`, EscapeLike("Sri_Rama"))
	assert.Equal(t, `a\\b`, EscapeLike(`a\b`))
	assert.Equal(t, "Yadadri", EscapeLike("Yadadri"))
}
