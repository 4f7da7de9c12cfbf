package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/templesanathan/internal/client/backend"
	"github.com/dmitrijs2005/templesanathan/internal/client/backend/memory"
	"github.com/dmitrijs2005/templesanathan/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLocal struct {
	purged []string
	err    error
}

func (f *fakeLocal) PurgeAuth(_ context.Context, key string) error {
	f.purged = append(f.purged, key)
	return f.err
}

func TestAuthService_Validation(t *testing.T) {
	b, _ := memory.New()
	svc := NewAuthService(b, &fakeLocal{}, "sb-auth")
	ctx := context.Background()

	_, err := svc.SignUp(ctx, "not-an-email", []byte("secret1"))
	assert.ErrorIs(t, err, ErrInvalidEmail)
	_, err = svc.SignUp(ctx, "Ravi <ravi@example.com>", []byte("secret1"))
	assert.ErrorIs(t, err, ErrInvalidEmail)
	_, err = svc.SignIn(ctx, "ravi@example.com", []byte("12345"))
	assert.ErrorIs(t, err, ErrWeakPassword)
}

func TestAuthService_Flow(t *testing.T) {
	b, _ := memory.New("admin@temple.org")
	local := &fakeLocal{}
	svc := NewAuthService(b, local, "sb-auth")
	ctx := context.Background()

	id, err := svc.SignUp(ctx, " Admin@Temple.org ", []byte("om namah"))
	require.NoError(t, err)
	assert.Equal(t, "admin@temple.org", id.Email)
	assert.True(t, id.IsAdmin())

	_, err = svc.SignUp(ctx, "admin@temple.org", []byte("om namah"))
	assert.ErrorIs(t, err, common.ErrAlreadyRegistered)

	_, err = svc.SignIn(ctx, "admin@temple.org", []byte("wrong pass"))
	assert.ErrorIs(t, err, common.ErrUnauthorized)

	id, err = svc.SignIn(ctx, "admin@temple.org", []byte("om namah"))
	require.NoError(t, err)
	assert.NotEmpty(t, id.ID)

	require.NoError(t, svc.Ping(ctx))
	require.NoError(t, svc.SignOut(ctx))
	assert.Equal(t, []string{"sb-auth"}, local.purged)

	cur, err := b.Auth.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Nil(t, cur)
}

func TestAuthService_SignOutPurgesWhenNotConfigured(t *testing.T) {
	local := &fakeLocal{}
	svc := NewAuthService(backend.NotConfigured(), local, "sb-auth")

	err := svc.SignOut(context.Background())
	assert.ErrorIs(t, err, common.ErrNotConfigured)
	assert.Equal(t, []string{"sb-auth"}, local.purged)
}

type privateStorage struct{ *memory.Storage }

func (privateStorage) PublicURL(string) (string, bool) { return "", false }

func profiles(t *testing.T) (*ProfileService, *memory.Tables, *memory.Storage) {
	t.Helper()
	tables := memory.NewTables(memory.NewHub())
	store := memory.NewStorage("avatars")
	p := NewProfileService(tables, store)
	p.now = func() time.Time { return time.UnixMilli(1760600000123) }
	p.suffix = func() int { return 42 }
	return p, tables, store
}

func TestSanitizeUsername(t *testing.T) {
	assert.Equal(t, "ravikumar_99", SanitizeUsername("Ravi.Kumar_99"))
	assert.Equal(t, "", SanitizeUsername("శ్రీ"))
}

func TestEnsureProfile(t *testing.T) {
	ctx := context.Background()
	p, tables, _ := profiles(t)

	got, err := p.EnsureProfile(ctx, backend.Identity{ID: "u1", Email: "Ravi.K@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "ravik", got.Username)
	assert.Equal(t, "Ravi.K", got.DisplayName)

	again, err := p.EnsureProfile(ctx, backend.Identity{ID: "u1", Email: "Ravi.K@example.com"})
	require.NoError(t, err)
	assert.Equal(t, got, again)
	assert.Len(t, tables.Rows(TableProfiles), 1)

	other, err := p.EnsureProfile(ctx, backend.Identity{ID: "u2", Email: "ravik@example.org"})
	require.NoError(t, err)
	assert.Equal(t, "ravik42", other.Username)

	anon, err := p.EnsureProfile(ctx, backend.Identity{ID: "u3"})
	require.NoError(t, err)
	assert.Equal(t, "user000123", anon.Username)
	assert.Equal(t, "user000123", anon.DisplayName)

	_, err = p.EnsureProfile(ctx, backend.Identity{})
	assert.ErrorIs(t, err, ErrNoUser)
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()
	p, _, _ := profiles(t)
	_, err := p.EnsureProfile(ctx, backend.Identity{ID: "u1", Email: "ravi@example.com"})
	require.NoError(t, err)
	_, err = p.EnsureProfile(ctx, backend.Identity{ID: "u2", Email: "sita@example.com"})
	require.NoError(t, err)

	name, display := "Ravi_Teja", " Ravi Teja "
	got, err := p.UpdateProfile(ctx, "u1", ProfilePatch{Username: &name, DisplayName: &display})
	require.NoError(t, err)
	assert.Equal(t, "ravi_teja", got.Username)
	assert.Equal(t, "Ravi Teja", got.DisplayName)

	same := "ravi_teja"
	_, err = p.UpdateProfile(ctx, "u1", ProfilePatch{Username: &same})
	require.NoError(t, err)

	taken := "sita"
	_, err = p.UpdateProfile(ctx, "u1", ProfilePatch{Username: &taken})
	assert.ErrorIs(t, err, ErrUsernameTaken)
}

func TestUploadAvatar(t *testing.T) {
	ctx := context.Background()
	p, _, store := profiles(t)

	assert.Equal(t, "u1/1760600000123.png", AvatarPath("u1", "me.PNG", p.now()))
	assert.Equal(t, "u1/1760600000123.jpg", AvatarPath("u1", "me", p.now()))

	u, err := p.UploadAvatar(ctx, "u1", "me.png", strings.NewReader("png-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "memory://avatars/u1/1760600000123.png", u)
	data, ct, ok := store.Object("u1/1760600000123.png")
	require.True(t, ok)
	assert.Equal(t, "png-bytes", string(data))
	assert.Equal(t, "image/png", ct)

	p.storage = privateStorage{store}
	u, err = p.UploadAvatar(ctx, "u1", "me.jpg", strings.NewReader("jpg"))
	require.NoError(t, err)
	assert.Equal(t, "memory://avatars/u1/1760600000123.jpg?expires=31536000", u)

	_, err = p.UploadAvatar(ctx, "", "me.jpg", strings.NewReader("jpg"))
	assert.ErrorIs(t, err, ErrNoUser)
}
