package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"mime"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/templesanathan/internal/client/backend"
	"github.com/dmitrijs2005/templesanathan/internal/client/models"
)

const (
	TableProfiles = "profiles"

	// AvatarURLTTL is used when the avatar bucket is not public.
	AvatarURLTTL = 365 * 24 * time.Hour
)

var (
	ErrUsernameTaken = errors.New("username is already taken")
	ErrNoUser        = errors.New("no user id")
)

var usernameJunk = regexp.MustCompile(`[^a-z0-9_]`)

var profileColumns = []string{"user_id", "username", "display_name", "avatar_url"}

// ProfilePatch holds the fields UpdateProfile changes. Nil fields are left
// untouched.
type ProfilePatch struct {
	Username    *string
	DisplayName *string
	AvatarURL   *string
}

type ProfileService struct {
	tables  backend.Tables
	storage backend.Storage

	now    func() time.Time
	suffix func() int
}

func NewProfileService(tables backend.Tables, storage backend.Storage) *ProfileService {
	return &ProfileService{
		tables:  tables,
		storage: storage,
		now:     time.Now,
		suffix:  func() int { return rand.IntN(10000) },
	}
}

// Get returns the profile for userID, or nil when none exists.
func (p *ProfileService) Get(ctx context.Context, userID string) (*models.Profile, error) {
	var rows []models.Profile
	err := p.tables.Select(ctx, backend.Query{
		Table:   TableProfiles,
		Columns: profileColumns,
		Filters: []backend.Filter{backend.Eq("user_id", userID)},
		Limit:   1,
	}, &rows)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (p *ProfileService) UsernameAvailable(ctx context.Context, username string) (bool, error) {
	var rows []models.Profile
	err := p.tables.Select(ctx, backend.Query{
		Table:   TableProfiles,
		Columns: []string{"username"},
		Filters: []backend.Filter{backend.Eq("username", username)},
		Limit:   1,
	}, &rows)
	if err != nil {
		return false, err
	}
	return len(rows) == 0, nil
}

// SanitizeUsername keeps lowercase letters, digits and underscores.
func SanitizeUsername(s string) string {
	return usernameJunk.ReplaceAllString(strings.ToLower(s), "")
}

// EnsureProfile returns the existing profile or creates one named after the
// email's local part. A taken name gets a random numeric suffix.
func (p *ProfileService) EnsureProfile(ctx context.Context, id backend.Identity) (*models.Profile, error) {
	if id.ID == "" {
		return nil, ErrNoUser
	}
	existing, err := p.Get(ctx, id.ID)
	if err != nil || existing != nil {
		return existing, err
	}

	local, _, _ := strings.Cut(id.Email, "@")
	base := SanitizeUsername(local)
	if base == "" {
		ms := strconv.FormatInt(p.now().UnixMilli(), 10)
		base = "user" + ms[max(0, len(ms)-6):]
	}
	name := base
	if ok, err := p.UsernameAvailable(ctx, name); err == nil && !ok {
		name = base + strconv.Itoa(p.suffix())
	}
	display := local
	if display == "" {
		display = name
	}

	prof := models.Profile{UserID: id.ID, Username: name, DisplayName: display, Email: id.Email}
	if err := p.tables.Insert(ctx, TableProfiles, []models.Profile{prof}); err != nil {
		return nil, fmt.Errorf("create profile: %w", err)
	}
	return p.Get(ctx, id.ID)
}

// UpdateProfile upserts the patched fields and returns the stored profile.
func (p *ProfileService) UpdateProfile(ctx context.Context, userID string, patch ProfilePatch) (*models.Profile, error) {
	if userID == "" {
		return nil, ErrNoUser
	}
	row := map[string]any{"user_id": userID, "updated_at": p.now().UTC().Format(time.RFC3339Nano)}
	if patch.Username != nil {
		name := SanitizeUsername(*patch.Username)
		cur, err := p.Get(ctx, userID)
		if err != nil {
			return nil, err
		}
		if cur == nil || cur.Username != name {
			ok, err := p.UsernameAvailable(ctx, name)
			if err != nil {
				return nil, fmt.Errorf("check username: %w", err)
			}
			if !ok {
				return nil, ErrUsernameTaken
			}
		}
		row["username"] = name
	}
	if patch.DisplayName != nil {
		row["display_name"] = strings.TrimSpace(*patch.DisplayName)
	}
	if patch.AvatarURL != nil {
		row["avatar_url"] = *patch.AvatarURL
	}
	if err := p.tables.Upsert(ctx, TableProfiles, row, "user_id"); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return p.Get(ctx, userID)
}

// AvatarPath is the storage key for a new avatar upload.
func AvatarPath(userID, filename string, at time.Time) string {
	ext := strings.TrimPrefix(path.Ext(filename), ".")
	if ext == "" {
		ext = "jpg"
	}
	return fmt.Sprintf("%s/%d.%s", userID, at.UnixMilli(), strings.ToLower(ext))
}

// UploadAvatar stores the image and returns a URL for it: the public URL
// when the bucket is public, else a signed URL valid for a year.
func (p *ProfileService) UploadAvatar(ctx context.Context, userID, filename string, body io.Reader) (string, error) {
	if userID == "" {
		return "", ErrNoUser
	}
	key := AvatarPath(userID, filename, p.now())
	ct := mime.TypeByExtension(path.Ext(key))
	if ct == "" {
		ct = "application/octet-stream"
	}
	if err := p.storage.Upload(ctx, key, body, ct); err != nil {
		return "", err
	}
	if u, ok := p.storage.PublicURL(key); ok {
		return u, nil
	}
	u, err := p.storage.SignedURL(ctx, key, AvatarURLTTL)
	if err != nil {
		return "", fmt.Errorf("sign avatar url: %w", err)
	}
	return u, nil
}
