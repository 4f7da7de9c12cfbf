// Package prefs keeps the client's persisted flags: first-launch state,
// bookmarks, the cached admin capability, the skipped update version, the UI
// language and the auth session blob.
//
// Values are cached in memory after Open so reads never block; writes go
// through to the metadata repository.
package prefs

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/dmitrijs2005/templesanathan/internal/client/migrations"
	"github.com/dmitrijs2005/templesanathan/internal/client/models"
	"github.com/dmitrijs2005/templesanathan/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/templesanathan/internal/common"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite"
)

type Store struct {
	mu    sync.RWMutex
	repo  metadata.Repository
	cache map[string]string
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations applies the embedded local schema.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	return gooseUpContext(ctx, db, ".")
}

// OpenSQLite opens the local database at dsn, migrates it and loads the store.
func OpenSQLite(ctx context.Context, dsn string) (*Store, *sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, nil, err
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	s, err := Open(ctx, metadata.NewSQLiteRepository(db))
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return s, db, nil
}

// Open loads every stored key into memory.
func Open(ctx context.Context, repo metadata.Repository) (*Store, error) {
	all, err := repo.List(ctx)
	if err != nil {
		return nil, err
	}
	cache := make(map[string]string, len(all))
	for k, v := range all {
		cache[k] = string(v)
	}
	return &Store{repo: repo, cache: cache}, nil
}

func (s *Store) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.cache[key]
	return v, ok
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.repo.Set(ctx, key, []byte(value)); err != nil {
		return err
	}
	s.cache[key] = value
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.repo.Delete(ctx, key); err != nil {
		return err
	}
	delete(s.cache, key)
	return nil
}

// PurgeAuth deletes every key holding auth state: the current auth storage
// key (and keys derived from it) and legacy "sb-" entries.
func (s *Store) PurgeAuth(ctx context.Context, authStorageKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var keys []string
	for k := range s.cache {
		if common.IsAuthKey(k, authStorageKey) {
			keys = append(keys, k)
		}
	}
	if err := s.repo.DeleteKeys(ctx, keys); err != nil {
		return err
	}
	for _, k := range keys {
		delete(s.cache, k)
	}
	return nil
}

func (s *Store) FirstLaunchDone() bool {
	v, _ := s.Get(common.KeyFirstLaunchDone)
	return v == "true"
}

func (s *Store) MarkFirstLaunchDone(ctx context.Context) error {
	if s.FirstLaunchDone() {
		return nil
	}
	return s.Set(ctx, common.KeyFirstLaunchDone, "true")
}

// LocalAdmin reports the cached admin capability of the last signed-in user.
func (s *Store) LocalAdmin() bool {
	v, _ := s.Get(common.KeyLocalAdmin)
	return v == "1"
}

func (s *Store) SetLocalAdmin(ctx context.Context, admin bool) error {
	if !admin {
		return s.Delete(ctx, common.KeyLocalAdmin)
	}
	return s.Set(ctx, common.KeyLocalAdmin, "1")
}

func (s *Store) SkippedUpdateVersion() string {
	v, _ := s.Get(common.KeySkippedUpdateVersion)
	return v
}

func (s *Store) SetSkippedUpdateVersion(ctx context.Context, version string) error {
	return s.Set(ctx, common.KeySkippedUpdateVersion, version)
}

func (s *Store) Language() models.Language {
	if v, _ := s.Get(common.KeyLanguage); v == string(models.Telugu) {
		return models.Telugu
	}
	return models.English
}

func (s *Store) SetLanguage(ctx context.Context, lang models.Language) error {
	return s.Set(ctx, common.KeyLanguage, string(lang))
}

// Bookmarks returns the bookmarked temple ids. A corrupt value reads as empty.
func (s *Store) Bookmarks() []string {
	v, ok := s.Get(common.KeyBookmarks)
	if !ok {
		return []string{}
	}
	var ids []string
	if err := json.Unmarshal([]byte(v), &ids); err != nil || ids == nil {
		return []string{}
	}
	return ids
}

func (s *Store) IsBookmarked(id string) bool {
	return slices.Contains(s.Bookmarks(), id)
}

// ToggleBookmark adds or removes id and reports whether it is now bookmarked.
func (s *Store) ToggleBookmark(ctx context.Context, id string) (bool, error) {
	ids := s.Bookmarks()
	on := true
	if i := slices.Index(ids, id); i >= 0 {
		ids = slices.Delete(ids, i, i+1)
		on = false
	} else {
		ids = append(ids, id)
	}
	b, err := json.Marshal(ids)
	if err != nil {
		return false, err
	}
	if err := s.Set(ctx, common.KeyBookmarks, string(b)); err != nil {
		return false, err
	}
	return on, nil
}
