package catalog

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/dmitrijs2005/templesanathan/internal/client/backend"
	"github.com/dmitrijs2005/templesanathan/internal/client/models"
	"github.com/dmitrijs2005/templesanathan/internal/logging"
)

const (
	Table          = "temples"
	ChannelTemples = "temples-rt"
)

//go:embed bundled.json
var bundled []byte

// Bundled returns the dataset shipped with the client.
func Bundled() ([]models.Temple, error) {
	var out []models.Temple
	if err := json.Unmarshal(bundled, &out); err != nil {
		return nil, fmt.Errorf("bundled temples: %w", err)
	}
	return out, nil
}

// Bookmarks persists the bookmarked ids. *prefs.Store implements it.
type Bookmarks interface {
	Bookmarks() []string
	IsBookmarked(id string) bool
	ToggleBookmark(ctx context.Context, id string) (bool, error)
}

type Catalog struct {
	tables    backend.Tables
	realtime  backend.Realtime
	bookmarks Bookmarks
	local     []models.Temple
	log       logging.Logger

	mu     sync.RWMutex
	remote []models.Temple
	ch     backend.Channel
}

func New(tables backend.Tables, rt backend.Realtime, bookmarks Bookmarks, local []models.Temple, log logging.Logger) *Catalog {
	return &Catalog{tables: tables, realtime: rt, bookmarks: bookmarks, local: local, log: log}
}

// Load fetches the published temples, newest first. Malformed rows are
// skipped. On failure the previous remote set is kept.
func (c *Catalog) Load(ctx context.Context) error {
	var rows []models.TempleRow
	err := c.tables.Select(ctx, backend.Query{
		Table: Table,
		Order: []backend.OrderBy{{Column: "created_at", Descending: true}},
	}, &rows)
	if err != nil {
		return fmt.Errorf("load temples: %w", err)
	}

	temples := make([]models.Temple, 0, len(rows))
	for _, r := range rows {
		t, err := r.ToTemple()
		if err != nil {
			c.log.Warn(ctx, "skipping temple row", "id", r.ID, "error", err)
			continue
		}
		temples = append(temples, t)
	}

	c.mu.Lock()
	c.remote = temples
	c.mu.Unlock()
	return nil
}

// Watch removes temples from the remote set as soon as they are deleted
// on the backend.
func (c *Catalog) Watch(ctx context.Context) error {
	ch := c.realtime.Channel(ChannelTemples, backend.ChannelOptions{})
	ch.OnRowChange(Table, func(rc backend.RowChange) {
		if rc.Type != backend.ChangeDelete {
			return
		}
		var old struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(rc.Old, &old); err != nil || old.ID == "" {
			return
		}
		c.remove(old.ID)
	})
	if err := ch.Subscribe(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	c.ch = ch
	c.mu.Unlock()
	return nil
}

func (c *Catalog) Unwatch(ctx context.Context) error {
	c.mu.Lock()
	ch := c.ch
	c.ch = nil
	c.mu.Unlock()
	if ch == nil {
		return nil
	}
	return ch.Unsubscribe(ctx)
}

func (c *Catalog) remove(id string) {
	c.mu.Lock()
	c.remote = slices.DeleteFunc(slices.Clone(c.remote), func(t models.Temple) bool { return t.ID == id })
	c.mu.Unlock()
}

// All is the merged view: remote first, then unshadowed bundled temples.
func (c *Catalog) All() []models.Temple {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return MergeOrdered(c.remote, c.local)
}

func (c *Catalog) Get(id string) (models.Temple, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := Merge(c.remote, c.local)[id]
	return t, ok
}

// Search matches names in both languages, the deity and the district,
// ignoring case. An empty query returns everything.
func (c *Catalog) Search(query string) []models.Temple {
	q := strings.ToLower(strings.TrimSpace(query))
	all := c.All()
	if q == "" {
		return all
	}
	var out []models.Temple
	for _, t := range all {
		fields := []string{t.Name.English, t.Name.Telugu, t.Deity.English, t.Deity.Telugu, t.District}
		for _, f := range fields {
			if strings.Contains(strings.ToLower(f), q) {
				out = append(out, t)
				break
			}
		}
	}
	return out
}

// ByCategory matches a feature tag or the temple type.
func (c *Catalog) ByCategory(category string) []models.Temple {
	var out []models.Temple
	for _, t := range c.All() {
		if strings.EqualFold(t.TempleType, category) ||
			slices.ContainsFunc(t.Features, func(f string) bool { return strings.EqualFold(f, category) }) {
			out = append(out, t)
		}
	}
	return out
}

// Categories lists the distinct feature tags in first-seen order.
func (c *Catalog) Categories() []string {
	var out []string
	for _, t := range c.All() {
		for _, f := range t.Features {
			if !slices.Contains(out, f) {
				out = append(out, f)
			}
		}
	}
	return out
}

// Bookmarked returns the bookmarked temples still present in the catalog,
// in bookmark order.
func (c *Catalog) Bookmarked() []models.Temple {
	c.mu.RLock()
	byID := Merge(c.remote, c.local)
	c.mu.RUnlock()

	var out []models.Temple
	for _, id := range c.bookmarks.Bookmarks() {
		if t, ok := byID[id]; ok {
			out = append(out, t)
		}
	}
	return out
}

func (c *Catalog) IsBookmarked(id string) bool { return c.bookmarks.IsBookmarked(id) }

func (c *Catalog) ToggleBookmark(ctx context.Context, id string) (bool, error) {
	return c.bookmarks.ToggleBookmark(ctx, id)
}
