// Package updates checks app_updates for a newer client release.
package updates

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/templesanathan/internal/client/backend"
	"github.com/dmitrijs2005/templesanathan/internal/client/models"
)

const Table = "app_updates"

// CompareVersions compares dotted versions numerically. Missing parts count
// as zero and a leading "v" is ignored. It returns -1, 0 or 1.
func CompareVersions(a, b string) int {
	pa, pb := parts(a), parts(b)
	for i := range max(len(pa), len(pb)) {
		var x, y int
		if i < len(pa) {
			x = pa[i]
		}
		if i < len(pb) {
			y = pb[i]
		}
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
	}
	return 0
}

func parts(v string) []int {
	v = strings.TrimPrefix(strings.TrimSpace(v), "v")
	if v == "" {
		return nil
	}
	fields := strings.Split(v, ".")
	out := make([]int, len(fields))
	for i, f := range fields {
		end := strings.IndexFunc(f, func(r rune) bool { return r < '0' || r > '9' })
		if end >= 0 {
			f = f[:end]
		}
		out[i], _ = strconv.Atoi(f)
	}
	return out
}

// ShouldPrompt reports whether latest should be offered over current. A
// skipped version is not offered again unless it is mandatory.
func ShouldPrompt(latest models.AppUpdate, current, skipped string) bool {
	if CompareVersions(latest.Version, current) <= 0 {
		return false
	}
	return latest.Mandatory || skipped != latest.Version
}

// SkipStore persists the version the user chose to skip. *prefs.Store
// implements it.
type SkipStore interface {
	SkippedUpdateVersion() string
	SetSkippedUpdateVersion(ctx context.Context, version string) error
}

type Checker struct {
	tables  backend.Tables
	store   SkipStore
	current string
}

func NewChecker(tables backend.Tables, store SkipStore, current string) *Checker {
	return &Checker{tables: tables, store: store, current: current}
}

// Latest returns the highest published version, or nil when there is none.
func (c *Checker) Latest(ctx context.Context) (*models.AppUpdate, error) {
	var rows []models.AppUpdate
	err := c.tables.Select(ctx, backend.Query{
		Table: Table,
		Order: []backend.OrderBy{{Column: "created_at", Descending: true}},
		Limit: 20,
	}, &rows)
	if err != nil {
		return nil, fmt.Errorf("load app updates: %w", err)
	}
	var latest *models.AppUpdate
	for i := range rows {
		if latest == nil || CompareVersions(rows[i].Version, latest.Version) > 0 {
			latest = &rows[i]
		}
	}
	return latest, nil
}

// Check returns the update to offer, or nil.
func (c *Checker) Check(ctx context.Context) (*models.AppUpdate, error) {
	latest, err := c.Latest(ctx)
	if err != nil || latest == nil {
		return nil, err
	}
	if !ShouldPrompt(*latest, c.current, c.store.SkippedUpdateVersion()) {
		return nil, nil
	}
	return latest, nil
}

// Skip hides version until a newer or mandatory one appears.
func (c *Checker) Skip(ctx context.Context, version string) error {
	return c.store.SetSkippedUpdateVersion(ctx, version)
}
