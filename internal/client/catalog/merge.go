// Package catalog serves the temple catalog: the bundled dataset merged
// with the live remote one, search, categories and bookmarks.
package catalog

import "github.com/dmitrijs2005/templesanathan/internal/client/models"

// Merge combines the two datasets by id. Remote entries win whole; a local
// entry is only added when its id is absent from remote. Inputs are not
// modified.
func Merge(remote, local []models.Temple) map[string]models.Temple {
	out := make(map[string]models.Temple, len(remote)+len(local))
	for _, t := range remote {
		if _, ok := out[t.ID]; !ok {
			out[t.ID] = t
		}
	}
	for _, t := range local {
		if _, ok := out[t.ID]; !ok {
			out[t.ID] = t
		}
	}
	return out
}

// MergeOrdered is Merge as a list: remote order first, then the local
// entries that were not shadowed.
func MergeOrdered(remote, local []models.Temple) []models.Temple {
	seen := make(map[string]struct{}, len(remote)+len(local))
	out := make([]models.Temple, 0, len(remote)+len(local))
	for _, src := range [][]models.Temple{remote, local} {
		for _, t := range src {
			if _, ok := seen[t.ID]; ok {
				continue
			}
			seen[t.ID] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}
