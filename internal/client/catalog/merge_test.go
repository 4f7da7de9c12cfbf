package catalog

import (
	"testing"

	"github.com/dmitrijs2005/templesanathan/internal/client/models"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func temple(id, name string) models.Temple {
	return models.Temple{ID: id, Name: models.Text{English: name}}
}

func TestMerge_RemoteWins(t *testing.T) {
	remote := []models.Temple{temple("a", "Remote")}
	local := []models.Temple{temple("a", "Local"), temple("b", "Local2")}

	got := Merge(remote, local)
	names := map[string]string{}
	for id, t := range got {
		names[id] = t.Name.English
	}
	assert.Equal(t, map[string]string{"a": "Remote", "b": "Local2"}, names)

	// inputs untouched
	assert.Equal(t, "Local", local[0].Name.English)
	assert.Len(t, remote, 1)
}

func TestMerge_RemoteEntryReplacesWhole(t *testing.T) {
	local := temple("a", "Local")
	local.District = "Warangal"
	got := Merge([]models.Temple{temple("a", "Remote")}, []models.Temple{local})
	assert.Empty(t, got["a"].District, "no field-level merge")
}

func TestMergeOrdered(t *testing.T) {
	got := MergeOrdered(
		[]models.Temple{temple("r2", "R2"), temple("a", "Remote")},
		[]models.Temple{temple("a", "Local"), temple("b", "B")},
	)
	want := []models.Temple{temple("r2", "R2"), temple("a", "Remote"), temple("b", "B")}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("MergeOrdered mismatch (-want +got):\n%s", diff)
	}
}

func TestMerge_Empty(t *testing.T) {
	assert.Empty(t, Merge(nil, nil))
	assert.Empty(t, MergeOrdered(nil, nil))
}
