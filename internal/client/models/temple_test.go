package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTempleRow_ToTemple_Defaults(t *testing.T) {
	var row TempleRow
	require.NoError(t, json.Unmarshal([]byte(`{
		"id": "t1",
		"name": {"english": "Yadadri", "telugu": "యాదాద్రి"},
		"image_url": "https://img/1.jpg",
		"coordinates": {"lat": 17.58, "lng": 78.94},
		"location": {"address": {"english": "Yadagirigutta", "telugu": ""}}
	}`), &row))

	tm, err := row.ToTemple()
	require.NoError(t, err)
	assert.Equal(t, "TS", tm.State)
	assert.Equal(t, "Ancient", tm.TempleType)
	assert.True(t, tm.IsOpen)
	assert.Equal(t, []string{"https://img/1.jpg"}, tm.Images)
	assert.Equal(t, 17.58, tm.Location.Latitude)
	assert.Equal(t, "Yadagirigutta", tm.Location.Address.English)
	assert.Equal(t, "యాదాద్రి", tm.Name.In(Telugu))
}

func TestTempleRow_ToTemple_RejectsMalformed(t *testing.T) {
	_, err := TempleRow{Name: &Text{English: "X"}}.ToTemple()
	assert.ErrorIs(t, err, ErrMalformedRow)

	_, err = TempleRow{ID: "t1"}.ToTemple()
	assert.ErrorIs(t, err, ErrMalformedRow)

	_, err = TempleRow{ID: "t1", Name: &Text{English: "  "}}.ToTemple()
	assert.ErrorIs(t, err, ErrMalformedRow)
}

func TestText_In_FallsBackToEnglish(t *testing.T) {
	assert.Equal(t, "Srisailam", Text{English: "Srisailam"}.In(Telugu))
}

func TestToTempleRecord(t *testing.T) {
	d := SubmissionData{
		Name:       Text{English: "Sri Kanaka Durga Temple"},
		District:   "NTR",
		State:      "AP",
		TempleType: "Shakti Peetha",
		Address:    &Text{English: "Indrakeeladri, Vijayawada"},
		Location:   &GeoPoint{Latitude: 16.51, Longitude: 80.6},
		Timings:    &Timings{Morning: "4:00 AM"},
		Images:     []string{"a.jpg", "b.jpg"},
	}

	rec := ToTempleRecord(d)

	assert.Equal(t, "Sri Kanaka Durga Temple", rec.Name.English)
	assert.True(t, rec.IsOpen)
	require.NotNil(t, rec.ImageURL)
	assert.Equal(t, "a.jpg", *rec.ImageURL)
	assert.Equal(t, &Coordinates{Lat: 16.51, Lng: 80.6}, rec.Coordinates)
	assert.Equal(t, "Indrakeeladri, Vijayawada", rec.Location.Address.English)
	assert.Equal(t, []string{}, rec.Timings.PujaTimings)
	assert.Equal(t, []string{}, rec.Features)
	assert.Nil(t, rec.Popularity)

	empty := ToTempleRecord(SubmissionData{Name: Text{English: "X"}})
	assert.Nil(t, empty.ImageURL)
	assert.Nil(t, empty.Location)
	assert.Nil(t, empty.Coordinates)
	assert.Nil(t, empty.Timings)
}
