// Package models defines the domain types shared by the client packages and
// the row DTOs exchanged with the backend.
package models

import (
	"errors"
	"strings"
	"time"
)

// Language selects which half of a bilingual text is displayed.
type Language string

const (
	English Language = "en"
	Telugu  Language = "te"
)

// Text is a bilingual string.
type Text struct {
	English string `json:"english"`
	Telugu  string `json:"telugu"`
}

// In returns the text in lang, falling back to English when the translation is empty.
func (t Text) In(lang Language) string {
	if lang == Telugu && t.Telugu != "" {
		return t.Telugu
	}
	return t.English
}

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   Text    `json:"address"`
}

type Timings struct {
	Morning     string   `json:"morning"`
	Evening     string   `json:"evening"`
	PujaTimings []string `json:"pujaTimings"`
}

// Temple is the catalog entry rendered by the app.
type Temple struct {
	ID          string            `json:"id"`
	Name        Text              `json:"name"`
	Deity       Text              `json:"deity"`
	District    string            `json:"district"`
	State       string            `json:"state"`
	Location    Location          `json:"location"`
	Description Text              `json:"description"`
	History     Text              `json:"history"`
	Timings     Timings           `json:"timings"`
	Festivals   []string          `json:"festivals"`
	Images      []string          `json:"images"`
	Contact     map[string]string `json:"contact"`
	Features    []string          `json:"features"`
	IsOpen      bool              `json:"isOpen"`
	Popularity  float64           `json:"popularity"`
	TempleType  string            `json:"templeType"`
}

var ErrMalformedRow = errors.New("malformed row")

type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type RowLocation struct {
	Address   *Text    `json:"address,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// TempleRow is a row of the temples table as returned by the backend.
type TempleRow struct {
	ID          string            `json:"id"`
	Name        *Text             `json:"name"`
	Deity       *Text             `json:"deity"`
	District    string            `json:"district"`
	State       string            `json:"state"`
	Location    *RowLocation      `json:"location"`
	Coordinates *Coordinates      `json:"coordinates"`
	Description *Text             `json:"description"`
	Timings     *Timings          `json:"timings"`
	Images      []string          `json:"images"`
	ImageURL    *string           `json:"image_url"`
	ContactInfo map[string]string `json:"contact_info"`
	Features    []string          `json:"features"`
	IsOpen      *bool             `json:"is_open"`
	Popularity  *float64          `json:"popularity"`
	TempleType  string            `json:"temple_type"`
	CreatedAt   *time.Time        `json:"created_at,omitempty"`
}

// ToTemple validates the row and fills defaults for optional fields. Rows
// without an id or an English name are rejected.
func (r TempleRow) ToTemple() (Temple, error) {
	if strings.TrimSpace(r.ID) == "" || r.Name == nil || strings.TrimSpace(r.Name.English) == "" {
		return Temple{}, ErrMalformedRow
	}

	t := Temple{
		ID:         r.ID,
		Name:       *r.Name,
		District:   r.District,
		State:      r.State,
		Contact:    r.ContactInfo,
		Features:   r.Features,
		Images:     r.Images,
		IsOpen:     true,
		TempleType: r.TempleType,
	}
	if r.Deity != nil {
		t.Deity = *r.Deity
	}
	if r.Description != nil {
		t.Description = *r.Description
	}
	if t.State == "" {
		t.State = "TS"
	}
	if t.TempleType == "" {
		t.TempleType = "Ancient"
	}
	if r.IsOpen != nil {
		t.IsOpen = *r.IsOpen
	}
	if r.Popularity != nil {
		t.Popularity = *r.Popularity
	}
	if r.Timings != nil {
		t.Timings = *r.Timings
	}
	if t.Timings.PujaTimings == nil {
		t.Timings.PujaTimings = []string{}
	}
	if t.Images == nil {
		t.Images = []string{}
		if r.ImageURL != nil && *r.ImageURL != "" {
			t.Images = []string{*r.ImageURL}
		}
	}
	if t.Features == nil {
		t.Features = []string{}
	}
	if t.Contact == nil {
		t.Contact = map[string]string{}
	}
	t.Festivals = []string{}

	switch {
	case r.Coordinates != nil:
		t.Location.Latitude, t.Location.Longitude = r.Coordinates.Lat, r.Coordinates.Lng
	case r.Location != nil && r.Location.Latitude != nil && r.Location.Longitude != nil:
		t.Location.Latitude, t.Location.Longitude = *r.Location.Latitude, *r.Location.Longitude
	}
	if r.Location != nil && r.Location.Address != nil {
		t.Location.Address = *r.Location.Address
	}

	return t, nil
}
