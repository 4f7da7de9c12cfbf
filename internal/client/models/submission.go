package models

import "time"

type SubmissionStatus string

const (
	StatusPending  SubmissionStatus = "pending"
	StatusApproved SubmissionStatus = "approved"
	StatusRejected SubmissionStatus = "rejected"
)

type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// SubmissionData is the payload a user submits for a new temple.
type SubmissionData struct {
	Name        Text              `json:"name"`
	Deity       *Text             `json:"deity,omitempty"`
	Description *Text             `json:"description,omitempty"`
	District    string            `json:"district"`
	State       string            `json:"state"`
	TempleType  string            `json:"templeType,omitempty"`
	Address     *Text             `json:"address,omitempty"`
	Location    *GeoPoint         `json:"location,omitempty"`
	Timings     *Timings          `json:"timings,omitempty"`
	Images      []string          `json:"images,omitempty"`
	Contact     map[string]string `json:"contact,omitempty"`
	Features    []string          `json:"features,omitempty"`
}

// Submission is a row of temple_submissions.
type Submission struct {
	ID          string           `json:"id"`
	Status      SubmissionStatus `json:"status"`
	TempleData  SubmissionData   `json:"temple_data"`
	SubmittedBy string           `json:"submitted_by,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}

// TempleRecord is the insert shape for the temples table.
type TempleRecord struct {
	Name        Text              `json:"name"`
	Deity       *Text             `json:"deity"`
	Description *Text             `json:"description"`
	District    string            `json:"district"`
	State       string            `json:"state"`
	TempleType  string            `json:"temple_type,omitempty"`
	Location    *RowLocation      `json:"location"`
	Coordinates *Coordinates      `json:"coordinates"`
	Timings     *Timings          `json:"timings"`
	IsOpen      bool              `json:"is_open"`
	ImageURL    *string           `json:"image_url"`
	Images      []string          `json:"images"`
	ContactInfo map[string]string `json:"contact_info"`
	Features    []string          `json:"features"`
	Popularity  *float64          `json:"popularity"`
}

// ToTempleRecord maps a submission payload field by field into a temples row.
func ToTempleRecord(d SubmissionData) TempleRecord {
	rec := TempleRecord{
		Name:        d.Name,
		Deity:       d.Deity,
		Description: d.Description,
		District:    d.District,
		State:       d.State,
		TempleType:  d.TempleType,
		IsOpen:      true,
		Images:      d.Images,
		ContactInfo: d.Contact,
		Features:    d.Features,
	}
	if rec.Images == nil {
		rec.Images = []string{}
	}
	if rec.Features == nil {
		rec.Features = []string{}
	}
	if len(rec.Images) > 0 {
		first := rec.Images[0]
		rec.ImageURL = &first
	}
	if d.Address != nil {
		rec.Location = &RowLocation{Address: d.Address}
	}
	if d.Location != nil {
		rec.Coordinates = &Coordinates{Lat: d.Location.Latitude, Lng: d.Location.Longitude}
	}
	if d.Timings != nil {
		t := *d.Timings
		if t.PujaTimings == nil {
			t.PujaTimings = []string{}
		}
		rec.Timings = &t
	}
	return rec
}
