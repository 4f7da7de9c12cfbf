package models

import "time"

// Festival is a row of the festivals table.
type Festival struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Date        string `json:"date"`
	Description string `json:"description,omitempty"`
	TempleName  string `json:"temple_name,omitempty"`
}

// Profile is a row of the profiles table.
type Profile struct {
	UserID      string     `json:"user_id"`
	Username    string     `json:"username"`
	FullName    string     `json:"full_name,omitempty"`
	Location    string     `json:"location,omitempty"`
	Bio         string     `json:"bio,omitempty"`
	AvatarURL   string     `json:"avatar_url,omitempty"`
	Phone       string     `json:"phone,omitempty"`
	Email       string     `json:"email,omitempty"`
	DisplayName string     `json:"display_name,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// PushSubscription is a row of push_subscriptions, keyed by endpoint.
type PushSubscription struct {
	Endpoint string `json:"endpoint"`
	P256DH   string `json:"p256dh"`
	Auth     string `json:"auth"`
	Email    string `json:"email,omitempty"`
}

// AppUpdate describes a published client release.
type AppUpdate struct {
	Version     string `json:"version"`
	Title       string `json:"title,omitempty"`
	Mandatory   bool   `json:"mandatory"`
	Notes       string `json:"notes,omitempty"`
	DownloadURL string `json:"download_url,omitempty"`
}
