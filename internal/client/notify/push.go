package notify

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/templesanathan/internal/client/backend"
	"github.com/dmitrijs2005/templesanathan/internal/client/models"
)

const (
	TablePushSubscriptions = "push_subscriptions"

	DefaultPushTitle = "Temple Sanathan"
	DefaultPushURL   = "/"
	DefaultPushIcon  = "/favicon.ico"
	DefaultPushTag   = "temple-sanathan"
	FallbackPushBody = "You have a new notification"
)

var ErrIncompleteSubscription = errors.New("push subscription needs endpoint and keys")

// PushNotification is what gets displayed for an incoming push message.
type PushNotification struct {
	Title string
	Body  string
	URL   string
	Icon  string
	Tag   string
}

// ParsePush decodes a push message body. Missing fields get defaults and a
// body that is not a JSON object yields the generic notification.
func ParsePush(data []byte) PushNotification {
	trimmed := strings.TrimSpace(string(data))
	if len(trimmed) == 0 {
		return PushNotification{Title: DefaultPushTitle, URL: DefaultPushURL, Icon: DefaultPushIcon, Tag: DefaultPushTag}
	}
	malformed := PushNotification{Title: DefaultPushTitle, Body: FallbackPushBody}
	if trimmed[0] != '{' {
		return malformed
	}
	var p struct {
		Title   string `json:"title"`
		Body    string `json:"body"`
		Message string `json:"message"`
		URL     string `json:"url"`
		Icon    string `json:"icon"`
		Tag     string `json:"tag"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return malformed
	}
	n := PushNotification{
		Title: cmp.Or(p.Title, DefaultPushTitle),
		Body:  cmp.Or(p.Body, p.Message),
		URL:   cmp.Or(p.URL, DefaultPushURL),
		Icon:  cmp.Or(p.Icon, DefaultPushIcon),
		Tag:   cmp.Or(p.Tag, DefaultPushTag),
	}
	return n
}

// Subscriptions stores push endpoints in push_subscriptions.
type Subscriptions struct {
	tables backend.Tables
}

func NewSubscriptions(tables backend.Tables) *Subscriptions {
	return &Subscriptions{tables: tables}
}

// Save registers sub, replacing any row with the same endpoint.
func (s *Subscriptions) Save(ctx context.Context, sub models.PushSubscription) error {
	if sub.Endpoint == "" || sub.P256DH == "" || sub.Auth == "" {
		return ErrIncompleteSubscription
	}
	sub.Email = strings.ToLower(strings.TrimSpace(sub.Email))
	if err := s.tables.Upsert(ctx, TablePushSubscriptions, []models.PushSubscription{sub}, "endpoint"); err != nil {
		return fmt.Errorf("save push subscription: %w", err)
	}
	return nil
}

func (s *Subscriptions) Remove(ctx context.Context, endpoint string) error {
	if err := s.tables.Delete(ctx, TablePushSubscriptions, backend.Eq("endpoint", endpoint)); err != nil {
		return fmt.Errorf("remove push subscription: %w", err)
	}
	return nil
}

// ForUser lists the endpoints registered for email.
func (s *Subscriptions) ForUser(ctx context.Context, email string) ([]models.PushSubscription, error) {
	var out []models.PushSubscription
	err := s.tables.Select(ctx, backend.Query{
		Table:   TablePushSubscriptions,
		Filters: []backend.Filter{backend.Eq("email", strings.ToLower(strings.TrimSpace(email)))},
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("load push subscriptions: %w", err)
	}
	return out, nil
}
