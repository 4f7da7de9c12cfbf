package moderation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/templesanathan/internal/client/backend"
	"github.com/dmitrijs2005/templesanathan/internal/client/models"
)

const (
	TableFestivals = "festivals"

	ChannelNotifications = "notifications"
	EventNewMessage      = "new_message"
)

var (
	ErrFestivalIncomplete     = errors.New("please provide name and date")
	ErrNotificationIncomplete = errors.New("please provide title and message")
	ErrRecipientRequired      = errors.New("please provide the recipient email")
)

// UpcomingFestivals returns festivals dated today or later, soonest first.
// today is an ISO date (YYYY-MM-DD).
func (s *Service) UpcomingFestivals(ctx context.Context, today string) ([]models.Festival, error) {
	var out []models.Festival
	err := s.tables.Select(ctx, backend.Query{
		Table:   TableFestivals,
		Filters: []backend.Filter{backend.Gte("date", today)},
		Order:   []backend.OrderBy{{Column: "date"}},
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("load festivals: %w", err)
	}
	return out, nil
}

func (s *Service) AddFestival(ctx context.Context, f models.Festival) error {
	if err := s.requireAdmin(); err != nil {
		return err
	}
	f.Name = strings.TrimSpace(f.Name)
	f.Date = strings.TrimSpace(f.Date)
	if f.Name == "" || f.Date == "" {
		return ErrFestivalIncomplete
	}
	f.ID = ""
	if err := s.tables.Insert(ctx, TableFestivals, []models.Festival{f}); err != nil {
		return fmt.Errorf("add festival: %w", err)
	}
	return nil
}

func (s *Service) DeleteFestival(ctx context.Context, id string) error {
	if err := s.requireAdmin(); err != nil {
		return err
	}
	if err := s.tables.Delete(ctx, TableFestivals, backend.Eq("id", id)); err != nil {
		return fmt.Errorf("delete festival: %w", err)
	}
	return nil
}

// ClearUpcomingFestivals deletes every festival dated today or later.
func (s *Service) ClearUpcomingFestivals(ctx context.Context, today string) error {
	if err := s.requireAdmin(); err != nil {
		return err
	}
	if err := s.tables.Delete(ctx, TableFestivals, backend.Gte("date", today)); err != nil {
		return fmt.Errorf("clear festivals: %w", err)
	}
	return nil
}

type Audience string

const (
	AudienceAll  Audience = "all"
	AudienceUser Audience = "user"
)

// Notification is the new_message broadcast payload.
type Notification struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	SentAt  string `json:"sentAt"`
}

// UserChannel is the per-user notification topic.
func UserChannel(email string) string {
	return "user:" + strings.ToLower(strings.TrimSpace(email))
}

// SendNotification broadcasts a message to everyone or to one user.
func (s *Service) SendNotification(ctx context.Context, to Audience, email, title, body string) error {
	if err := s.requireAdmin(); err != nil {
		return err
	}
	title, body = strings.TrimSpace(title), strings.TrimSpace(body)
	if title == "" || body == "" {
		return ErrNotificationIncomplete
	}
	topic := ChannelNotifications
	if to == AudienceUser {
		if strings.TrimSpace(email) == "" {
			return ErrRecipientRequired
		}
		topic = UserChannel(email)
	}

	ch := s.realtime.Channel(topic, backend.ChannelOptions{})
	if err := ch.Subscribe(ctx); err != nil {
		return fmt.Errorf("join %s: %w", topic, err)
	}
	defer func() {
		if err := ch.Unsubscribe(context.WithoutCancel(ctx)); err != nil {
			s.log.Warn(ctx, "leave notification channel", "channel", topic, "error", err)
		}
	}()

	n := Notification{Title: title, Message: body, SentAt: s.now().UTC().Format("2006-01-02T15:04:05.000Z07:00")}
	if err := ch.Broadcast(ctx, EventNewMessage, n); err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	s.log.Info(ctx, "notification sent", "channel", topic)
	return nil
}
