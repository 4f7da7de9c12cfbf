// Package chat implements the shared devotion chat room: a pure reducer that
// reconciles optimistic local messages with history, row changes and
// broadcast echoes, plus the Room that wires it to the backend.
package chat

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/templesanathan/internal/client/backend"
	"github.com/dmitrijs2005/templesanathan/internal/client/models"
)

const (
	Table = "chat_messages"

	ChannelRows     = "devotion_chat_db"
	ChannelLive     = "devotion_chat"
	ChannelPresence = "devotion_chat_presence"

	EventMessage = "message"
	EventTyping  = "typing"
)

type Status string

const (
	StatusSending Status = "sending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

func (s Status) rank() int {
	switch s {
	case StatusSent:
		return 2
	case StatusFailed:
		return 1
	}
	return 0
}

// Message is the in-memory chat entry. It is also the broadcast payload.
type Message struct {
	ID     string `json:"id"`
	UID    string `json:"uid,omitempty"`
	User   string `json:"user"`
	Text   string `json:"text"`
	TS     int64  `json:"ts"`
	Status Status `json:"status,omitempty"`
	Edited bool   `json:"edited,omitempty"`
}

// Row is the chat_messages table shape.
type Row struct {
	ID       string  `json:"id"`
	UID      *string `json:"uid"`
	Username string  `json:"username"`
	Text     string  `json:"text"`
	TS       Millis  `json:"ts"`
}

// Millis accepts a JSON number or a numeric string; bigint columns arrive
// as either depending on the transport.
type Millis int64

func (m *Millis) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*m = 0
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("ts: %w", err)
	}
	*m = Millis(n)
	return nil
}

func (r Row) Message() (Message, error) {
	if r.ID == "" {
		return Message{}, fmt.Errorf("%w: chat row without id", models.ErrMalformedRow)
	}
	m := Message{ID: r.ID, User: r.Username, Text: r.Text, TS: int64(r.TS), Status: StatusSent}
	if r.UID != nil {
		m.UID = *r.UID
	}
	return m, nil
}

func rowOf(m Message) Row {
	r := Row{ID: m.ID, Username: m.User, Text: m.Text, TS: Millis(m.TS)}
	if m.UID != "" {
		uid := m.UID
		r.UID = &uid
	}
	return r
}

func decodeRow(raw json.RawMessage) (Message, error) {
	var r Row
	if err := json.Unmarshal(raw, &r); err != nil {
		return Message{}, fmt.Errorf("%w: %v", models.ErrMalformedRow, err)
	}
	return r.Message()
}

func decodeBroadcast(raw json.RawMessage) (Message, error) {
	var m Message
	if err := json.Unmarshal(raw, &m); err != nil {
		return Message{}, fmt.Errorf("%w: %v", models.ErrMalformedRow, err)
	}
	if m.ID == "" {
		return Message{}, fmt.Errorf("%w: broadcast without id", models.ErrMalformedRow)
	}
	return m, nil
}

// DisplayName is the local part of the email, or a random guest name.
func DisplayName(id *backend.Identity) string {
	if id != nil && id.Email != "" {
		local, _, _ := strings.Cut(id.Email, "@")
		if local != "" {
			return local
		}
	}
	return fmt.Sprintf("Guest-%d", rand.IntN(9999))
}

// Mine reports whether m was written by the current user: author id match,
// or no author id and the same display name.
func Mine(m Message, id *backend.Identity, displayName string) bool {
	if m.UID != "" {
		return id != nil && id.ID != "" && m.UID == id.ID
	}
	return m.User == displayName
}
