package notify

import (
	"context"
	"fmt"
	"testing"

	"github.com/dmitrijs2005/templesanathan/internal/client/backend"
	"github.com/dmitrijs2005/templesanathan/internal/client/backend/memory"
	"github.com/dmitrijs2005/templesanathan/internal/client/models"
	"github.com/dmitrijs2005/templesanathan/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sender(t *testing.T, hub *memory.Hub, topic string) backend.Channel {
	t.Helper()
	ch := hub.Channel(topic, backend.ChannelOptions{})
	require.NoError(t, ch.Subscribe(context.Background()))
	return ch
}

func TestInbox_CollectsSharedAndPersonal(t *testing.T) {
	ctx := context.Background()
	hub := memory.NewHub()
	in := NewInbox(hub, logging.Nop())
	var notified int
	in.Subscribe(func() { notified++ })

	require.NoError(t, in.Start(ctx))
	require.NoError(t, in.Start(ctx))
	require.NoError(t, in.SetUser(ctx, "Devotee@Example.com"))

	all := sender(t, hub, ChannelBroadcast)
	mine := sender(t, hub, "user:devotee@example.com")
	other := sender(t, hub, "user:someone@example.com")

	require.NoError(t, all.Broadcast(ctx, EventNewMessage, map[string]string{"title": "Darshan", "message": "Opens at 5"}))
	require.NoError(t, mine.Broadcast(ctx, EventNewMessage, map[string]string{"message": "Your temple was approved"}))
	require.NoError(t, other.Broadcast(ctx, EventNewMessage, map[string]string{"title": "Not for you"}))

	items := in.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "Darshan", items[0].Title)
	assert.Equal(t, "Message", items[1].Title)
	assert.Equal(t, "Your temple was approved", items[1].Message)
	assert.NotEqual(t, items[0].ID, items[1].ID)
	assert.Equal(t, 2, notified)

	require.NoError(t, in.SetUser(ctx, ""))
	require.NoError(t, mine.Broadcast(ctx, EventNewMessage, map[string]string{"title": "late"}))
	assert.Len(t, in.Items(), 2)

	assert.True(t, in.Dismiss(items[0].ID))
	assert.False(t, in.Dismiss(items[0].ID))
	assert.Len(t, in.Items(), 1)

	require.NoError(t, in.Stop(ctx))
	require.NoError(t, all.Broadcast(ctx, EventNewMessage, map[string]string{"title": "after stop"}))
	assert.Len(t, in.Items(), 1)
}

func TestInbox_KeepsLastFive(t *testing.T) {
	ctx := context.Background()
	hub := memory.NewHub()
	in := NewInbox(hub, logging.Nop())
	require.NoError(t, in.Start(ctx))
	all := sender(t, hub, ChannelBroadcast)

	for i := range 8 {
		require.NoError(t, all.Broadcast(ctx, EventNewMessage, map[string]string{"title": fmt.Sprint(i)}))
	}
	items := in.Items()
	require.Len(t, items, InboxSize)
	assert.Equal(t, "3", items[0].Title)
	assert.Equal(t, "7", items[4].Title)
}

func TestParsePush(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want PushNotification
	}{
		{
			name: "empty",
			in:   "",
			want: PushNotification{Title: "Temple Sanathan", URL: "/", Icon: "/favicon.ico", Tag: "temple-sanathan"},
		},
		{
			name: "message fallback",
			in:   `{"title":"Ugadi","message":"Celebrations tonight"}`,
			want: PushNotification{Title: "Ugadi", Body: "Celebrations tonight", URL: "/", Icon: "/favicon.ico", Tag: "temple-sanathan"},
		},
		{
			name: "body wins",
			in:   `{"body":"b","message":"m","url":"/temple/1","icon":"/i.png","tag":"t"}`,
			want: PushNotification{Title: "Temple Sanathan", Body: "b", URL: "/temple/1", Icon: "/i.png", Tag: "t"},
		},
		{
			name: "malformed",
			in:   `not json`,
			want: PushNotification{Title: "Temple Sanathan", Body: "You have a new notification"},
		},
		{
			name: "null payload",
			in:   `null`,
			want: PushNotification{Title: "Temple Sanathan", Body: "You have a new notification"},
		},
		{
			name: "array payload",
			in:   `[]`,
			want: PushNotification{Title: "Temple Sanathan", Body: "You have a new notification"},
		},
		{
			name: "string payload",
			in:   `"hello"`,
			want: PushNotification{Title: "Temple Sanathan", Body: "You have a new notification"},
		},
		{
			name: "number payload",
			in:   ` 42 `,
			want: PushNotification{Title: "Temple Sanathan", Body: "You have a new notification"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParsePush([]byte(tt.in)))
		})
	}
}

func TestSubscriptions(t *testing.T) {
	ctx := context.Background()
	tables := memory.NewTables(memory.NewHub())
	subs := NewSubscriptions(tables)

	assert.ErrorIs(t, subs.Save(ctx, models.PushSubscription{Endpoint: "https://push/1"}), ErrIncompleteSubscription)

	require.NoError(t, subs.Save(ctx, models.PushSubscription{Endpoint: "https://push/1", P256DH: "k1", Auth: "a1", Email: "Ravi@Example.com"}))
	require.NoError(t, subs.Save(ctx, models.PushSubscription{Endpoint: "https://push/1", P256DH: "k2", Auth: "a2", Email: "ravi@example.com"}))
	require.NoError(t, subs.Save(ctx, models.PushSubscription{Endpoint: "https://push/2", P256DH: "k3", Auth: "a3"}))
	require.Len(t, tables.Rows(TablePushSubscriptions), 2)

	got, err := subs.ForUser(ctx, "RAVI@example.com")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "k2", got[0].P256DH)

	require.NoError(t, subs.Remove(ctx, "https://push/1"))
	assert.Len(t, tables.Rows(TablePushSubscriptions), 1)
}
