package cli

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/templesanathan/internal/client/chat"
	"github.com/dmitrijs2005/templesanathan/internal/client/nav"
)

func (a *App) banners() chat.Banners {
	return chat.BannersFor(a.lang())
}

// OpenChat moves to the chat screen, joins the room and prints the history.
func (a *App) OpenChat(ctx context.Context, _ []string) error {
	if err := a.navigate(nav.Chat, nil, ""); err != nil {
		return err
	}
	b := a.banners()
	a.printf("== %s ==\n", b.Title)
	if !a.config.Configured() {
		a.println(b.NotConfigured)
	}
	if a.resolver.Blocked() {
		a.println(b.Offline)
	}
	if !a.room.Mounted() {
		if err := a.room.Mount(ctx); err != nil {
			return err
		}
	}
	if a.room.PersistenceIssue() {
		a.println(b.HistoryWarn)
	}
	a.printMessages()
	return nil
}

func (a *App) printMessages() {
	msgs := a.room.Messages()
	if len(msgs) == 0 {
		a.println(a.banners().Placeholder)
	}
	for _, m := range msgs {
		who := m.User
		if a.room.IsMine(m) {
			who = "you"
		}
		line := time.UnixMilli(m.TS).Format("15:04") + " " + short(m.ID) + " " + who + ": " + m.Text
		if m.Edited {
			line += " (edited)"
		}
		if m.Status != chat.StatusSent {
			line += " [" + string(m.Status) + "]"
		}
		a.println(line)
	}
	if ind := a.room.TypingIndicator(); ind != "" {
		a.println(ind)
	}
}

func (a *App) ensureRoom(ctx context.Context) error {
	if a.room.Mounted() && a.nav.Current() == nav.Chat {
		return nil
	}
	return a.OpenChat(ctx, nil)
}

func (a *App) message(prefix string) (string, error) {
	msgs := a.room.Messages()
	ids := make([]string, len(msgs))
	for i, m := range msgs {
		ids[i] = m.ID
	}
	return byPrefix(ids, prefix)
}

func (a *App) Say(ctx context.Context, args []string) error {
	if err := a.ensureRoom(ctx); err != nil {
		return err
	}
	m, err := a.room.Send(ctx, strings.Join(args, " "))
	if errors.Is(err, chat.ErrSendFailed) {
		a.printf("%s not saved; type 'retry %s' to try again\n", short(m.ID), short(m.ID))
		return nil
	}
	return err
}

func (a *App) EditMessage(ctx context.Context, args []string) error {
	if err := a.ensureRoom(ctx); err != nil {
		return err
	}
	id, err := a.message(args[0])
	if err != nil {
		return err
	}
	return a.room.Edit(ctx, id, strings.Join(args[1:], " "))
}

func (a *App) DeleteMessage(ctx context.Context, args []string) error {
	if err := a.ensureRoom(ctx); err != nil {
		return err
	}
	id, err := a.message(args[0])
	if err != nil {
		return err
	}
	if ok, err := a.confirmed("Delete this message?"); err != nil || !ok {
		return err
	}
	if err := a.room.Delete(ctx, id); err != nil {
		if errors.Is(err, chat.ErrDeleteFailed) {
			return errors.New(a.banners().DeleteFailed)
		}
		return err
	}
	return nil
}

func (a *App) RetryMessage(ctx context.Context, args []string) error {
	if err := a.ensureRoom(ctx); err != nil {
		return err
	}
	id, err := a.message(args[0])
	if err != nil {
		return err
	}
	return a.room.Retry(ctx, id)
}

func (a *App) Typing(ctx context.Context, _ []string) error {
	if err := a.ensureRoom(ctx); err != nil {
		return err
	}
	return a.room.Typing(ctx)
}

func (a *App) Who(ctx context.Context, _ []string) error {
	if !a.room.Mounted() {
		return chat.ErrNotMounted
	}
	a.printf("%d online as %s\n", a.room.OnlineCount(), a.room.DisplayName())
	if ind := a.room.TypingIndicator(); ind != "" {
		a.println(ind)
	}
	return nil
}

func (a *App) Inbox(ctx context.Context, args []string) error {
	items := a.inbox.Items()
	if len(args) >= 2 && args[0] == "dismiss" {
		n, err := strconv.Atoi(args[1])
		if err != nil || n < 1 || n > len(items) {
			return errors.New("usage: inbox dismiss <n>")
		}
		a.inbox.Dismiss(items[n-1].ID)
		return nil
	}
	if len(items) == 0 {
		a.println("No notifications.")
	}
	for i, it := range items {
		a.printf("%d. %s: %s\n", i+1, it.Title, it.Message)
	}
	return nil
}
