package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/templesanathan/internal/client/models"
	"github.com/dmitrijs2005/templesanathan/internal/client/moderation"
	"github.com/dmitrijs2005/templesanathan/internal/client/nav"
)

// Prompt indirections used to facilitate testing.
var (
	getSimpleText = GetSimpleText
	getMultiline  = GetMultiline
	getLines      = GetLines
	confirm       = Confirm
)

func (a *App) ask(prompt string) (string, error) {
	return getSimpleText(a.reader, prompt, a.out)
}

// confirmed asks prompt and prints "Cancelled." on a no.
func (a *App) confirmed(prompt string) (bool, error) {
	ok, err := confirm(a.reader, prompt, a.out)
	if err != nil {
		return false, err
	}
	if !ok {
		a.println("Cancelled.")
	}
	return ok, nil
}

// Submit walks the user through the temple submission form.
func (a *App) Submit(ctx context.Context, _ []string) error {
	if err := a.navigate(nav.Submit, nil, ""); err != nil {
		return err
	}
	var d models.SubmissionData
	var err error
	fields := []struct {
		prompt string
		dst    *string
	}{
		{"Temple name (English)", &d.Name.English},
		{"Temple name (Telugu, optional)", &d.Name.Telugu},
		{"District", &d.District},
		{"State", &d.State},
		{"Temple type (optional)", &d.TempleType},
	}
	for _, f := range fields {
		if *f.dst, err = a.ask(f.prompt); err != nil {
			return err
		}
	}
	deity, err := a.ask("Main deity (optional)")
	if err != nil {
		return err
	}
	if deity != "" {
		d.Deity = &models.Text{English: deity}
	}
	desc, err := getMultiline(a.reader, "Description (optional)", a.out)
	if err != nil {
		return err
	}
	if desc != "" {
		d.Description = &models.Text{English: desc}
	}
	if d.Features, err = getLines(a.reader, "Features", a.out); err != nil {
		return err
	}

	if err := a.moderation.Submit(ctx, d); err != nil {
		return err
	}
	a.println("Thank you! Your submission will be reviewed by an admin.")
	return nil
}

func (a *App) Admin(ctx context.Context, args []string) error {
	f, err := moderation.ParseFilter(strings.Join(args, " "))
	if err != nil {
		return err
	}
	if a.nav.NavigateTo(nav.Admin, nil, "").Current != nav.Admin {
		return moderation.ErrNotAdmin
	}
	subs, err := a.moderation.List(ctx, f)
	if err != nil {
		return err
	}
	if len(subs) == 0 {
		a.printf("No %s submissions.\n", f)
	}
	for _, s := range subs {
		a.printf("%-8s %-8s %s (%s, %s) by %s on %s\n", short(s.ID), s.Status, s.TempleData.Name.English,
			s.TempleData.District, s.TempleData.State, s.SubmittedBy, s.CreatedAt.Local().Format(time.DateOnly))
	}
	return nil
}

func (a *App) submission(ctx context.Context, prefix string) (string, error) {
	subs, err := a.moderation.List(ctx, moderation.FilterAll)
	if err != nil {
		return "", err
	}
	ids := make([]string, len(subs))
	for i, s := range subs {
		ids[i] = s.ID
	}
	return byPrefix(ids, prefix)
}

func (a *App) Approve(ctx context.Context, args []string) error {
	id, err := a.submission(ctx, args[0])
	if err != nil {
		return err
	}
	name, err := a.moderation.Approve(ctx, id)
	if errors.Is(err, moderation.ErrPartialApproval) {
		a.printf("%s was published but the submission is still pending.\n", name)
	}
	if err != nil {
		return err
	}
	a.printf("Approved and published %s\n", name)
	if err := a.catalog.Load(ctx); err != nil {
		a.log.Warn(ctx, "catalog reload failed", "error", err)
	}
	return nil
}

func (a *App) Reject(ctx context.Context, args []string) error {
	id, err := a.submission(ctx, args[0])
	if err != nil {
		return err
	}
	if err := a.moderation.Reject(ctx, id); err != nil {
		return err
	}
	a.println("Submission rejected.")
	return nil
}

func (a *App) Published(ctx context.Context, args []string) error {
	ts, err := a.moderation.Published(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}
	for _, t := range ts {
		mark := " "
		if a.moderation.CanDelete(t.Name.English) {
			mark = "x"
		}
		a.printf("%s %-8s %s (%s, %s)\n", mark, short(t.ID), t.Name.English, t.District, t.State)
	}
	return nil
}

func (a *App) Unpublish(ctx context.Context, args []string) error {
	ts, err := a.moderation.Published(ctx, "")
	if err != nil {
		return err
	}
	ids := make([]string, len(ts))
	for i, t := range ts {
		ids[i] = t.ID
	}
	id, err := byPrefix(ids, args[0])
	if err != nil {
		return err
	}
	for _, t := range ts {
		if t.ID != id {
			continue
		}
		if !a.moderation.CanDelete(t.Name.English) {
			return moderation.ErrProtectedTemple
		}
		if ok, err := a.confirmed(fmt.Sprintf("Delete temple %q? This cannot be undone.", t.Name.English)); err != nil || !ok {
			return err
		}
		if err := a.moderation.DeletePublished(ctx, t.ID, t.Name.English); err != nil {
			return err
		}
		a.printf("Deleted %s\n", t.Name.English)
	}
	return nil
}

const festivalUsage = "festival add <yyyy-mm-dd> <name> | festival delete <id> | festival clear"

func (a *App) Festival(ctx context.Context, args []string) error {
	switch {
	case args[0] == "add":
		if len(args) < 3 {
			return errors.New("usage: festival add <yyyy-mm-dd> <name>")
		}
		if _, err := time.Parse(time.DateOnly, args[1]); err != nil {
			return fmt.Errorf("bad date %q", args[1])
		}
		temple, err := a.ask("Temple (optional)")
		if err != nil {
			return err
		}
		return a.moderation.AddFestival(ctx, models.Festival{
			Name: strings.Join(args[2:], " "), Date: args[1], TempleName: temple,
		})
	case args[0] == "delete" && len(args) == 2:
		fs, err := a.moderation.UpcomingFestivals(ctx, "0000-01-01")
		if err != nil {
			return err
		}
		ids := make([]string, len(fs))
		for i, f := range fs {
			ids[i] = f.ID
		}
		id, err := byPrefix(ids, args[1])
		if err != nil {
			return err
		}
		if ok, err := a.confirmed("Delete this festival?"); err != nil || !ok {
			return err
		}
		return a.moderation.DeleteFestival(ctx, id)
	case args[0] == "clear":
		if ok, err := a.confirmed("Clear all upcoming festivals?"); err != nil || !ok {
			return err
		}
		if err := a.moderation.ClearUpcomingFestivals(ctx, a.today()); err != nil {
			return err
		}
		a.println("Upcoming festivals cleared.")
		return nil
	}
	return errors.New("usage: " + festivalUsage)
}

// Notify sends an in-app message to everyone or to one user.
func (a *App) Notify(ctx context.Context, args []string) error {
	to, email := moderation.AudienceAll, ""
	if args[0] != "all" {
		to, email = moderation.AudienceUser, args[0]
	}
	title, err := a.ask("Title")
	if err != nil {
		return err
	}
	body, err := getMultiline(a.reader, "Message", a.out)
	if err != nil {
		return err
	}
	if err := a.moderation.SendNotification(ctx, to, email, title, body); err != nil {
		return err
	}
	a.println("Notification sent.")
	return nil
}
