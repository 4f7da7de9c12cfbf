package cli

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/dmitrijs2005/templesanathan/internal/client/models"
	"github.com/dmitrijs2005/templesanathan/internal/client/nav"
)

var (
	errSignInRequired = errors.New("please sign in first")
	errNoMatch        = errors.New("no match")
	errAmbiguous      = errors.New("more than one match, type more of the id")
)

type command struct {
	usage string
	// args is the minimum number of arguments.
	args int
	run  func(ctx context.Context, args []string) error
}

func (a *App) commandTable() map[string]command {
	return map[string]command{
		"home":      {usage: "home", run: a.Home},
		"search":    {usage: "search <query>", args: 1, run: a.Search},
		"temple":    {usage: "temple <id>", args: 1, run: a.ShowTemple},
		"category":  {usage: "category [name]", run: a.Category},
		"bookmarks": {usage: "bookmarks", run: a.Bookmarks},
		"bookmark":  {usage: "bookmark <id>", args: 1, run: a.ToggleBookmark},
		"back":      {usage: "back", run: a.Back},
		"lang":      {usage: "lang", run: a.ToggleLanguage},
		"about":     {usage: "about", run: a.About},
		"privacy":   {usage: "privacy", run: a.Privacy},
		"festivals": {usage: "festivals", run: a.Festivals},

		"chat":   {usage: "chat", run: a.OpenChat},
		"say":    {usage: "say <text>", args: 1, run: a.Say},
		"edit":   {usage: "edit <id> <text>", args: 2, run: a.EditMessage},
		"delete": {usage: "delete <id>", args: 1, run: a.DeleteMessage},
		"retry":  {usage: "retry <id>", args: 1, run: a.RetryMessage},
		"typing": {usage: "typing", run: a.Typing},
		"who":    {usage: "who", run: a.Who},
		"inbox":  {usage: "inbox [dismiss <n>]", run: a.Inbox},

		"submit":    {usage: "submit", run: a.Submit},
		"admin":     {usage: "admin [all|pending|approved|rejected]", run: a.Admin},
		"approve":   {usage: "approve <id>", args: 1, run: a.Approve},
		"reject":    {usage: "reject <id>", args: 1, run: a.Reject},
		"published": {usage: "published [query]", run: a.Published},
		"unpublish": {usage: "unpublish <id>", args: 1, run: a.Unpublish},
		"festival":  {usage: festivalUsage, args: 1, run: a.Festival},
		"notify":    {usage: "notify <all|email>", args: 1, run: a.Notify},

		"signin":   {usage: "signin", run: a.SignIn},
		"signup":   {usage: "signup", run: a.SignUp},
		"signout":  {usage: "signout", run: a.SignOut},
		"settings": {usage: "settings [username <name> | name <display name> | avatar <file> | push <endpoint> <p256dh> <auth> | unpush <endpoint>]", run: a.Settings},
		"update":   {usage: "update [skip]", run: a.Update},
	}
}

func (a *App) dispatch(ctx context.Context, cmd string, args []string) (bool, error) {
	c, ok := a.commands[cmd]
	if !ok {
		return false, nil
	}
	if len(args) < c.args {
		return true, fmt.Errorf("usage: %s", c.usage)
	}
	return true, c.run(ctx, args)
}

func (a *App) help() []string {
	out := make([]string, 0, len(a.commands)+2)
	for _, c := range a.commands {
		out = append(out, c.usage)
	}
	slices.Sort(out)
	return append(out, "help", "exit")
}

func (a *App) getStatus() string {
	s := string(a.nav.Current())
	if id := a.sess.Identity(); id != nil {
		s += " " + id.Email
	}
	return fmt.Sprintf("(%s %s)", s, a.mode())
}

func (a *App) lang() models.Language {
	return a.prefs.Language()
}

// navigate moves to target and reports the gate's redirect, if any.
func (a *App) navigate(target nav.Screen, t *models.Temple, category string) error {
	st := a.nav.NavigateTo(target, t, category)
	if st.Current == target {
		return nil
	}
	if st.Current == nav.Welcome {
		a.println("Welcome! Type 'signup' to create an account or 'signin' to continue.")
	}
	return errSignInRequired
}

// byPrefix finds the single id starting with prefix.
func byPrefix(ids []string, prefix string) (string, error) {
	var found []string
	for _, id := range ids {
		if id == prefix {
			return id, nil
		}
		if strings.HasPrefix(id, prefix) {
			found = append(found, id)
		}
	}
	switch len(found) {
	case 0:
		return "", fmt.Errorf("%w for %q", errNoMatch, prefix)
	case 1:
		return found[0], nil
	}
	return "", errAmbiguous
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func (a *App) printTemples(ts []models.Temple) {
	if len(ts) == 0 {
		a.println("No temples found.")
		return
	}
	lang := a.lang()
	for _, t := range ts {
		mark := " "
		if a.catalog.IsBookmarked(t.ID) {
			mark = "*"
		}
		a.printf("%s %-8s %s (%s, %s)\n", mark, short(t.ID), t.Name.In(lang), t.District, t.State)
	}
}

func (a *App) Home(ctx context.Context, _ []string) error {
	if err := a.navigate(nav.Home, nil, ""); err != nil {
		return err
	}
	a.printTemples(a.catalog.All())
	return nil
}

func (a *App) Search(ctx context.Context, args []string) error {
	if err := a.navigate(nav.Search, nil, ""); err != nil {
		return err
	}
	a.printTemples(a.catalog.Search(strings.Join(args, " ")))
	return nil
}

func (a *App) temple(prefix string) (models.Temple, error) {
	all := a.catalog.All()
	ids := make([]string, len(all))
	for i, t := range all {
		ids[i] = t.ID
	}
	id, err := byPrefix(ids, prefix)
	if err != nil {
		return models.Temple{}, err
	}
	t, _ := a.catalog.Get(id)
	return t, nil
}

func (a *App) ShowTemple(ctx context.Context, args []string) error {
	t, err := a.temple(args[0])
	if err != nil {
		return err
	}
	if err := a.navigate(nav.Temple, &t, ""); err != nil {
		return err
	}
	lang := a.lang()
	a.printf("%s\n", t.Name.In(lang))
	if d := t.Deity.In(lang); d != "" {
		a.printf("Deity:    %s\n", d)
	}
	a.printf("Location: %s, %s\n", t.District, t.State)
	if t.Timings.Morning != "" || t.Timings.Evening != "" {
		a.printf("Timings:  %s / %s\n", t.Timings.Morning, t.Timings.Evening)
	}
	if len(t.Features) > 0 {
		a.printf("Features: %s\n", strings.Join(t.Features, ", "))
	}
	if d := t.Description.In(lang); d != "" {
		a.printf("\n%s\n", d)
	}
	return nil
}

func (a *App) Category(ctx context.Context, args []string) error {
	if len(args) == 0 {
		if err := a.navigate(nav.Search, nil, ""); err != nil {
			return err
		}
		for _, c := range a.catalog.Categories() {
			a.println(" ", c)
		}
		return nil
	}
	name := strings.Join(args, " ")
	if err := a.navigate(nav.Category, nil, name); err != nil {
		return err
	}
	a.printTemples(a.catalog.ByCategory(name))
	return nil
}

func (a *App) Bookmarks(ctx context.Context, _ []string) error {
	if err := a.navigate(nav.Bookmarks, nil, ""); err != nil {
		return err
	}
	a.printTemples(a.catalog.Bookmarked())
	return nil
}

func (a *App) ToggleBookmark(ctx context.Context, args []string) error {
	t, err := a.temple(args[0])
	if err != nil {
		return err
	}
	on, err := a.catalog.ToggleBookmark(ctx, t.ID)
	if err != nil {
		return err
	}
	if on {
		a.printf("Bookmarked %s\n", t.Name.In(a.lang()))
	} else {
		a.printf("Removed bookmark %s\n", t.Name.In(a.lang()))
	}
	return nil
}

// Back behaves like the hardware back button.
func (a *App) Back(ctx context.Context, _ []string) error {
	if !a.back.Press() {
		return nil
	}
	if ctx.Err() == nil {
		a.printf("<- %s\n", a.nav.Current())
	}
	return nil
}

func (a *App) ToggleLanguage(ctx context.Context, _ []string) error {
	next := models.Telugu
	if a.lang() == models.Telugu {
		next = models.English
	}
	if err := a.prefs.SetLanguage(ctx, next); err != nil {
		return err
	}
	a.printf("Language: %s\n", next)
	return nil
}

func (a *App) About(ctx context.Context, _ []string) error {
	if err := a.navigate(nav.About, nil, ""); err != nil {
		return err
	}
	a.printf("Temple Sanathan %s\nA guide to the temples of Andhra Pradesh and Telangana.\n", a.config.AppVersion)
	return nil
}

func (a *App) Privacy(ctx context.Context, _ []string) error {
	if err := a.navigate(nav.Privacy, nil, ""); err != nil {
		return err
	}
	a.println("Your email is used only to sign you in. Bookmarks and settings stay on this device.")
	return nil
}

func (a *App) Festivals(ctx context.Context, _ []string) error {
	fs, err := a.moderation.UpcomingFestivals(ctx, a.today())
	if err != nil {
		return err
	}
	if len(fs) == 0 {
		a.println("No upcoming festivals.")
	}
	for _, f := range fs {
		a.printf("%-8s %s  %s", short(f.ID), f.Date, f.Name)
		if f.TempleName != "" {
			a.printf(" @ %s", f.TempleName)
		}
		a.println()
	}
	return nil
}
