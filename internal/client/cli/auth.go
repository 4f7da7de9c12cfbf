package cli

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/templesanathan/internal/client/models"
	"github.com/dmitrijs2005/templesanathan/internal/client/nav"
	"github.com/dmitrijs2005/templesanathan/internal/client/services"
	"github.com/dmitrijs2005/templesanathan/internal/common"
)

// getPassword is an indirection used to facilitate testing.
var getPassword = GetPassword

func (a *App) credentials() (string, []byte, error) {
	email, err := a.ask("Enter email")
	if err != nil {
		return "", nil, err
	}
	password, err := getPassword(a.out)
	if err != nil {
		return "", nil, err
	}
	return email, password, nil
}

// SignIn prompts for credentials. The screen change follows the auth
// event the backend emits.
func (a *App) SignIn(ctx context.Context, _ []string) error {
	a.nav.NavigateTo(nav.Auth, nil, "")
	email, password, err := a.credentials()
	if err != nil {
		return err
	}
	defer clear(password)

	id, err := a.auth.SignIn(ctx, email, password)
	if err != nil {
		if errors.Is(err, common.ErrUnauthorized) {
			return errors.New("invalid email or password")
		}
		return err
	}
	a.nav.Reset(nav.Home)
	a.printf("Signed in as %s\n", id.Email)
	return nil
}

// SignUp creates an account and signs in when the backend allows it.
func (a *App) SignUp(ctx context.Context, _ []string) error {
	a.nav.NavigateTo(nav.Auth, nil, "")
	email, password, err := a.credentials()
	if err != nil {
		return err
	}
	defer clear(password)

	id, err := a.auth.SignUp(ctx, email, password)
	if err != nil {
		return err
	}
	if id == nil {
		a.println("Check your email to confirm the account, then sign in.")
		return nil
	}
	a.nav.Reset(nav.Home)
	a.printf("Welcome, %s!\n", id.Email)
	return nil
}

func (a *App) SignOut(ctx context.Context, _ []string) error {
	if err := a.auth.SignOut(ctx); err != nil && !errors.Is(err, common.ErrNotConfigured) {
		return err
	}
	a.println("Signed out.")
	return nil
}

// Settings shows the profile or changes one setting.
func (a *App) Settings(ctx context.Context, args []string) error {
	if err := a.navigate(nav.Settings, nil, ""); err != nil {
		return err
	}
	id := a.sess.Identity()
	if id == nil {
		return errSignInRequired
	}
	if len(args) == 0 {
		p, err := a.profiles.Get(ctx, id.ID)
		if err != nil {
			a.log.Warn(ctx, "profile unavailable", "error", err)
		}
		a.printf("Email:    %s\n", id.Email)
		if p != nil {
			a.printf("Username: %s\nName:     %s\n", p.Username, p.DisplayName)
			if p.AvatarURL != "" {
				a.printf("Avatar:   %s\n", p.AvatarURL)
			}
		}
		a.printf("Language: %s\nVersion:  %s\n", a.lang(), a.config.AppVersion)
		return nil
	}

	value := strings.Join(args[1:], " ")
	var patch services.ProfilePatch
	switch {
	case args[0] == "username" && value != "":
		patch.Username = &value
	case args[0] == "name" && value != "":
		patch.DisplayName = &value
	case args[0] == "avatar" && value != "":
		f, err := os.Open(value)
		if err != nil {
			return err
		}
		defer f.Close()
		u, err := a.profiles.UploadAvatar(ctx, id.ID, filepath.Base(value), f)
		if err != nil {
			return err
		}
		patch.AvatarURL = &u
	case args[0] == "push" && len(args) == 4:
		return a.push.Save(ctx, models.PushSubscription{Endpoint: args[1], P256DH: args[2], Auth: args[3], Email: id.Email})
	case args[0] == "unpush" && len(args) == 2:
		return a.push.Remove(ctx, args[1])
	default:
		return errors.New("usage: " + a.commands["settings"].usage)
	}
	if _, err := a.profiles.UpdateProfile(ctx, id.ID, patch); err != nil {
		return err
	}
	a.println("Saved.")
	return nil
}

func (a *App) Update(ctx context.Context, args []string) error {
	u, err := a.updates.Check(ctx)
	if err != nil {
		return err
	}
	if u == nil {
		a.printf("You are on the latest version (%s).\n", a.config.AppVersion)
		return nil
	}
	if len(args) > 0 && args[0] == "skip" {
		if u.Mandatory {
			return errors.New("this update is required")
		}
		return a.updates.Skip(ctx, u.Version)
	}
	a.printf("Version %s is available", u.Version)
	if u.Title != "" {
		a.printf(": %s", u.Title)
	}
	a.println()
	if u.Notes != "" {
		a.println(u.Notes)
	}
	if u.DownloadURL != "" {
		a.println("Download:", u.DownloadURL)
	}
	if u.Mandatory {
		a.println("This update is required.")
	}
	return nil
}
