package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dmitrijs2005/templesanathan/internal/client/backend"
	"github.com/dmitrijs2005/templesanathan/internal/client/catalog"
	"github.com/dmitrijs2005/templesanathan/internal/client/chat"
	"github.com/dmitrijs2005/templesanathan/internal/client/config"
	"github.com/dmitrijs2005/templesanathan/internal/client/moderation"
	"github.com/dmitrijs2005/templesanathan/internal/client/nav"
	"github.com/dmitrijs2005/templesanathan/internal/client/notify"
	"github.com/dmitrijs2005/templesanathan/internal/client/prefs"
	"github.com/dmitrijs2005/templesanathan/internal/client/services"
	"github.com/dmitrijs2005/templesanathan/internal/client/session"
	"github.com/dmitrijs2005/templesanathan/internal/client/updates"
	"github.com/dmitrijs2005/templesanathan/internal/common"
	"github.com/dmitrijs2005/templesanathan/internal/filex"
	"github.com/dmitrijs2005/templesanathan/internal/logging"
	"golang.org/x/sync/errgroup"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type App struct {
	config *config.Config
	log    logging.Logger
	out    io.Writer
	reader *bufio.Reader

	prefs   *prefs.Store
	backend *backend.Backend
	closers []func() error
	authKey string

	sess     *session.Context
	nav      *nav.Navigator
	back     *nav.BackButton
	resolver *session.Resolver

	catalog    *catalog.Catalog
	room       *chat.Room
	moderation *moderation.Service
	inbox      *notify.Inbox
	push       *notify.Subscriptions
	auth       services.AuthService
	profiles   *services.ProfileService
	updates    *updates.Checker

	commands map[string]command
	exit     context.CancelFunc
	now      func() time.Time
}

// NewApp opens the local store, picks a backend from the configuration and
// wires the client core around it.
func NewApp(ctx context.Context, c *config.Config, log logging.Logger) (*App, error) {
	if err := filex.EnsureParentDir(c.LocalDBPath); err != nil {
		return nil, err
	}
	store, db, err := prefs.OpenSQLite(ctx, c.LocalDBPath)
	if err != nil {
		log.Error(ctx, "error initializing local database", "path", c.LocalDBPath, "error", err)
		return nil, err
	}

	a := newApp(c, log, store, os.Stdin, os.Stdout)
	a.closers = append(a.closers, db.Close)

	b, closers, err := buildBackend(ctx, c, store, a.sess, log)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.closers = append(a.closers, closers...)
	a.attach(b)
	return a, nil
}

func newApp(c *config.Config, log logging.Logger, store *prefs.Store, in io.Reader, out io.Writer) *App {
	a := &App{
		config:  c,
		log:     log,
		out:     out,
		reader:  bufio.NewReader(in),
		prefs:   store,
		authKey: common.AuthStorageKey(c.BackendURL),
		sess:    session.NewContext(store),
		back:    &nav.BackButton{},
		now:     time.Now,
	}
	a.nav = nav.New(a.sess, nav.Welcome)
	a.commands = a.commandTable()
	return a
}

// attach builds the feature services on top of b.
func (a *App) attach(b *backend.Backend) {
	a.backend = b
	a.resolver = session.NewResolver(a.sess, b, a.nav, a.prefs, a.authKey, a.log)

	local, err := catalog.Bundled()
	if err != nil {
		a.log.Error(context.Background(), "bundled catalog unreadable", "error", err)
	}
	a.catalog = catalog.New(b.Tables, b.Realtime, a.prefs, local, a.log)
	a.room = chat.NewRoom(b.Tables, b.Realtime, a.sess, a.log)
	a.moderation = moderation.NewService(b.Tables, b.Realtime, a.sess, a.log)
	a.inbox = notify.NewInbox(b.Realtime, a.log)
	a.push = notify.NewSubscriptions(b.Tables)
	a.auth = services.NewAuthService(b, a.prefs, a.authKey)
	a.profiles = services.NewProfileService(b.Tables, b.Storage)
	a.updates = updates.NewChecker(b.Tables, a.prefs, a.config.AppVersion)

	a.nav.Subscribe(func(s nav.State) {
		if s.Current != nav.Chat && a.room.Mounted() {
			a.room.Unmount(context.Background())
		}
	})
	a.inbox.Subscribe(func() {
		items := a.inbox.Items()
		if len(items) > 0 {
			last := items[len(items)-1]
			a.printf("\n[%s] %s\n", last.Title, last.Message)
		}
	})
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

func (a *App) today() string {
	return a.now().Format(time.DateOnly)
}

func (a *App) println(args ...any) {
	fmt.Fprintln(a.out, args...)
}

func (a *App) mode() Mode {
	if a.sess.Offline() {
		return ModeOffline
	}
	return ModeOnline
}

func (a *App) onConnectivity(offline bool) {
	mode := ModeOnline
	if offline {
		mode = ModeOffline
	}
	a.log.Info(context.Background(), "connectivity changed", "mode", mode)
	a.printf("\nSwitched to %s mode\n", mode)
}

func (a *App) onAuthEvent(ctx context.Context, ev backend.AuthEvent, s *backend.Session) {
	email := ""
	if s != nil {
		email = s.User.Email
	}
	if err := a.inbox.SetUser(ctx, email); err != nil {
		a.log.Warn(ctx, "user notifications unavailable", "error", err)
	}
	if ev != backend.EventSignedIn || s == nil {
		return
	}
	if _, err := a.profiles.EnsureProfile(ctx, s.User); err != nil {
		a.log.Warn(ctx, "profile not created", "error", err)
	}
	if s.User.IsAdmin() {
		if err := a.moderation.LoadApprovedNames(ctx); err != nil {
			a.log.Warn(ctx, "approved names not loaded", "error", err)
		}
	}
}

// start resolves the initial screen and loads what every screen needs.
// Failures are logged; the app keeps working on bundled data.
func (a *App) start(ctx context.Context) {
	screen := a.resolver.Init(ctx)
	a.log.Info(ctx, "session resolved", "screen", screen, "offline", a.sess.Offline())

	if err := a.catalog.Load(ctx); err != nil {
		a.log.Warn(ctx, "remote temples unavailable", "error", err)
	}
	if err := a.catalog.Watch(ctx); err != nil {
		a.log.Warn(ctx, "temple updates unavailable", "error", err)
	}
	if err := a.inbox.Start(ctx); err != nil {
		a.log.Warn(ctx, "notifications unavailable", "error", err)
	}
	if id := a.sess.Identity(); id != nil {
		a.onAuthEvent(ctx, backend.EventSignedIn, &backend.Session{User: *id})
	}
	if u, err := a.updates.Check(ctx); err == nil && u != nil {
		a.printf("Update %s available. Type 'update' for details.\n", u.Version)
	}
}

// Run starts the connectivity watcher and the REPL. It returns when the user
// exits or ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	a.exit = cancel
	defer a.Close()

	a.println("Welcome to Temple Sanathan (type 'help' for commands)")
	a.start(ctx)
	defer a.resolver.Teardown()

	unbind := a.nav.BindBackButton(a.back, cancel)
	defer unbind()
	unsub := a.backend.Auth.OnAuthStateChange(func(ev backend.AuthEvent, s *backend.Session) {
		a.onAuthEvent(context.WithoutCancel(ctx), ev, s)
	})
	defer unsub()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.resolver.Watch(gctx, a.config.OnlineCheckInterval, a.onConnectivity)
	})
	g.Go(func() error {
		defer cancel()
		runREPL(gctx, a, a.getStatus, a.reader)
		return nil
	})
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close releases the backend connections and the local database.
func (a *App) Close() error {
	ctx := context.Background()
	if a.room != nil && a.room.Mounted() {
		a.room.Unmount(ctx)
	}
	if a.inbox != nil {
		_ = a.inbox.Stop(ctx)
	}
	if a.catalog != nil {
		_ = a.catalog.Unwatch(ctx)
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
