package cli

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/templesanathan/internal/client/backend"
	"github.com/dmitrijs2005/templesanathan/internal/client/backend/gotrue"
	"github.com/dmitrijs2005/templesanathan/internal/client/backend/memory"
	"github.com/dmitrijs2005/templesanathan/internal/client/backend/objstore"
	"github.com/dmitrijs2005/templesanathan/internal/client/backend/pgtables"
	"github.com/dmitrijs2005/templesanathan/internal/client/backend/realtime"
	"github.com/dmitrijs2005/templesanathan/internal/client/backend/rest"
	"github.com/dmitrijs2005/templesanathan/internal/client/config"
	"github.com/dmitrijs2005/templesanathan/internal/client/session"
	"github.com/dmitrijs2005/templesanathan/internal/logging"
	"github.com/dmitrijs2005/templesanathan/internal/netx"
)

// DemoAdminEmail gets the admin role in demo mode.
const DemoAdminEmail = "admin@templesanathan.app"

// openPostgres is a seam for tests.
var openPostgres = func(ctx context.Context, dsn string) (*pgtables.Tables, func() error, backend.Pinger, error) {
	db, err := pgtables.Open(ctx, dsn)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := pgtables.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, nil, fmt.Errorf("migrate: %w", err)
	}
	return pgtables.New(db), db.Close, pgtables.Pinger{DB: db}, nil
}

// buildBackend picks the collaborators for c:
//
//	-demo                in-process memory backend
//	URL + anon key       hosted auth, REST tables and realtime
//	DSN                  direct Postgres tables (overrides REST tables)
//	storage credentials  S3-compatible avatar storage
//
// Anything left unset fails with common.ErrNotConfigured.
func buildBackend(ctx context.Context, c *config.Config, store gotrue.SessionStore, sess *session.Context, log logging.Logger) (*backend.Backend, []func() error, error) {
	if c.Demo {
		b, _ := memory.New(DemoAdminEmail)
		log.Info(ctx, "using demo backend", "admin", DemoAdminEmail)
		return b, nil, nil
	}

	b := backend.NotConfigured()
	if !c.Configured() {
		log.Warn(ctx, "backend not configured")
		return b, nil, nil
	}

	var closers []func() error
	// Auth keeps probing while offline so the watcher can notice recovery.
	probe := netx.NewClient(c.RequestTimeout)
	guarded := netx.NewClient(c.RequestTimeout).WithOfflineCheck(sess.Offline)

	if c.BackendURL != "" && c.BackendAnonKey != "" {
		auth := gotrue.NewClient(ctx, c.BackendURL, c.BackendAnonKey, probe, store, log.With("component", "auth"))
		rt := realtime.NewClient(c.BackendURL, c.BackendAnonKey, auth, log.With("component", "realtime"))
		b.Auth = auth
		b.Pinger = auth
		b.Tables = rest.NewClient(c.BackendURL, c.BackendAnonKey, guarded, auth)
		b.Realtime = rt
		closers = append(closers, rt.Close)
	}

	if c.DatabaseDSN != "" {
		tables, closeDB, pinger, err := openPostgres(ctx, c.DatabaseDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open database: %w", err)
		}
		b.Tables = tables
		if c.BackendURL == "" {
			b.Pinger = pinger
		}
		closers = append(closers, closeDB)
	}

	if c.StorageConfigured() {
		b.Storage = objstore.New(objstore.Config{
			Endpoint:      c.StorageEndpoint,
			Region:        c.StorageRegion,
			AccessKey:     c.StorageAccessKey,
			SecretKey:     c.StorageSecretKey,
			Bucket:        c.StorageBucket,
			PublicBaseURL: c.StoragePublicBaseURL,
		}, guarded)
	}
	return b, closers, nil
}
