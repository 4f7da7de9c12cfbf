// Package memory is an in-process backend used by the demo mode and by
// tests of the client core. Rows are kept as decoded JSON objects so that
// filters behave like their PostgREST counterparts.
package memory

import (
	"context"

	"github.com/dmitrijs2005/templesanathan/internal/client/backend"
)

// New wires all collaborators together: writes to Tables produce row
// changes on Realtime channels.
func New(adminEmails ...string) (*backend.Backend, *Tables) {
	hub := NewHub()
	tables := NewTables(hub)
	return &backend.Backend{
		Auth:     NewAuth(adminEmails...),
		Tables:   tables,
		Realtime: hub,
		Storage:  NewStorage("avatars"),
		Pinger:   pinger{},
	}, tables
}

type pinger struct{}

func (pinger) Ping(ctx context.Context) error { return ctx.Err() }
