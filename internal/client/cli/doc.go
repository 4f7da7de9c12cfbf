// Package cli provides the interactive Temple Sanathan terminal client.
//
// It wires configuration, the local preference store, the backend
// collaborators and the client core (session, navigation, catalog, chat,
// moderation), then runs a REPL next to a connectivity watcher. Typical
// flow: resolve the session, load the catalog, and execute user commands.
//
// Key features:
//   - Browse, search and bookmark temples
//   - Devotion chat with optimistic sends, edits and deletes
//   - Temple submissions and the admin review console
//   - Sign in / sign up / sign out, profile settings, update checks
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
// See App, buildBackend and runREPL for details.
package cli
