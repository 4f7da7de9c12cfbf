package chat

import (
	"fmt"
	"time"
)

const (
	TypingTTL     = 2500 * time.Millisecond
	SweepInterval = time.Second
)

type TypingEntry struct {
	Name      string
	ExpiresAt time.Time
}

// Typing tracks who is typing. A ping moves the author to the back of the
// list, so the head is the longest-running typist. Not safe for concurrent
// use; the Room guards it.
type Typing struct {
	entries []TypingEntry
}

func (t *Typing) Ping(name string, now time.Time) {
	if name == "" {
		name = "User"
	}
	t.drop(name)
	t.entries = append(t.entries, TypingEntry{Name: name, ExpiresAt: now.Add(TypingTTL)})
}

func (t *Typing) drop(name string) {
	out := t.entries[:0]
	for _, e := range t.entries {
		if e.Name != name {
			out = append(out, e)
		}
	}
	t.entries = out
}

// Sweep removes expired entries and reports whether any were removed.
func (t *Typing) Sweep(now time.Time) bool {
	n := len(t.entries)
	out := t.entries[:0]
	for _, e := range t.entries {
		if e.ExpiresAt.After(now) {
			out = append(out, e)
		}
	}
	t.entries = out
	return len(out) != n
}

func (t *Typing) Entries() []TypingEntry {
	return append([]TypingEntry(nil), t.entries...)
}

func (t *Typing) Reset() { t.entries = nil }

// Indicator renders the entries as of the last sweep, e.g. "ravi +2 is typing…".
func (t *Typing) Indicator() string {
	switch len(t.entries) {
	case 0:
		return ""
	case 1:
		return t.entries[0].Name + " is typing…"
	}
	return fmt.Sprintf("%s +%d is typing…", t.entries[0].Name, len(t.entries)-1)
}
