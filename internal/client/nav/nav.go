// Package nav keeps the screen history of the client: a bounded stack of
// prior (screen, temple, category) entries with an auth gate on forward
// navigation and hardware back-button semantics.
package nav

import (
	"sync"

	"github.com/dmitrijs2005/templesanathan/internal/client/models"
)

type Screen string

const (
	Welcome   Screen = "welcome"
	Home      Screen = "home"
	Search    Screen = "search"
	Chat      Screen = "chat"
	Temple    Screen = "temple"
	Bookmarks Screen = "bookmarks"
	Settings  Screen = "settings"
	Submit    Screen = "submit"
	Auth      Screen = "auth"
	About     Screen = "about"
	Privacy   Screen = "privacy"
	Category  Screen = "category"
	Admin     Screen = "admin"
)

// MaxHistory bounds the back stack; the oldest entry is evicted first.
const MaxHistory = 20

var screens = map[Screen]struct{}{
	Welcome: {}, Home: {}, Search: {}, Chat: {}, Temple: {}, Bookmarks: {}, Settings: {},
	Submit: {}, Auth: {}, About: {}, Privacy: {}, Category: {}, Admin: {},
}

func ParseScreen(s string) (Screen, bool) {
	_, ok := screens[Screen(s)]
	return Screen(s), ok
}

type Direction int

const (
	Forward Direction = iota
	Backward
)

func (d Direction) String() string {
	if d == Backward {
		return "backward"
	}
	return "forward"
}

// Entry is an immutable snapshot of a prior screen.
type Entry struct {
	Screen   Screen
	Temple   *models.Temple
	Category string
}

type State struct {
	Current   Screen
	Temple    *models.Temple
	Category  string
	History   []Entry
	Direction Direction
}

func (s State) entry() Entry {
	return Entry{Screen: s.Current, Temple: s.Temple, Category: s.Category}
}

// Gate answers the questions the auth gate needs. The session context
// implements it.
type Gate interface {
	Authenticated() bool
	FirstLaunchDone() bool
	AdminOverride() bool
}

type Navigator struct {
	gate Gate

	mu        sync.Mutex
	state     State
	observers map[int]func(State)
	nextObs   int
}

func New(gate Gate, initial Screen) *Navigator {
	return &Navigator{
		gate:      gate,
		state:     State{Current: initial},
		observers: map[int]func(State){},
	}
}

func (n *Navigator) snapshot() State {
	s := n.state
	s.History = append([]Entry(nil), n.state.History...)
	return s
}

// Subscribe registers fn to be called with a snapshot after every change.
func (n *Navigator) Subscribe(fn func(State)) (unsubscribe func()) {
	n.mu.Lock()
	id := n.nextObs
	n.nextObs++
	n.observers[id] = fn
	n.mu.Unlock()
	return func() {
		n.mu.Lock()
		delete(n.observers, id)
		n.mu.Unlock()
	}
}

// commit runs under n.mu and returns the observers to notify once unlocked.
func (n *Navigator) commit() (State, []func(State)) {
	s := n.snapshot()
	fns := make([]func(State), 0, len(n.observers))
	for _, fn := range n.observers {
		fns = append(fns, fn)
	}
	return s, fns
}

func notify(s State, fns []func(State)) State {
	for _, fn := range fns {
		fn(s)
	}
	return s
}

// Resolve applies the auth gate to a requested screen.
func Resolve(g Gate, target Screen) Screen {
	if g == nil || g.Authenticated() || target == Auth || target == Welcome {
		return target
	}
	if target == Admin && g.AdminOverride() {
		return target
	}
	if g.FirstLaunchDone() {
		return Auth
	}
	return Welcome
}

// NavigateTo pushes the current state onto the history and moves to the
// gated target.
func (n *Navigator) NavigateTo(screen Screen, temple *models.Temple, category string) State {
	target := Resolve(n.gate, screen)

	n.mu.Lock()
	h := append(n.state.History, n.state.entry())
	if len(h) > MaxHistory {
		h = append([]Entry(nil), h[len(h)-MaxHistory:]...)
	}
	n.state = State{Current: target, Temple: temple, Category: category, History: h, Direction: Forward}
	s, fns := n.commit()
	n.mu.Unlock()

	return notify(s, fns)
}

// GoBack restores the most recent history entry, or home with no selection
// when the history is empty.
func (n *Navigator) GoBack() State {
	n.mu.Lock()
	h := n.state.History
	if len(h) == 0 {
		n.state = State{Current: Home, Direction: Backward}
	} else {
		last := h[len(h)-1]
		n.state = State{
			Current:   last.Screen,
			Temple:    last.Temple,
			Category:  last.Category,
			History:   h[:len(h)-1:len(h)-1],
			Direction: Backward,
		}
	}
	s, fns := n.commit()
	n.mu.Unlock()

	return notify(s, fns)
}

// Force replaces the current screen without touching the history. Only the
// session resolver uses it.
func (n *Navigator) Force(screen Screen) State {
	n.mu.Lock()
	n.state.Current = screen
	n.state.Temple = nil
	n.state.Category = ""
	s, fns := n.commit()
	n.mu.Unlock()

	return notify(s, fns)
}

// Reset sets the screen and clears the history.
func (n *Navigator) Reset(screen Screen) State {
	n.mu.Lock()
	n.state = State{Current: screen}
	s, fns := n.commit()
	n.mu.Unlock()

	return notify(s, fns)
}

func (n *Navigator) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.snapshot()
}

func (n *Navigator) Current() Screen {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state.Current
}

func (n *Navigator) Direction() Direction {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state.Direction
}
