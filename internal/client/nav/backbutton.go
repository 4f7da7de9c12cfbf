package nav

import "sync"

// BackButtonSource delivers hardware back presses. AddListener returns a
// function that removes the listener.
type BackButtonSource interface {
	AddListener(fn func()) (remove func())
}

type backKey struct {
	screen  Screen
	history int
}

// BindBackButton keeps a back handler registered on src. The handler is
// rebuilt whenever the current screen or the history length changes, so it
// never acts on a stale view of the stack: on home or with an empty history
// it calls exit, otherwise it goes back.
func (n *Navigator) BindBackButton(src BackButtonSource, exit func()) (unbind func()) {
	var (
		mu     sync.Mutex
		key    backKey
		remove func()
		done   bool
	)

	register := func(s State) {
		k := backKey{screen: s.Current, history: len(s.History)}
		mu.Lock()
		defer mu.Unlock()
		if done || (remove != nil && k == key) {
			return
		}
		if remove != nil {
			remove()
		}
		key = k
		remove = src.AddListener(func() {
			if k.screen == Home || k.history == 0 {
				exit()
				return
			}
			n.GoBack()
		})
	}

	register(n.State())
	unsubscribe := n.Subscribe(register)

	return func() {
		unsubscribe()
		mu.Lock()
		done = true
		if remove != nil {
			remove()
			remove = nil
		}
		mu.Unlock()
	}
}

// BackButton is a simple in-process BackButtonSource. Press invokes the
// most recently added listener.
type BackButton struct {
	mu        sync.Mutex
	listeners []*func()
}

func (b *BackButton) AddListener(fn func()) func() {
	p := &fn
	b.mu.Lock()
	b.listeners = append(b.listeners, p)
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, l := range b.listeners {
			if l == p {
				b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
				return
			}
		}
	}
}

// Press reports false when no listener is registered.
func (b *BackButton) Press() bool {
	b.mu.Lock()
	if len(b.listeners) == 0 {
		b.mu.Unlock()
		return false
	}
	fn := *b.listeners[len(b.listeners)-1]
	b.mu.Unlock()
	fn()
	return true
}

func (b *BackButton) Listeners() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners)
}
