// Package notify carries the payload-less "library changed" signal from the
// store to whatever presents the library.
package notify

import (
	"log/slog"
	"sync"
)

// Notifier is told once after every committed change.
type Notifier interface {
	LibraryChanged()
}

// Func adapts a plain function to Notifier.
type Func func()

// LibraryChanged calls f.
func (f Func) LibraryChanged() { f() }

// Discard ignores every signal.
var Discard Notifier = Func(func() {})

// Broadcaster fans the signal out to subscribers. Signals coalesce: a
// subscriber that has not drained its channel sees one pending signal.
type Broadcaster struct {
	mu   sync.Mutex
	next int
	subs map[int]chan struct{}
}

// NewBroadcaster creates an empty Broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[int]chan struct{})}
}

// Subscribe returns a channel receiving signals and a function that
// unsubscribes and closes it.
func (b *Broadcaster) Subscribe() (<-chan struct{}, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan struct{}, 1)
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs, id)
			close(ch)
		})
	}
}

// LibraryChanged signals every subscriber without blocking.
func (b *Broadcaster) LibraryChanged() {
	b.mu.Lock()
	defer b.mu.Unlock()

	slog.Debug("Library changed", "subscribers", len(b.subs))
	for _, ch := range b.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
