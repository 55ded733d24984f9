// Package events is a typed publish/subscribe bus for cross-component
// notifications. Components receive a *Bus explicitly instead of listening on
// a global channel, so subscriptions end with the component that made them.
package events

import (
	"log/slog"
	"reflect"
	"sync"
)

// Event payloads.
type (
	// RepoChanged is published when the repository on disk changed.
	RepoChanged struct {
		Source string
		Path   string
	}
	// GraphLoaded is published after a page of the commit graph was merged.
	GraphLoaded struct {
		Commits int
		HasMore bool
		Reset   bool
	}
	// GraphFailed is published when fetching a graph page failed.
	GraphFailed struct {
		Err error
	}
	// SelectionChanged is published when the selected commit or branch changed.
	SelectionChanged struct {
		SHA       string
		Branch    string
		Ambiguous bool
	}
	// ReviewStarted is published after the backend accepted a review.
	ReviewStarted struct {
		ID      string
		Branch  string
		BaseSHA string
	}
	// PreferenceChanged is published when a stored preference was written.
	PreferenceChanged struct {
		Key   string
		Value any
	}
)

type subscription struct {
	id int
	fn func(any)
}

// Bus delivers events synchronously, in subscription order, on the
// publisher's goroutine. It is safe for concurrent use.
type Bus struct {
	mu     sync.Mutex
	nextID int
	subs   map[reflect.Type][]subscription
}

func New() *Bus {
	return &Bus{subs: make(map[reflect.Type][]subscription)}
}

// Subscribe registers fn for events of type T and returns a function that
// removes the subscription. Calling the returned function twice is harmless.
func Subscribe[T any](b *Bus, fn func(T)) (unsubscribe func()) {
	if b == nil || fn == nil {
		return func() {}
	}
	key := reflect.TypeFor[T]()
	b.mu.Lock()
	if b.subs == nil {
		b.subs = make(map[reflect.Type][]subscription)
	}
	b.nextID++
	id := b.nextID
	b.subs[key] = append(b.subs[key], subscription{id: id, fn: func(v any) { fn(v.(T)) }})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(key, id) })
	}
}

// Publish delivers ev to every subscriber of T. Handlers added or removed
// during delivery take effect on the next Publish.
func Publish[T any](b *Bus, ev T) {
	if b == nil {
		return
	}
	key := reflect.TypeFor[T]()
	b.mu.Lock()
	subs := append([]subscription(nil), b.subs[key]...)
	b.mu.Unlock()
	if len(subs) == 0 {
		return
	}
	slog.Debug("event published", slog.String("type", key.String()), slog.Int("subscribers", len(subs)))
	for _, s := range subs {
		s.fn(ev)
	}
}

func (b *Bus) remove(key reflect.Type, id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[key]
	for i, s := range subs {
		if s.id == id {
			b.subs[key] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(b.subs[key]) == 0 {
		delete(b.subs, key)
	}
}
