package store

import (
	"sync"

	"github.com/roach88/uipulse/internal/keypath"
	"github.com/roach88/uipulse/internal/value"
)

// changeBuffer is the per-subscriber channel depth. Slow subscribers drop
// changes rather than stall the op queue.
const changeBuffer = 16

// Subscription tracks the resolved value at one key path. One subscription
// object exists per distinct path per store; Watch returns the cached one.
type Subscription struct {
	path keypath.KeyPath

	mu      sync.Mutex
	current value.Value
	present bool
	updates chan value.Value
}

// Path returns the canonical watched path.
func (sub *Subscription) Path() string { return sub.path.String() }

// Current returns the last resolved value (nil when absent).
func (sub *Subscription) Current() (value.Value, bool) {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	return sub.current, sub.present
}

// Updates delivers the resolved value after each affecting change.
// Coalescing: an unread update is replaced by the newer one.
func (sub *Subscription) Updates() <-chan value.Value {
	return sub.updates
}

func (sub *Subscription) push(v value.Value, present bool) {
	sub.mu.Lock()
	sub.current = v
	sub.present = present
	sub.mu.Unlock()

	// Coalesce: drop the stale pending update, then deliver.
	select {
	case <-sub.updates:
	default:
	}
	if present {
		sub.updates <- v
	} else {
		sub.updates <- value.Null{}
	}
}

// subscribers holds broadcast and per-path subscription state, embedded in
// Store.
type subscribers struct {
	subMu   sync.Mutex
	subs    []chan Change
	watches map[string]*Subscription
	closed  bool
}

func (sb *subscribers) init() {
	sb.watches = make(map[string]*Subscription)
}

// Changes returns a broadcast channel receiving every Change this store
// emits. The channel closes with the store.
func (s *Store) Changes() <-chan Change {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	ch := make(chan Change, changeBuffer)
	if s.closed {
		close(ch)
		return ch
	}
	s.subs = append(s.subs, ch)
	return ch
}

// Watch returns the subscription for path, creating and priming it on first
// use.
func (s *Store) Watch(path string) (*Subscription, error) {
	p, err := keypath.Parse(path)
	if err != nil {
		return nil, err
	}
	canonical := p.String()

	s.subMu.Lock()
	if sub, ok := s.watches[canonical]; ok {
		s.subMu.Unlock()
		return sub, nil
	}
	sub := &Subscription{path: p, updates: make(chan value.Value, 1)}
	s.watches[canonical] = sub
	s.subMu.Unlock()

	// Prime with the current value through the op queue.
	err = s.do(func() error {
		v, ok, gerr := s.be.Get(p)
		if gerr != nil {
			return gerr
		}
		sub.mu.Lock()
		sub.current = v
		sub.present = ok
		sub.mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// emit broadcasts a change and refreshes affected subscriptions. Runs on
// the op queue, so backend reads here observe the post-change state.
func (s *Store) emit(ch Change) {
	s.subMu.Lock()
	subs := make([]chan Change, len(s.subs))
	copy(subs, s.subs)
	watches := make([]*Subscription, 0, len(s.watches))
	for _, sub := range s.watches {
		watches = append(watches, sub)
	}
	s.subMu.Unlock()

	for _, c := range subs {
		select {
		case c <- ch:
		default:
			s.logger.Warn("subscriber lagging, change dropped",
				"scope", s.scope.String(), "rev", ch.Rev)
		}
	}

	for _, sub := range watches {
		if !changeAffects(ch, sub.path) {
			continue
		}
		v, ok, err := s.be.Get(sub.path)
		if err != nil {
			s.ioFault("watch", err)
			continue
		}
		sub.push(v, ok)
	}
}

// changeAffects reports whether any patch in ch touches the watched path:
// a patch above the path changes what it resolves to, a patch below changes
// the subtree it resolves.
func changeAffects(ch Change, watched keypath.KeyPath) bool {
	for _, patch := range ch.Patches {
		p, err := keypath.Parse(patch.Path)
		if err != nil {
			continue
		}
		if watched.HasPrefix(p) || p.HasPrefix(watched) {
			return true
		}
	}
	return false
}

func (sb *subscribers) closeAll() {
	sb.subMu.Lock()
	defer sb.subMu.Unlock()
	if sb.closed {
		return
	}
	sb.closed = true
	for _, ch := range sb.subs {
		close(ch)
	}
	sb.subs = nil
}
