package relay

import "sync"

// Router keeps subscriber sets per routing key and fans frames out to them.
// Empty keys are garbage-collected on unsubscribe; an absent key and an
// empty one behave the same (nobody to notify).
type Router struct {
	mu    sync.RWMutex
	rooms map[string]map[*Session]struct{}
}

func NewRouter() *Router {
	return &Router{rooms: make(map[string]map[*Session]struct{})}
}

// Subscribe adds s to the subscriber set for key. Idempotent. Returns true
// when s is the first subscriber of key, which is the bridge's cue to open
// an upstream subscription.
func (r *Router) Subscribe(s *Session, key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[key]
	if !ok {
		room = make(map[*Session]struct{})
		r.rooms[key] = room
	}
	if _, dup := room[s]; dup {
		return false
	}
	room[s] = struct{}{}
	s.keys[key] = struct{}{}
	return len(room) == 1
}

// Unsubscribe removes s from every key's subscriber set and returns the keys
// that are now empty.
func (r *Router) Unsubscribe(s *Session) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var idle []string
	for key := range s.keys {
		room, ok := r.rooms[key]
		if !ok {
			continue
		}
		delete(room, s)
		if len(room) == 0 {
			delete(r.rooms, key)
			idle = append(idle, key)
		}
	}
	s.keys = make(map[string]struct{})
	return idle
}

// Route enqueues frame on every subscriber of key except exclude. A key with
// no subscribers is not an error: the frame is silently dropped. Subscribers
// whose sink refuses the frame are returned for teardown.
func (r *Router) Route(key string, frame []byte, exclude *Session) (delivered int, failed []*Session) {
	r.mu.RLock()
	room := r.rooms[key]
	targets := make([]*Session, 0, len(room))
	for s := range room {
		if s != exclude {
			targets = append(targets, s)
		}
	}
	r.mu.RUnlock()

	for _, s := range targets {
		if s.sink.Enqueue(frame) {
			delivered++
		} else {
			failed = append(failed, s)
		}
	}
	return delivered, failed
}
