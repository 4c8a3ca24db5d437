package relay

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrNotJoined is returned for chat events from a session that has not
	// announced an identity yet.
	ErrNotJoined = errors.New("session not joined")
	// ErrAlreadyJoined is returned when a session tries to rebind its
	// identity without disconnecting first.
	ErrAlreadyJoined = errors.New("identity already bound")
)

// Fanout bridges routed frames across relay instances. All methods are
// called with the relay lock held and must not block.
type Fanout interface {
	// Publish forwards a locally routed frame to the other instances.
	Publish(key string, frame []byte)
	// KeyActive fires when a key gains its first local subscriber.
	KeyActive(key string)
	// KeyIdle fires when a key loses its last local subscriber.
	KeyIdle(key string)
}

// Relay owns the presence registry and the room router and is the single
// concurrency boundary around them: every inbound event is serialized behind
// one mutex, so a disconnect unwinds both structures atomically as seen by
// every other session.
type Relay struct {
	mu         sync.Mutex
	sessions   map[*Session]struct{}
	byIdentity map[string]map[*Session]struct{}
	registry   *Registry
	router     *Router
	fanout     Fanout
}

func New() *Relay {
	return &Relay{
		sessions:   make(map[*Session]struct{}),
		byIdentity: make(map[string]map[*Session]struct{}),
		registry:   NewRegistry(),
		router:     NewRouter(),
	}
}

// AttachFanout wires a cross-instance bridge. Must be called before the
// relay starts accepting sessions.
func (r *Relay) AttachFanout(f Fanout) { r.fanout = f }

// Connect registers a new unidentified session around the given sink.
func (r *Relay) Connect(sink Sink) *Session {
	s := &Session{
		ID:   uuid.NewString(),
		sink: sink,
		keys: make(map[string]struct{}),
	}
	r.mu.Lock()
	r.sessions[s] = struct{}{}
	r.mu.Unlock()
	return s
}

// Join binds name to s, puts it online and broadcasts the updated presence
// snapshot to every connected session, identified or not. The session is
// implicitly subscribed to the group key.
func (r *Relay) Join(s *Session, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s.gone {
		return ErrNotJoined
	}
	if s.identity != "" {
		return ErrAlreadyJoined
	}

	s.identity = name
	bound, ok := r.byIdentity[name]
	if !ok {
		bound = make(map[*Session]struct{})
		r.byIdentity[name] = bound
	}
	bound[s] = struct{}{}

	r.registry.Join(name)
	r.subscribeLocked(s, GroupKey)
	r.broadcastPresenceLocked()
	return nil
}

// GroupMessage relays text to every group subscriber except the sender.
func (r *Relay) GroupMessage(s *Session, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s.gone || s.identity == "" {
		return ErrNotJoined
	}
	return r.relayLocked(GroupKey, s.identity, text, s)
}

// JoinPrivate subscribes s to the conversation key for {from, to}.
func (r *Relay) JoinPrivate(s *Session, from, to string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s.gone || s.identity == "" {
		return ErrNotJoined
	}
	r.subscribeLocked(s, PrivateKey(from, to))
	return nil
}

// PrivateMessage relays text on the pair key for {from, to}. Both ends are
// subscribed first: the sender so a reply cannot be missed, and every live
// session bound to the recipient identity so the first message of a
// conversation is delivered without an explicit private join. A recipient
// that is not online simply means nobody is left to notify.
func (r *Relay) PrivateMessage(s *Session, from, to, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s.gone || s.identity == "" {
		return ErrNotJoined
	}

	key := PrivateKey(from, to)
	r.subscribeLocked(s, key)
	for peer := range r.byIdentity[to] {
		r.subscribeLocked(peer, key)
	}
	return r.relayLocked(key, from, text, s)
}

// Disconnect tears the session down: unsubscribes it everywhere, drops its
// identity reference and, if the online set or the session's visibility
// changed, broadcasts a fresh presence snapshot. Safe to call more than
// once; the second call is a no-op.
func (r *Relay) Disconnect(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disconnectLocked(s)
}

// Snapshot returns the identities currently online.
func (r *Relay) Snapshot() []string {
	return r.registry.Snapshot()
}

// Inject routes a frame received from another instance to the local
// subscribers of key. No sender exclusion and no re-publish: the origin
// instance already handled both.
func (r *Relay) Inject(key string, frame []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, failed := r.router.Route(key, frame, nil)
	for _, s := range failed {
		r.disconnectLocked(s)
	}
}

func (r *Relay) relayLocked(key, sender, text string, exclude *Session) error {
	frame, err := EncodeFrame(eventForKey(key), MessageBody{
		Sender: sender,
		Text:   text,
		Ts:     time.Now().UnixMilli(),
	})
	if err != nil {
		return err
	}

	delivered, failed := r.router.Route(key, frame, exclude)
	for _, s := range failed {
		r.disconnectLocked(s)
	}
	if r.fanout != nil {
		r.fanout.Publish(key, frame)
	}
	zap.L().Debug("relay.route",
		zap.String("key", key),
		zap.Int("delivered", delivered),
		zap.Int("dropped", len(failed)),
	)
	return nil
}

func eventForKey(key string) string {
	if key == GroupKey {
		return EventGroupMessage
	}
	return EventPrivateMessage
}

func (r *Relay) subscribeLocked(s *Session, key string) {
	if r.router.Subscribe(s, key) && r.fanout != nil {
		r.fanout.KeyActive(key)
	}
}

func (r *Relay) disconnectLocked(s *Session) {
	if s.gone {
		return
	}
	s.gone = true
	delete(r.sessions, s)

	idle := r.router.Unsubscribe(s)
	if r.fanout != nil {
		for _, key := range idle {
			r.fanout.KeyIdle(key)
		}
	}

	identity := s.identity
	if identity != "" {
		if bound := r.byIdentity[identity]; bound != nil {
			delete(bound, s)
			if len(bound) == 0 {
				delete(r.byIdentity, identity)
			}
		}
		r.registry.Leave(identity)
	}

	s.sink.Close()

	// A session that never joined leaves no trace, so nothing to announce.
	if identity != "" {
		r.broadcastPresenceLocked()
	}
}

func (r *Relay) broadcastPresenceLocked() {
	frame, err := EncodeFrame(EventPresence, PresenceBody{Users: r.registry.Snapshot()})
	if err != nil {
		zap.L().Warn("relay.presence_encode", zap.Error(err))
		return
	}

	targets := make([]*Session, 0, len(r.sessions))
	for s := range r.sessions {
		targets = append(targets, s)
	}
	var failed []*Session
	for _, s := range targets {
		if !s.sink.Enqueue(frame) {
			failed = append(failed, s)
		}
	}
	for _, s := range failed {
		r.disconnectLocked(s)
	}
}
