package relay

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const publishQueueSize = 256

// bridgeEnvelope is the cross-instance wire format. Origin lets a subscriber
// drop frames its own instance published, since the local fan-out already
// happened there.
type bridgeEnvelope struct {
	Origin string          `json:"origin"`
	Frame  json.RawMessage `json:"frame"`
}

// RedisFanout mirrors routed frames across relay instances over Redis
// pub/sub. It holds exactly one Redis subscription per locally-active
// routing key, no matter how many sessions sit in that room. Redis is used
// as a wire only; nothing is stored.
type RedisFanout struct {
	ctx    context.Context
	rdb    *redis.Client
	relay  *Relay
	origin string

	mu   sync.Mutex
	subs map[string]context.CancelFunc

	outbox chan pubItem
}

type pubItem struct {
	key   string
	frame []byte
}

// NewRedisFanout starts the publisher loop and returns a bridge ready to be
// attached to the relay. ctx bounds every goroutine the bridge spawns.
func NewRedisFanout(ctx context.Context, rdb *redis.Client, r *Relay) *RedisFanout {
	f := &RedisFanout{
		ctx:    ctx,
		rdb:    rdb,
		relay:  r,
		origin: uuid.NewString(),
		subs:   make(map[string]context.CancelFunc),
		outbox: make(chan pubItem, publishQueueSize),
	}
	go f.publishLoop()
	return f
}

// Publish queues frame for delivery to the other instances. Called with the
// relay lock held, so it must not block: a full queue drops the frame, which
// is within the system's best-effort contract.
func (f *RedisFanout) Publish(key string, frame []byte) {
	select {
	case f.outbox <- pubItem{key: key, frame: frame}:
	default:
		zap.L().Warn("fanout.publish_queue_full", zap.String("key", key))
	}
}

// KeyActive opens the Redis subscription for key. First local subscriber
// only; the relay guarantees one call per activation.
func (f *RedisFanout) KeyActive(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.subs[key]; ok {
		return
	}

	ctx, cancel := context.WithCancel(f.ctx)
	f.subs[key] = cancel

	// Subscribing dials the broker. That happens on the spawned goroutine:
	// KeyActive runs under the relay lock and must not block, so a slow or
	// unreachable broker stalls only this key's loop, never the relay.
	go func() {
		ps := f.rdb.Subscribe(ctx, channelForKey(key))
		defer ps.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ps.Channel():
				if !ok {
					return
				}
				frame, ok := decodeBridgeFrame(f.origin, []byte(m.Payload))
				if !ok {
					continue
				}
				f.relay.Inject(key, frame)
			}
		}
	}()
}

// KeyIdle tears the Redis subscription for key down once the last local
// subscriber is gone.
func (f *RedisFanout) KeyIdle(key string) {
	f.mu.Lock()
	cancel, ok := f.subs[key]
	if ok {
		delete(f.subs, key)
	}
	f.mu.Unlock()

	if ok {
		cancel()
	}
}

func (f *RedisFanout) publishLoop() {
	for {
		select {
		case <-f.ctx.Done():
			return
		case item := <-f.outbox:
			payload, err := json.Marshal(bridgeEnvelope{Origin: f.origin, Frame: item.frame})
			if err != nil {
				zap.L().Warn("fanout.encode", zap.Error(err))
				continue
			}
			if err := f.rdb.Publish(f.ctx, channelForKey(item.key), payload).Err(); err != nil {
				zap.L().Warn("fanout.publish", zap.String("key", item.key), zap.Error(err))
			}
		}
	}
}

func channelForKey(key string) string {
	return "chat:" + key + ":events"
}

// decodeBridgeFrame unwraps a pub/sub payload, dropping frames published by
// origin itself.
func decodeBridgeFrame(origin string, payload []byte) ([]byte, bool) {
	var env bridgeEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		zap.L().Warn("fanout.decode", zap.Error(err))
		return nil, false
	}
	// A missing frame decodes as the literal bytes "null", not as empty.
	if env.Origin == origin || len(env.Frame) == 0 || string(env.Frame) == "null" {
		return nil, false
	}
	return env.Frame, true
}
