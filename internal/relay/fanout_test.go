package relay

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelForKey(t *testing.T) {
	assert.Equal(t, "chat:group:events", channelForKey(GroupKey))
	assert.Equal(t, "chat:alice"+keySeparator+"bob:events", channelForKey(PrivateKey("bob", "alice")))
}

func TestDecodeBridgeFrame(t *testing.T) {
	frame := []byte(`{"event":"chat/message","body":{"sender":"a","text":"x","ts":1}}`)
	payload, err := json.Marshal(bridgeEnvelope{Origin: "other", Frame: frame})
	require.NoError(t, err)

	got, ok := decodeBridgeFrame("me", payload)
	assert.True(t, ok)
	assert.JSONEq(t, string(frame), string(got))

	_, ok = decodeBridgeFrame("other", payload)
	assert.False(t, ok, "own frames are dropped to avoid echo loops")

	_, ok = decodeBridgeFrame("me", []byte("not json"))
	assert.False(t, ok)

	empty, _ := json.Marshal(bridgeEnvelope{Origin: "other"})
	_, ok = decodeBridgeFrame("me", empty)
	assert.False(t, ok)

	// json.RawMessage unmarshals a null frame as the bytes "null", not as
	// an empty slice; it must still be rejected.
	_, ok = decodeBridgeFrame("me", []byte(`{"origin":"other","frame":null}`))
	assert.False(t, ok)
}

func TestRedisFanoutKeyActiveDoesNotBlockRelay(t *testing.T) {
	// A broker that accepts and never answers: the subscribe dial must stall
	// only the bridge goroutine, not callers holding the relay lock.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			_ = conn
		}
	}()

	rdb := redis.NewClient(&redis.Options{Addr: ln.Addr().String(), DialTimeout: 5 * time.Second})
	defer rdb.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := New()
	r.AttachFanout(NewRedisFanout(ctx, rdb, r))

	start := time.Now()
	require.NoError(t, r.Join(r.Connect(&fakeSink{}), "alice"))
	joined := time.Since(start)

	start = time.Now()
	r.Connect(&fakeSink{})
	connected := time.Since(start)

	assert.Less(t, joined, 500*time.Millisecond, "join must not wait on the broker dial")
	assert.Less(t, connected, 500*time.Millisecond, "connect must not queue behind a dialing join")
}

func TestRedisFanoutPublish(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := &RedisFanout{
		ctx:    ctx,
		rdb:    rdb,
		relay:  New(),
		origin: "origin-a",
		subs:   make(map[string]context.CancelFunc),
		outbox: make(chan pubItem, publishQueueSize),
	}
	go f.publishLoop()

	frame := []byte(`{"event":"chat/message","body":{"sender":"a","text":"x","ts":1}}`)
	payload, err := json.Marshal(bridgeEnvelope{Origin: "origin-a", Frame: frame})
	require.NoError(t, err)
	mock.ExpectPublish("chat:group:events", payload).SetVal(1)

	f.Publish(GroupKey, frame)

	require.Eventually(t, func() bool {
		return mock.ExpectationsWereMet() == nil
	}, time.Second, 10*time.Millisecond)
}

func TestRedisFanoutKeyIdleUnknownKey(t *testing.T) {
	f := &RedisFanout{subs: make(map[string]context.CancelFunc)}
	f.KeyIdle("never-subscribed") // must not panic
}

func TestRedisFanoutPublishQueueFullDrops(t *testing.T) {
	f := &RedisFanout{outbox: make(chan pubItem, 1)}
	f.Publish("k", []byte("a"))
	f.Publish("k", []byte("b")) // queue full: dropped, best-effort
	assert.Len(t, f.outbox, 1)
}
