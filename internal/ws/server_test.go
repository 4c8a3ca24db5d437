package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatrelay/internal/relay"
)

type nopSink struct{}

func (nopSink) Enqueue([]byte) bool { return true }
func (nopSink) Close()              {}

func dispatchEvent(t *testing.T, srv *WsServer, sess *relay.Session, event, body string) error {
	t.Helper()
	return srv.router.dispatch(context.Background(), sess, relay.Envelope{
		Event: event,
		Body:  json.RawMessage(body),
	})
}

func TestHandlersRejectMalformedEvents(t *testing.T) {
	srv := NewWsServer(relay.New(), []string{"*"})
	sess := srv.relay.Connect(nopSink{})

	assert.ErrorIs(t, dispatchEvent(t, srv, sess, relay.EventJoin, `{"name":""}`), errMalformed)
	assert.ErrorIs(t, dispatchEvent(t, srv, sess, relay.EventGroupMessage, `{"text":"hi"}`), relay.ErrNotJoined)

	require.NoError(t, dispatchEvent(t, srv, sess, relay.EventJoin, `{"name":"alice"}`))

	assert.ErrorIs(t, dispatchEvent(t, srv, sess, relay.EventGroupMessage, `{"text":""}`), errMalformed)
	assert.ErrorIs(t, dispatchEvent(t, srv, sess, relay.EventPrivateJoin, `{"from":"alice"}`), errMalformed)
	assert.ErrorIs(t, dispatchEvent(t, srv, sess, relay.EventPrivateMessage, `{"from":"alice","to":"bob"}`), errMalformed)

	require.NoError(t, dispatchEvent(t, srv, sess, relay.EventGroupMessage, `{"text":"hi"}`))
	require.NoError(t, dispatchEvent(t, srv, sess, relay.EventPrivateJoin, `{"from":"alice","to":"bob"}`))
	require.NoError(t, dispatchEvent(t, srv, sess, relay.EventPrivateMessage, `{"from":"alice","to":"bob","text":"yo"}`))
}

func TestUpgraderCheckOrigin(t *testing.T) {
	wildcard := newUpgrader([]string{"*"})
	r := httptest.NewRequest("GET", "/ws", nil)
	r.Header.Set("Origin", "http://anywhere.example")
	assert.True(t, wildcard.CheckOrigin(r))

	strict := newUpgrader([]string{"http://ok.example"})
	r = httptest.NewRequest("GET", "/ws", nil)
	r.Header.Set("Origin", "http://ok.example")
	assert.True(t, strict.CheckOrigin(r))

	r = httptest.NewRequest("GET", "/ws", nil)
	r.Header.Set("Origin", "http://evil.example")
	assert.False(t, strict.CheckOrigin(r))

	r = httptest.NewRequest("GET", "/ws", nil)
	assert.True(t, strict.CheckOrigin(r), "non-browser clients send no Origin")
}
