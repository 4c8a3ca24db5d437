package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"chatrelay/internal/relay"
)

type WsServer struct {
	relay    *relay.Relay
	router   *Router
	upgrader websocket.Upgrader
}

func NewWsServer(r *relay.Relay, allowedOrigins []string) *WsServer {
	srv := &WsServer{
		relay:    r,
		router:   NewRouter(),
		upgrader: newUpgrader(allowedOrigins),
	}
	srv.registerHandlers() // ← all WS events configured here
	return srv
}

func newUpgrader(allowedOrigins []string) websocket.Upgrader {
	allowAll := false
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = struct{}{}
	}

	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if allowAll {
				return true
			}
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true // non-browser client
			}
			_, ok := allowed[origin]
			return ok
		},
	}
}

// ---------------------------------------------------------------------------
//  Public: Gin entry-point
// ---------------------------------------------------------------------------

func (s *WsServer) Handle(ginCtx *gin.Context) {
	raw, err := s.upgrader.Upgrade(ginCtx.Writer, ginCtx.Request, nil)
	if err != nil {
		zap.L().Warn("ws.upgrade", zap.Error(err))
		return
	}
	raw.SetReadLimit(maxMessageSize)

	conn := newClientConn(raw)
	sess := s.relay.Connect(conn)

	go conn.writePump()
	go s.reader(sess, conn)
}

// ---------------------------------------------------------------------------
//  Private helpers
// ---------------------------------------------------------------------------

func (s *WsServer) registerHandlers() {
	// 🔹 chat/join ------------------------------------------------------------
	Register(s.router, relay.EventJoin,
		func(ctx context.Context, sess *relay.Session, req JoinBody) error {
			if !relay.ValidIdentity(req.Name) {
				return errMalformed
			}
			return s.relay.Join(sess, req.Name)
		},
	)

	// 🔹 chat/message ---------------------------------------------------------
	Register(s.router, relay.EventGroupMessage,
		func(ctx context.Context, sess *relay.Session, req GroupMessageBody) error {
			if req.Text == "" {
				return errMalformed
			}
			return s.relay.GroupMessage(sess, req.Text)
		},
	)

	// 🔹 chat/private-join ----------------------------------------------------
	Register(s.router, relay.EventPrivateJoin,
		func(ctx context.Context, sess *relay.Session, req PrivateJoinBody) error {
			if req.From == "" || req.To == "" {
				return errMalformed
			}
			return s.relay.JoinPrivate(sess, req.From, req.To)
		},
	)

	// 🔹 chat/private-message -------------------------------------------------
	Register(s.router, relay.EventPrivateMessage,
		func(ctx context.Context, sess *relay.Session, req PrivateMessageBody) error {
			if req.From == "" || req.To == "" || req.Text == "" {
				return errMalformed
			}
			return s.relay.PrivateMessage(sess, req.From, req.To, req.Text)
		},
	)
}

func (s *WsServer) reader(sess *relay.Session, conn *clientConn) {
	defer s.relay.Disconnect(sess) // idempotent; unwinds registry + router

	_ = conn.raw.SetReadDeadline(time.Now().Add(pongWait))
	conn.raw.SetPongHandler(func(string) error {
		return conn.raw.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var env relay.Envelope
		if err := conn.raw.ReadJSON(&env); err != nil {
			return // client closed or errored
		}

		// No deadline: relay entry points only mutate in-memory state and
		// enqueue frames, they never block.
		err := s.router.dispatch(context.Background(), sess, env)

		// Dropped events are logged, never surfaced: the protocol has no
		// receipts and the connection keeps going.
		if err != nil {
			zap.L().Debug("ws.event_dropped",
				zap.String("session", sess.ID),
				zap.String("event", env.Event),
				zap.Error(err),
			)
		}
	}
}
