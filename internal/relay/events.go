package relay

import "encoding/json"

// Envelope wraps every WS frame.
type Envelope struct {
	Event string          `json:"event"`
	Body  json.RawMessage `json:"body,omitempty"`
}

// Event names shared by the transport layer and the relay.
const (
	EventJoin           = "chat/join"
	EventGroupMessage   = "chat/message"
	EventPrivateJoin    = "chat/private-join"
	EventPrivateMessage = "chat/private-message"
	EventPresence       = "chat/presence"
)

// MessageBody is the delivered payload for group and private messages.
// Ts is assigned by the server at relay time (unix milliseconds).
type MessageBody struct {
	Sender string `json:"sender"`
	Text   string `json:"text"`
	Ts     int64  `json:"ts"`
}

// PresenceBody carries the full online-identity snapshot.
type PresenceBody struct {
	Users []string `json:"users"`
}

// EncodeFrame marshals body into an Envelope ready for the wire.
func EncodeFrame(event string, body any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Body: b})
}
