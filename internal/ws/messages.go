package ws

import "errors"

// errMalformed covers payloads missing required fields. The event is logged
// and dropped; the connection stays up.
var errMalformed = errors.New("malformed_event")

// ──────────────────────────── Inbound DTOs ─────────────────────────────────

// JoinBody is the body for "chat/join".
type JoinBody struct {
	Name string `json:"name"`
}

// GroupMessageBody is the body for "chat/message".
type GroupMessageBody struct {
	Text string `json:"text"`
}

// PrivateJoinBody is the body for "chat/private-join".
type PrivateJoinBody struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// PrivateMessageBody is the body for "chat/private-message".
type PrivateMessageBody struct {
	From string `json:"from"`
	To   string `json:"to"`
	Text string `json:"text"`
}
