package relay

// Sink is the delivery end of one session, implemented by the transport
// layer. Enqueue must not block; it is called with the relay lock held and
// frames enqueued on one sink must reach the peer in enqueue order. A false
// return marks the session undeliverable and the relay tears it down.
type Sink interface {
	Enqueue(frame []byte) bool
	Close()
}

// Session is one live connection. The identity is empty until the session
// joins; a session never transitions back to unidentified. All fields beyond
// ID are guarded by the owning Relay's lock.
type Session struct {
	ID string

	sink     Sink
	identity string
	keys     map[string]struct{}
	gone     bool
}
