package session

// ConnectionState mirrors the transport layer's view of the live voice
// session. The core never generates "reconnecting" itself; it reflects
// whatever the transport reports.
type ConnectionState string

const (
	Disconnected ConnectionState = "disconnected"
	Connecting   ConnectionState = "connecting"
	Connected    ConnectionState = "connected"
	Reconnecting ConnectionState = "reconnecting"
)
