// Package hub provides a thread-safe websocket broadcast hub
// using the channel-based fan-out pattern. The last state message is
// retained and replayed to clients that connect later.
package hub

// MessageType indicates the websocket message format
type MessageType int

const (
	// JSONMessage is a JSON-encoded message
	JSONMessage MessageType = iota
	// BinaryMessage is raw binary data (e.g., JPEG frames)
	BinaryMessage
)

// Message represents a message to be broadcast to clients
type Message struct {
	Type MessageType
	Data []byte

	// Retain keeps the message for clients that connect later.
	Retain bool
}

// NewJSONMessage creates a JSON message from pre-encoded bytes
func NewJSONMessage(data []byte) Message {
	return Message{Type: JSONMessage, Data: data}
}

// NewStateMessage creates a retained JSON message.
func NewStateMessage(data []byte) Message {
	return Message{Type: JSONMessage, Data: data, Retain: true}
}

// NewBinaryMessage creates a binary message
func NewBinaryMessage(data []byte) Message {
	return Message{Type: BinaryMessage, Data: data}
}
