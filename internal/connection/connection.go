// Package connection abstracts the local /ws transport behind FrameReader/
// FrameWriter interfaces, grounded on the teacher's internal/connection
// package (FrameReader/FrameWriter over Unix socket or WebSocket). Wavecast
// has only one local transport (WebSocket), so the Unix-socket
// implementation was dropped. WSReader and WSWriter implement these
// interfaces; internal/frontdoor's WS handler uses the concrete types.
package connection

import "github.com/wavecastsh/wavecast/internal/protocol"

// FrameReader reads client messages from the local /ws transport.
type FrameReader interface {
	ReadMessage() (*protocol.ClientMessage, error)
	Close() error
}

// FrameWriter writes server messages to the local /ws transport.
type FrameWriter interface {
	WriteMessage(msg *protocol.ServerMessage) error
	Close() error
}
