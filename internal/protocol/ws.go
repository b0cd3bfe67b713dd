// Package protocol defines the wire message shapes used across wavecast's
// three surfaces (spec §6): the local WebSocket API, the relay control
// channel, and the relay data channel. Tagged-union JSON messages with a
// Type discriminator are grounded on the teacher's internal/protocol
// Request/Response pattern (Type string + omitempty fields).
package protocol

import "encoding/json"

// ClientMessage is a client→server frame on the local /ws surface.
type ClientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ServerMessage is a server→client frame on the local /ws surface.
type ServerMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// Core local-WS message type names, per spec §6.
const (
	WSTypePing               = "ping"
	WSTypePlaybackSync        = "playback-sync"
	WSTypeRemoteCommand       = "remote-command"
	WSTypeRequestDesktopState = "request-desktop-state"
	WSTypePong                = "pong"
	WSTypeSessionUpdate       = "session-update"
	WSTypeDesktopState        = "desktop-state"
)

// CloseAuthFailure is the close code sent when WS upgrade authentication
// fails, per spec §6.
const CloseAuthFailure = 4001

// SessionUpdatePayload is sent once on successful WS upgrade.
type SessionUpdatePayload struct {
	SessionID     string `json:"sessionId"`
	ActiveCount   int    `json:"activeCount"`
}
