package protocol

// Relay control-channel message type names (host/client ↔ relay), sent as
// clear JSON, per spec §6.
const (
	RelayTypeRegister    = "register"
	RelayTypeJoin        = "join"
	RelayTypePing        = "ping"
	RelayTypeRegistered  = "registered"
	RelayTypePeerJoined  = "peer_joined"
	RelayTypePeerLeft    = "peer_left"
	RelayTypeJoined      = "joined"
	RelayTypeAuthRequired = "auth-required"
	RelayTypeError       = "error"
)

// Relay data-channel message type names (host ↔ peer, sealed end-to-end),
// per spec §6.
const (
	DataTypeWelcome         = "welcome"
	DataTypeAPIRequest      = "api-request"
	DataTypeAPIResponse     = "api-response"
	DataTypePlaybackCommand = "playback-command"
	DataTypeCommandAck      = "command-ack"
)

// RegisterFrame is sent by the Relay Client after connecting.
type RegisterFrame struct {
	Type         string `json:"type"`
	RoomID       string `json:"room_id"`
	PasswordHash string `json:"password_hash,omitempty"`
	ServerName   string `json:"server_name"`
}

// JoinFrame is sent by the Tunnel Client to join a room.
type JoinFrame struct {
	Type              string `json:"type"`
	RoomID            string `json:"room_id"`
	EphemeralPublicKey string `json:"ephemeral_public_key"`
	DeviceName        string `json:"device_name"`
	UserAgent         string `json:"user_agent"`
	PasswordHash      string `json:"password_hash,omitempty"`
}

// PingFrame is the lightweight keepalive control frame.
type PingFrame struct {
	Type string `json:"type"`
}

// RegisteredFrame acknowledges a successful register.
type RegisteredFrame struct {
	Type string `json:"type"`
}

// PeerJoinedFrame notifies the host a peer joined the room.
type PeerJoinedFrame struct {
	Type      string `json:"type"`
	PeerID    string `json:"peer_id"` // ephemeral public key
	DeviceName string `json:"device_name"`
}

// PeerLeftFrame notifies the host a peer left the room.
type PeerLeftFrame struct {
	Type   string `json:"type"`
	PeerID string `json:"peer_id"`
}

// JoinedFrame is sent by the relay to a client after a successful join.
type JoinedFrame struct {
	Type           string `json:"type"`
	HostPublicKey  string `json:"host_public_key"`
	ServerName     string `json:"server_name,omitempty"`
}

// AuthRequiredFrame is sent by the relay when the room is password-protected.
type AuthRequiredFrame struct {
	Type string `json:"type"`
}

// ErrorFrame carries a relay-side error observation.
type ErrorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// WelcomeFrame is the first sealed data frame the host sends a new peer: the
// active auth token and local URL so the peer can tunnel authenticated
// requests.
type WelcomeFrame struct {
	Type        string `json:"type"`
	AuthToken   string `json:"auth_token"`
	LocalURL    string `json:"local_url"`
}

// APIRequestFrame is a sealed data frame tunneling an HTTP-style call.
type APIRequestFrame struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id"`
	Method    string `json:"method"`
	URL       string `json:"url"`
	Body      string `json:"body,omitempty"`
	AuthToken string `json:"auth_token,omitempty"`
}

// APIResponseFrame is the correlated reply to an APIRequestFrame.
type APIResponseFrame struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id"`
	OK        bool   `json:"ok"`
	Status    int    `json:"status"`
	Data      string `json:"data,omitempty"`
}

// PlaybackCommandFrame dispatches a command to the playback orchestrator.
type PlaybackCommandFrame struct {
	Type      string                 `json:"type"`
	RequestID string                 `json:"request_id"`
	Command   string                 `json:"command"`
	Args      map[string]interface{} `json:"args,omitempty"`
}

// CommandAckFrame acknowledges a PlaybackCommandFrame.
type CommandAckFrame struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
}

// Envelope is used to sniff the `type` discriminator out of an inbound
// frame before unmarshaling into its concrete shape, mirroring the
// teacher's Alias-based UnmarshalJSON idiom.
type Envelope struct {
	Type string `json:"type"`
}

// DataFrame carries an opaque sealed data-channel frame over the same
// socket as the clear-JSON control frames, tagged with the peer it is
// to/from so the relay (and the reader on either end) can route it.
type DataFrame struct {
	Type       string `json:"type"` // "data"
	PeerID     string `json:"peer_id"`
	Ciphertext string `json:"ciphertext"` // base64, nonce-prefixed per internal/cryptobox
}

// DataTypeData is the control-channel envelope type wrapping a sealed data
// frame, distinct from the DataType* constants which classify the
// plaintext once opened.
const DataTypeData = "data"
