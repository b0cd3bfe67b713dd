package frontdoor

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"nhooyr.io/websocket"

	"github.com/wavecastsh/wavecast/internal/apierr"
	"github.com/wavecastsh/wavecast/internal/connection"
	"github.com/wavecastsh/wavecast/internal/protocol"
)

// handleWS upgrades to a WebSocket, validates the query-string token by the
// same rules as the HTTP auth hook, creates a Session, and serves the
// per-connection read loop until the peer disconnects or the server shuts
// down, per spec §4.6 and §5.
func (d *Door) handleWS(w http.ResponseWriter, r *http.Request) {
	info, err := d.validateToken(r.Context(), r.URL.Query().Get("token"))
	conn, acceptErr := websocket.Accept(w, r, nil)
	if acceptErr != nil {
		return
	}
	if err != nil {
		reason := "authentication failure"
		if e, ok := apierr.As(err); ok {
			reason = e.Message
		}
		_ = conn.Close(websocket.StatusCode(protocol.CloseAuthFailure), reason)
		return
	}

	owner := info.DeviceID
	if owner == "" {
		owner = r.URL.Query().Get("token")
	}
	sess := d.sessions.Create(owner, r.UserAgent())
	defer d.sessions.End(sess.SessionID)

	ctx := r.Context()
	reader := connection.NewWSReader(ctx, conn)
	writer := connection.NewWSWriter(ctx, conn)
	defer writer.Close()

	if err := writer.WriteMessage(&protocol.ServerMessage{
		Type: protocol.WSTypeSessionUpdate,
		Payload: protocol.SessionUpdatePayload{
			SessionID:   sess.SessionID,
			ActiveCount: d.sessions.ActiveCount(),
		},
	}); err != nil {
		return
	}

	for {
		msg, err := reader.ReadMessage()
		if err != nil || msg == nil {
			return
		}
		d.sessions.UpdateActivity(sess.SessionID)
		d.handleClientMessage(ctx, writer, msg)
	}
}

func (d *Door) handleClientMessage(ctx context.Context, w *connection.WSWriter, msg *protocol.ClientMessage) {
	switch msg.Type {
	case protocol.WSTypePing:
		_ = w.WriteMessage(&protocol.ServerMessage{Type: protocol.WSTypePong})

	case protocol.WSTypeRequestDesktopState:
		if d.caps.Playback == nil {
			return
		}
		state, err := d.caps.Playback.State(ctx)
		if err != nil {
			slog.Warn("desktop state lookup failed", "error", err)
			return
		}
		_ = w.WriteMessage(&protocol.ServerMessage{Type: protocol.WSTypeDesktopState, Payload: state})

	case protocol.WSTypeRemoteCommand:
		d.dispatchRemoteCommand(ctx, msg.Payload)

	case protocol.WSTypePlaybackSync:
		// Playback-state reconciliation is owned by the out-of-scope
		// playback orchestrator; the Front Door only keeps the session
		// alive for it (UpdateActivity above).
	}
}

func (d *Door) dispatchRemoteCommand(ctx context.Context, payload json.RawMessage) {
	if d.caps.Playback == nil {
		return
	}
	var cmd struct {
		Action  string `json:"action"`
		TrackID string `json:"trackId,omitempty"`
	}
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return
	}

	var err error
	switch cmd.Action {
	case "play":
		err = d.caps.Playback.Play(ctx, cmd.TrackID)
	case "pause":
		err = d.caps.Playback.Pause(ctx)
	case "next":
		err = d.caps.Playback.Next(ctx)
	case "previous":
		err = d.caps.Playback.Previous(ctx)
	}
	if err != nil {
		slog.Warn("remote command failed", "action", cmd.Action, "error", err)
	}
}
