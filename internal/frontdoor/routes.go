package frontdoor

import (
	"net/http"
	"time"

	"github.com/wavecastsh/wavecast/internal/apierr"
	"github.com/wavecastsh/wavecast/internal/device"
	"github.com/wavecastsh/wavecast/internal/protocol"
)

const defaultDeviceTokenTTL = 24 * time.Hour

func (d *Door) routes() {
	d.mux.HandleFunc("GET /api/health", d.handleHealth)

	d.mux.HandleFunc("GET /api/auth/pair", d.handleCurrentPairCode)
	d.mux.HandleFunc("POST /api/auth/pair", d.handlePair)
	d.mux.HandleFunc("GET /api/auth/pair/check", d.handlePairCheck)
	d.mux.HandleFunc("POST /api/auth/login", d.handleLogin)
	d.mux.HandleFunc("POST /api/auth/device", d.handleDeviceAuth)
	d.mux.HandleFunc("POST /api/auth/refresh", d.handleRefresh)
	d.mux.HandleFunc("POST /api/auth/logout", d.handleLogout)
	d.mux.HandleFunc("GET /api/auth/devices", d.handleListDevices)
	d.mux.HandleFunc("DELETE /api/auth/devices/{deviceId}", d.handleRevokeDevice)
	d.mux.HandleFunc("GET /api/auth/passphrase", d.handleGetPassphrase)
	d.mux.HandleFunc("POST /api/auth/passphrase/regenerate", d.handleRegeneratePassphrase)
	d.mux.HandleFunc("POST /api/auth/password", d.handleSetPassword)
	d.mux.HandleFunc("GET /api/auth/settings", d.handleGetSettings)
	d.mux.HandleFunc("POST /api/auth/settings", d.handleSetSettings)

	d.mux.HandleFunc("POST /api/access/rotate", d.handleAccessRotate)
	d.mux.HandleFunc("GET /api/access/info", d.handleAccessInfo)

	d.mux.HandleFunc("GET /api/sessions", d.handleListSessions)
	d.mux.HandleFunc("DELETE /api/sessions/{id}", d.handleDeleteSession)

	d.mux.HandleFunc("GET /ws", d.handleWS)

	d.mux.HandleFunc("GET /", d.handleIndex)
}

func (d *Door) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, protocol.HealthResponse{
		Status:         "ok",
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
		ActiveSessions: d.sessions.ActiveCount(),
	})
}

func (d *Door) handleIndex(w http.ResponseWriter, r *http.Request) {
	// Static-SPA fallback is out of core scope; the Front Door still needs
	// a public index route to anchor the auth hook's allow-list.
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("wavecast\n"))
}

func (d *Door) handlePair(w http.ResponseWriter, r *http.Request) {
	var req protocol.PairRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAPIErr(w, apierr.Wrap(apierr.KindMalformed, "invalid request body", err))
		return
	}

	result, err := d.pair.Consume(r.Context(), req.Code, r.UserAgent())
	if err != nil {
		writeAPIErr(w, apierr.Wrap(apierr.KindTimeout, "pairing request cancelled", err))
		return
	}

	if !result.Success && !result.RequiresApproval {
		// Conflict (code already consumed) is distinct from an
		// expired/invalid code, per spec §7: 409 vs 401.
		if result.Conflict {
			writeAPIErr(w, apierr.New(apierr.KindConflict, result.Error))
			return
		}
		writeAPIErr(w, apierr.New(apierr.KindExpired, result.Error))
		return
	}

	writeJSON(w, http.StatusOK, protocol.PairResponse{
		Success:          result.Success,
		DeviceToken:      result.DeviceToken,
		DeviceID:         result.DeviceID,
		RequiresApproval: result.RequiresApproval,
		Error:            result.Error,
	})
}

// handleCurrentPairCode is an admin-only endpoint (behind the standard auth
// hook, not on the public allow-list) that the `wavecast pair` CLI command
// polls to display the current stable pairing code and its QR payload.
func (d *Door) handleCurrentPairCode(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, d.pair.CurrentCode())
}

func (d *Door) handlePairCheck(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	writeJSON(w, http.StatusOK, protocol.PairCheckResponse{Valid: d.pair.IsValid(code)})
}

func (d *Door) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req protocol.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAPIErr(w, apierr.Wrap(apierr.KindMalformed, "invalid request body", err))
		return
	}

	if !d.creds.Verify(req.Password) {
		writeAPIErr(w, apierr.New(apierr.KindUnauthorized, "invalid password"))
		return
	}

	var expiresAt *time.Time
	if !req.RememberDevice {
		t := time.Now().UTC().Add(defaultDeviceTokenTTL)
		expiresAt = &t
	}

	deviceID, combinedToken, err := d.devices.Register(r.Context(), req.DeviceName, r.UserAgent(), expiresAt)
	if err != nil {
		writeAPIErr(w, apierr.Wrap(apierr.KindIOError, "failed to register device", err))
		return
	}

	resp := protocol.LoginResponse{
		Success:     true,
		DeviceToken: combinedToken,
		DeviceID:    deviceID,
	}
	if expiresAt != nil {
		resp.ExpiresAt = expiresAt.Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (d *Door) handleDeviceAuth(w http.ResponseWriter, r *http.Request) {
	var req protocol.DeviceAuthRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAPIErr(w, apierr.Wrap(apierr.KindMalformed, "invalid request body", err))
		return
	}

	deviceID, err := d.devices.Validate(r.Context(), req.DeviceToken)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, protocol.DeviceAuthResponse{Success: false})
		return
	}
	writeJSON(w, http.StatusOK, protocol.DeviceAuthResponse{Success: true, DeviceID: deviceID})
}

func (d *Door) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req protocol.RefreshRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAPIErr(w, apierr.Wrap(apierr.KindMalformed, "invalid request body", err))
		return
	}

	newToken, expiresAt, err := d.devices.Refresh(r.Context(), req.DeviceID, req.Token)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, protocol.RefreshResponse{Success: false})
		return
	}

	resp := protocol.RefreshResponse{Success: true, DeviceToken: newToken}
	if expiresAt != nil {
		resp.ExpiresAt = expiresAt.Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (d *Door) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req protocol.LogoutRequest
	_ = decodeJSON(r, &req)

	if req.DeviceID != "" {
		d.sessions.EndSessionsForToken(req.DeviceID)
	} else if info, ok := authInfoFromContext(r.Context()); ok && info.DeviceID != "" {
		d.sessions.EndSessionsForToken(info.DeviceID)
	}
	writeJSON(w, http.StatusOK, protocol.LogoutResponse{Success: true})
}

func (d *Door) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := d.devices.List(r.Context())
	if err != nil {
		writeAPIErr(w, apierr.Wrap(apierr.KindIOError, "failed to list devices", err))
		return
	}
	writeJSON(w, http.StatusOK, devices)
}

func (d *Door) handleRevokeDevice(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("deviceId")
	if err := d.devices.Revoke(r.Context(), id); err != nil {
		if err == device.ErrUnknown {
			writeAPIErr(w, apierr.Wrap(apierr.KindNotFound, "unknown device", err))
			return
		}
		writeAPIErr(w, apierr.Wrap(apierr.KindIOError, "failed to revoke device", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (d *Door) handleGetPassphrase(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, protocol.PassphraseResponse{
		Passphrase: d.creds.Passphrase(),
		UseCustom:  d.creds.UsingCustom(),
	})
}

func (d *Door) handleRegeneratePassphrase(w http.ResponseWriter, r *http.Request) {
	fresh, err := d.creds.Regenerate()
	if err != nil {
		writeAPIErr(w, apierr.Wrap(apierr.KindIOError, "failed to regenerate passphrase", err))
		return
	}
	writeJSON(w, http.StatusOK, protocol.PassphraseResponse{Passphrase: fresh, UseCustom: false})
}

func (d *Door) handleSetPassword(w http.ResponseWriter, r *http.Request) {
	var req protocol.SetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeAPIErr(w, apierr.Wrap(apierr.KindMalformed, "invalid request body", err))
		return
	}
	if err := d.creds.SetCustomPassword(req.Password); err != nil {
		writeAPIErr(w, apierr.Wrap(apierr.KindMalformed, err.Error(), err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (d *Door) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	id := d.identity.GetPublicIdentity()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"serverName": id.Name,
		"serverId":   id.ServerID,
		"useCustom":  d.creds.UsingCustom(),
	})
}

func (d *Door) handleSetSettings(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ServerName string `json:"serverName,omitempty"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeAPIErr(w, apierr.Wrap(apierr.KindMalformed, "invalid request body", err))
		return
	}
	if req.ServerName != "" {
		if err := d.identity.SetServerName(req.ServerName); err != nil {
			writeAPIErr(w, apierr.Wrap(apierr.KindIOError, "failed to set server name", err))
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (d *Door) handleAccessRotate(w http.ResponseWriter, r *http.Request) {
	token, err := d.creds.RotateAccessToken()
	if err != nil {
		writeAPIErr(w, apierr.Wrap(apierr.KindIOError, "failed to rotate access token", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"accessToken": token})
}

func (d *Door) handleAccessInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"exists": d.creds.AccessTokenInfo()})
}

func (d *Door) handleListSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, d.sessions.ListAll())
}

func (d *Door) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	d.sessions.End(id)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
