package frontdoor

import (
	"context"
	"errors"
	"net/http"

	"github.com/wavecastsh/wavecast/internal/apierr"
	"github.com/wavecastsh/wavecast/internal/device"
)

// classifyDeviceError maps device.Registry.Validate's sentinel errors onto
// the apierr.Kind table, per spec §7's requirement that Expired surface a
// distinct, retryable message from the other unauthorized cases.
func classifyDeviceError(err error) *apierr.Error {
	switch {
	case errors.Is(err, device.ErrExpired):
		return apierr.Wrap(apierr.KindExpired, "device token expired, please re-pair", err)
	case errors.Is(err, device.ErrRevoked):
		return apierr.Wrap(apierr.KindUnauthorized, "device revoked", err)
	case errors.Is(err, device.ErrUnknown):
		return apierr.Wrap(apierr.KindUnauthorized, "unknown device", err)
	case errors.Is(err, device.ErrMismatch):
		return apierr.Wrap(apierr.KindUnauthorized, "device token mismatch", err)
	case errors.Is(err, device.ErrMalformed):
		return apierr.Wrap(apierr.KindUnauthorized, "malformed device token", err)
	default:
		return apierr.Wrap(apierr.KindUnauthorized, "invalid token", err)
	}
}

// authMiddleware implements spec §4.6's 5-step auth hook, the only place
// request-level authorization lives.
func (d *Door) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Step 1: public allow-list, plus the routes a client calls before it
		// holds a token. GET /ws is passed through because handleWS validates
		// its own query-string token and closes with 4001 on failure.
		public := isPublicPath(r.URL.Path)
		switch r.Method + " " + r.URL.Path {
		case "POST /api/auth/pair", "GET /api/auth/pair/check", "POST /api/auth/login",
			"POST /api/auth/device", "GET /ws":
			public = true
		}
		if public {
			next.ServeHTTP(w, r)
			return
		}

		// Step 2: internal marker, set only by the in-process injector.
		if r.Header.Get(internalMarkerHeader) == internalMarkerValue {
			ctx := withAuthInfo(r.Context(), authInfo{Kind: authKindInternal})
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		// Step 3: token from query or Authorization header.
		token := extractToken(r)
		if token == "" {
			writeAPIErr(w, apierr.New(apierr.KindUnauthorized, "missing token"))
			return
		}

		// Step 4: legacy access-token validation, then device-token
		// validation (split on ":").
		if d.creds.ValidateAccessToken(token) {
			ctx := withAuthInfo(r.Context(), authInfo{Kind: authKindLegacy})
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		deviceID, err := d.devices.Validate(r.Context(), token)
		if err != nil {
			writeAPIErr(w, classifyDeviceError(err))
			return
		}

		// Step 5: attach device id, pass through.
		ctx := withAuthInfo(r.Context(), authInfo{Kind: authKindDevice, DeviceID: deviceID})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// validateToken runs auth hook steps 3-5 for the WebSocket upgrade path,
// which extracts its token from the query string per spec §4.6.
func (d *Door) validateToken(ctx context.Context, token string) (authInfo, error) {
	if token == "" {
		return authInfo{}, apierr.ErrUnauthorized
	}
	if d.creds.ValidateAccessToken(token) {
		return authInfo{Kind: authKindLegacy}, nil
	}
	deviceID, err := d.devices.Validate(ctx, token)
	if err != nil {
		return authInfo{}, classifyDeviceError(err)
	}
	return authInfo{Kind: authKindDevice, DeviceID: deviceID}, nil
}
