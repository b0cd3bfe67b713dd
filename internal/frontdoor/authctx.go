package frontdoor

import (
	"context"
	"net/http"
	"strings"
)

// internalMarkerHeader is set only by the Relay Client's in-process
// injector, never trusted when present on a request arriving over the
// public listener (stripped in Door.ServeHTTP before the auth hook runs).
const internalMarkerHeader = "X-Wavecast-Internal"

const internalMarkerValue = "injected"

type authKind int

const (
	authKindNone authKind = iota
	authKindInternal
	authKindDevice
	authKindLegacy
)

// authInfo is attached to the request context once the auth hook succeeds.
type authInfo struct {
	Kind     authKind
	DeviceID string
}

type ctxKey int

const authInfoKey ctxKey = 0

func withAuthInfo(ctx context.Context, info authInfo) context.Context {
	return context.WithValue(ctx, authInfoKey, info)
}

func authInfoFromContext(ctx context.Context) (authInfo, bool) {
	v, ok := ctx.Value(authInfoKey).(authInfo)
	return v, ok
}

// publicPaths are reachable without a token, per spec §4.6 step 1.
func isPublicPath(path string) bool {
	if path == "/api/health" || path == "/" {
		return true
	}
	if strings.HasPrefix(path, "/static/") {
		return true
	}
	for _, ext := range []string{".js", ".css", ".png", ".svg", ".ico", ".map"} {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

// extractToken pulls a bearer token from the query string or the
// Authorization header, per spec §4.6 step 3.
func extractToken(r *http.Request) string {
	if tok := r.URL.Query().Get("token"); tok != "" {
		return tok
	}
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}
