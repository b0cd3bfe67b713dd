// Package frontdoor implements the HTTP/WS Front Door (spec §4.6): route
// registration for the external API surface, the single auth hook request
// authorization lives behind, rate limiting, and the WebSocket upgrade
// path. Grounded on internal/relay/relay.go's buildMux/rateLimitMiddleware
// idiom (plain net/http.ServeMux, no framework) and
// internal/oauth/session.go's RequireAuth middleware chain, generalized
// into the exact 5-step order spec §4.6 specifies.
package frontdoor

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/wavecastsh/wavecast/internal/authsession"
	"github.com/wavecastsh/wavecast/internal/capability"
	"github.com/wavecastsh/wavecast/internal/credential"
	"github.com/wavecastsh/wavecast/internal/device"
	"github.com/wavecastsh/wavecast/internal/identity"
	"github.com/wavecastsh/wavecast/internal/pairing"
)

// Capabilities bundles the out-of-scope orchestrator interfaces the Front
// Door is constructed with, per spec §9 "Orchestrator dependencies are
// expressed as small capability interfaces ... passed into the Front Door
// at construction."
type Capabilities struct {
	Searcher  capability.Searcher
	Metadata  capability.MetadataProvider
	Playback  capability.Playback
	Library   capability.LibraryBridge
}

// Door is the HTTP/WS Front Door.
type Door struct {
	identity *identity.Store
	creds    *credential.Manager
	devices  *device.Registry
	pair     *pairing.Coordinator
	sessions *authsession.Manager
	caps     Capabilities

	limiter *rateLimiter
	mux     *http.ServeMux

	logger    *slog.Logger
	startedAt time.Time
}

// Deps bundles the constructor's dependencies.
type Deps struct {
	Identity        *identity.Store
	Credentials     *credential.Manager
	Devices         *device.Registry
	Pairing         *pairing.Coordinator
	Sessions        *authsession.Manager
	Capabilities    Capabilities
	RateLimitPerMin int
	Logger          *slog.Logger
}

// New builds a Door and registers all routes.
func New(d Deps) *Door {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rl := d.RateLimitPerMin
	if rl <= 0 {
		rl = 120
	}

	door := &Door{
		identity:  d.Identity,
		creds:     d.Credentials,
		devices:   d.Devices,
		pair:      d.Pairing,
		sessions:  d.Sessions,
		caps:      d.Capabilities,
		limiter:   newRateLimiter(rl),
		mux:       http.NewServeMux(),
		logger:    logger,
		startedAt: time.Now(),
	}
	door.routes()
	return door
}

// ServeHTTP implements http.Handler for the public listener. The internal
// marker header is stripped here so it can never be forged by an inbound
// network request; it is only ever set by the in-process injector (see
// inject.go), which calls authedHandler directly and skips this method.
func (d *Door) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	r.Header.Del(internalMarkerHeader)
	d.rateLimitMiddleware(d.authMiddleware(d.mux)).ServeHTTP(w, r)
}

// authedHandler is the chain used for in-process request injection: auth
// hook plus routing, but no rate limiting and no header stripping (the
// injector sets the marker itself).
func (d *Door) authedHandler() http.Handler {
	return d.authMiddleware(d.mux)
}
