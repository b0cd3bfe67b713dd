package frontdoor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http/httptest"
	"strings"

	"github.com/wavecastsh/wavecast/internal/protocol"
)

// Inject synthesizes an in-process HTTP request from a sealed api-request
// frame and routes it through the authed handler chain, bypassing the
// network entirely. It satisfies relayclient.RequestInjector structurally.
// Grounded on net/http/httptest, the standard-library answer for synthetic
// request injection — no example repo or ecosystem library offers an
// in-process HTTP injection primitive worth adopting over httptest plumbing
// (see DESIGN.md).
func (d *Door) Inject(ctx context.Context, req protocol.APIRequestFrame) (resp protocol.APIResponseFrame) {
	resp.Type = protocol.DataTypeAPIResponse
	resp.RequestID = req.RequestID

	defer func() {
		if r := recover(); r != nil {
			// Per spec §7: "Panics inside a handler must be caught to
			// preserve the server."
			slog.Error("recovered panic during request injection", "panic", r)
			resp.OK = false
			resp.Status = 500
			resp.Data = mustJSON(map[string]string{"error": fmt.Sprintf("%v", r)})
		}
	}()

	body := strings.NewReader(req.Body)
	httpReq := httptest.NewRequest(req.Method, req.URL, body).WithContext(ctx)
	if req.Body != "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set(internalMarkerHeader, internalMarkerValue)

	rec := httptest.NewRecorder()
	d.authedHandler().ServeHTTP(rec, httpReq)

	resp.OK = rec.Code >= 200 && rec.Code < 300
	resp.Status = rec.Code
	resp.Data = rec.Body.String()
	return resp
}

// CurrentAuthToken returns the token the Relay Client should hand a newly
// joined peer in its welcome frame, satisfying relayclient.AuthTokenSource.
// The host's own legacy access token is used: the peer presents it back on
// subsequent tunneled requests exactly like any other client, so the
// relay-tunneled path is authenticated the same way a direct LAN client
// would be.
func (d *Door) CurrentAuthToken() string {
	return d.creds.CurrentAccessToken()
}

func mustJSON(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
