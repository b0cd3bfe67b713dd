package frontdoor

import (
	"encoding/json"
	"net/http"

	"github.com/wavecastsh/wavecast/internal/apierr"
	"github.com/wavecastsh/wavecast/internal/protocol"
)

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, errCode, message string) {
	writeJSON(w, status, protocol.ErrorResponse{Error: errCode, Message: message})
}

// writeAPIErr maps a classified *apierr.Error to its status code and
// error-shape response, per spec §7.
func writeAPIErr(w http.ResponseWriter, err error) {
	if e, ok := apierr.As(err); ok {
		writeError(w, apierr.StatusFor(e.Kind), apierr.CodeFor(e.Kind), e.Message)
		return
	}
	writeError(w, http.StatusInternalServerError, "internal", err.Error())
}

func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	return dec.Decode(dst)
}
