package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/sells-group/geo-enrich/internal/model"
	"github.com/sells-group/geo-enrich/pkg/geocode"
)

// Error kinds reported in response bodies.
const (
	kindInvalidRequest = "invalid_request"
	kindNotFound       = "not_found"
	kindBusy           = "busy"
)

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("api: write response failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, kind, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Kind: kind})
}

// statusFor maps a pipeline or dataset error onto an HTTP status and kind.
// Load failures are the caller's data; persist failures are ours.
func statusFor(err error) (int, string) {
	switch model.KindOf(err) {
	case model.KindCredential:
		return http.StatusBadRequest, string(model.KindCredential)
	case model.KindDataAccess:
		var dae *model.DataAccessError
		if errors.As(err, &dae) && dae.Op == "load" {
			return http.StatusUnprocessableEntity, string(model.KindDataAccess)
		}
		return http.StatusInternalServerError, string(model.KindDataAccess)
	default:
		return http.StatusInternalServerError, string(model.KindInternal)
	}
}

// writeFailure reports err with a redacted message.
func writeFailure(w http.ResponseWriter, err error) {
	status, kind := statusFor(err)
	writeError(w, status, kind, geocode.RedactSecrets(err.Error()))
}
