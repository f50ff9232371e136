package httptransport

import (
	"encoding/json"
	"net/http"

	derrors "ekyc/pkg/domain-errors"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError translates coded domain errors into the JSON error envelope.
// Messages are already caller-safe; causes never leave the process.
func writeError(w http.ResponseWriter, err error) {
	code := derrors.CodeOf(err)
	writeJSON(w, statusFor(code), errorResponse{
		Error:   string(code),
		Message: derrors.MessageOf(err),
	})
}

func statusFor(code derrors.Code) int {
	switch code {
	case derrors.CodeValidation:
		return http.StatusBadRequest
	case derrors.CodeNotFound:
		return http.StatusNotFound
	case derrors.CodeInvalidState, derrors.CodeConflict:
		return http.StatusConflict
	case derrors.CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
