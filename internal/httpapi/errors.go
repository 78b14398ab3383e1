package httpapi

import (
	"encoding/json"
	"net/http"

	"tglaunch/pkg/types"
)

// Error messages of the control API.
const (
	msgNotFound       = "not found"
	msgManagerMissing = "manager missing"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, types.ErrorResponse{Error: msg})
}

func notFound(w http.ResponseWriter, r *http.Request) {
	writeJSONError(w, http.StatusNotFound, msgNotFound)
}
