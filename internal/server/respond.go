package server

import (
	"encoding/json"
	"net/http"
)

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// WriteDetail writes the error shape all services share: {"detail": msg}.
func WriteDetail(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, map[string]string{"detail": msg})
}

// Completed wraps a handler result in the response shape the pipeline
// clients expect: {"status": "completed", "result": ...}.
func Completed(w http.ResponseWriter, result any) {
	WriteJSON(w, http.StatusOK, map[string]any{
		"status": "completed",
		"result": result,
	})
}
