// Package respond writes the API's JSON envelope. Every endpoint returns
// {"data": ..., "error": ...} with exactly one side populated.
package respond

import (
	"encoding/json"
	"net/http"
)

type envelope struct {
	Data  interface{} `json:"data"`
	Error *string     `json:"error"`
}

// JSON writes data wrapped in the envelope with the given status code.
func JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Data: data})
}

// Error writes an error message wrapped in the envelope with the given
// status code.
func Error(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Error: &message})
}
