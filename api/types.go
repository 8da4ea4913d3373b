package api

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the body of every non-2xx response. Field and Key are set
// only for rejected batches.
type ErrorResponse struct {
	Field   string `json:"field,omitempty"`
	Key     string `json:"key,omitempty"`
	Message string `json:"message"`
}

// Fixed client-facing messages.
const (
	MessageUnauthorized     = "unauthorized"
	MessageStoreUnavailable = "store unavailable, retry"
	MessageInternal         = "internal server error"
	MessageBodyTooLarge     = "request body too large"
	MessageUnknownTable     = "unknown table"
)

// DefaultMaxBodyBytes bounds update request bodies.
const DefaultMaxBodyBytes int64 = 4 << 20

// BroadcastRequest is the body of POST /tx/broadcast.
type BroadcastRequest struct {
	// Tx is the 0x-prefixed hex encoding of a signed transaction.
	Tx string `json:"tx"`
}

// BroadcastResponse carries the hash of a forwarded transaction.
type BroadcastResponse struct {
	Hash string `json:"hash"`
}

// WriteJSON writes v with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

// WriteError writes an ErrorResponse with only a message.
func WriteError(w http.ResponseWriter, status int, message string) error {
	return WriteJSON(w, status, ErrorResponse{Message: message})
}
