// Package httpx carries the JSON conventions shared by every handler:
// RFC7807 problem bodies for failures, plain JSON envelopes otherwise.
package httpx

import (
	"encoding/json"
	"io"
	"net/http"
)

// ProblemDetail is the RFC7807 error body.
type ProblemDetail struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

const problemTypeBlank = "about:blank"

// JSON writes data with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// NoContent writes a bare 204.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Problem writes an RFC7807 problem details response.
func Problem(w http.ResponseWriter, status int, title, detail string) {
	JSON(w, status, ProblemDetail{
		Type:   problemTypeBlank,
		Title:  title,
		Status: status,
		Detail: detail,
	})
}

// DecodeJSON decodes the request body into target and drains the remainder
// so the connection stays reusable.
func DecodeJSON(r *http.Request, target any) error {
	defer func() {
		_, _ = io.Copy(io.Discard, r.Body)
	}()
	return json.NewDecoder(r.Body).Decode(target)
}
