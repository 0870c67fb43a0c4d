package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/banshee-data/rockfall/internal/monitoring"
)

var httpLogf = monitoring.Component("HTTP")

// ErrorResponse is the body of every JSON error.
type ErrorResponse struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
}

// ErrorClass maps a sentinel error to the status reported for anything
// wrapping it.
type ErrorClass struct {
	Target error
	Status int
}

// WriteJSON encodes v as the response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		httpLogf("encode %d response: %v", status, err)
	}
}

func WriteJSONOK(w http.ResponseWriter, v interface{}) {
	WriteJSON(w, http.StatusOK, v)
}

// WriteError writes an ErrorResponse.
func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, ErrorResponse{Error: msg, Status: status})
}

// WriteErrorFor reports err with the status of the first class it wraps.
// Unclassified errors are 500s and are logged.
func WriteErrorFor(w http.ResponseWriter, err error, classes ...ErrorClass) {
	for _, c := range classes {
		if errors.Is(err, c.Target) {
			WriteError(w, c.Status, err.Error())
			return
		}
	}
	httpLogf("unclassified error: %v", err)
	WriteError(w, http.StatusInternalServerError, err.Error())
}

// MethodNotAllowed answers 405 and lists the accepted methods in Allow.
func MethodNotAllowed(w http.ResponseWriter, allowed ...string) {
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
}

// MaxBodyBytes caps request bodies read by DecodeJSON.
const MaxBodyBytes = 1 << 20

// DecodeJSON decodes a single JSON object from the request body into v,
// rejecting unknown fields and bodies over MaxBodyBytes.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	if dec.More() {
		return errors.New("decode request body: trailing data after JSON object")
	}
	return nil
}
