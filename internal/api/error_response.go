package api

import (
	"net/http"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/lexedge/aigateway/pkg/errors"
)

// errorBody is the JSON envelope for all error responses.
type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Reason  string `json:"reason,omitempty"`
	ResetIn int64  `json:"resetIn,omitempty"`
}

// writeError maps a gateway error onto an HTTP response. Quota denials
// carry a reset hint in seconds and a Retry-After header.
func writeError(w http.ResponseWriter, err error) {
	ge := errors.AsGatewayError(err)

	body := errorBody{
		Error:   ge.Message,
		Details: ge.Details,
		Reason:  ge.Reason,
	}
	if ge.RetryAfter > 0 {
		seconds := int64(ge.RetryAfter.Seconds())
		if seconds < 1 {
			seconds = 1
		}
		body.ResetIn = seconds
		w.Header().Set("Retry-After", strconv.FormatInt(seconds, 10))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(ge.HTTPStatusCode())
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
