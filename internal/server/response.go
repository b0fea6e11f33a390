package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/blacktop/pinpost/internal/logutil"
	"github.com/blacktop/pinpost/internal/pinpost"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logutil.Debugf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// statusFor maps the pinpost error taxonomy onto HTTP statuses.
func statusFor(err error) int {
	var (
		validation     pinpost.ValidationError
		notImplemented pinpost.NotImplementedError
		upstream       pinpost.UpstreamError
	)
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &notImplemented):
		return http.StatusNotImplemented
	case errors.As(err, &upstream):
		if upstream.Status >= 400 {
			return upstream.Status
		}
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// upstreamMessage prefers the platform's own message over our wrapping.
func upstreamMessage(err error) string {
	var upstream pinpost.UpstreamError
	if errors.As(err, &upstream) {
		return upstream.Message
	}
	return err.Error()
}
