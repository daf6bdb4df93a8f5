package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/digkill/themeshot/internal/service"
)

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}

func (s *Server) internalError(w http.ResponseWriter, err error) {
	s.log.Error("api handler error", "err", err)
	s.writeError(w, http.StatusInternalServerError, "Internal server error")
}

// writeServiceError maps service sentinels onto status codes. Only the
// sentinel message leaves the process.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	var upstream *service.UpstreamError
	switch {
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrEmailTaken):
		s.writeError(w, http.StatusBadRequest, clientMessage(err))
	case errors.Is(err, service.ErrUnauthorized):
		s.writeError(w, http.StatusUnauthorized, "Invalid token")
	case errors.Is(err, service.ErrInvalidCredentials):
		s.writeError(w, http.StatusUnauthorized, "Invalid email or password")
	case errors.Is(err, service.ErrInsufficientCredit):
		s.writeError(w, http.StatusPaymentRequired, "Insufficient credits")
	case errors.As(err, &upstream):
		s.log.Error("upstream generation failed", "pipeline", upstream.Pipeline, "step", upstream.Step, "status", upstream.Status, "err", upstream.Err)
		details := fmt.Sprintf("%s step failed", upstream.Step)
		if upstream.Status != 0 {
			details += fmt.Sprintf(" with status %d", upstream.Status)
		}
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Generation failed", Details: details})
	default:
		s.internalError(w, err)
	}
}

// clientMessage drops the sentinel prefix from "invalid input: prompt is
// required" style errors and capitalises the rest.
func clientMessage(err error) string {
	msg := err.Error()
	if _, rest, ok := strings.Cut(msg, ": "); ok && rest != "" {
		msg = rest
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}

func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return false
		}
		s.writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return false
	}
	return true
}

// decodeImage accepts raw base64 or a data URI.
func decodeImage(value string) ([]byte, error) {
	value = strings.TrimSpace(value)
	if strings.HasPrefix(value, "data:") {
		if _, payload, ok := strings.Cut(value, ","); ok {
			value = payload
		}
	}
	data, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 image: %w", err)
	}
	return data, nil
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", false
	}
	return header, true
}
