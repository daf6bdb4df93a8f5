package api

import (
	"encoding/json"
	"math"
	"net/http"
	"time"

	"github.com/digkill/themeshot/internal/service"
)

type authRequest struct {
	Action        string      `json:"action"`
	Email         string      `json:"email"`
	Password      string      `json:"password"`
	Credits       json.Number `json:"credits"`
	TransactionID string      `json:"transactionId"`
	RefreshToken  string      `json:"refresh_token"`
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type sessionResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

func (s *Server) handleAuth(w http.ResponseWriter, r *http.Request) {
	var req authRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	switch req.Action {
	case "register":
		s.register(w, r, req)
	case "login":
		s.login(w, r, req)
	case "refresh":
		s.refresh(w, r, req)
	case "get_credits":
		s.getCredits(w, r)
	case "add_credits":
		s.addCredits(w, r, req)
	default:
		s.writeError(w, http.StatusBadRequest, "Invalid action")
	}
}

func (s *Server) register(w http.ResponseWriter, r *http.Request, req authRequest) {
	user, err := s.services.Auth.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Registration successful. You can sign in now.",
		"user":    userResponse{ID: user.ID, Email: user.Email},
	})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request, req authRequest) {
	res, err := s.services.Auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    userResponse{ID: res.User.ID, Email: res.User.Email},
		"session": sessionResponse{
			AccessToken:  res.Tokens.AccessToken,
			RefreshToken: res.Tokens.RefreshToken,
			ExpiresAt:    res.Tokens.ExpiresAt,
		},
		"credits": res.Credits,
	})
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request, req authRequest) {
	tokens, err := s.services.Auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"session": sessionResponse{
			AccessToken:  tokens.AccessToken,
			RefreshToken: tokens.RefreshToken,
			ExpiresAt:    tokens.ExpiresAt,
		},
	})
}

func (s *Server) getCredits(w http.ResponseWriter, r *http.Request) {
	identity, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	balance, err := s.services.Ledger.GetBalance(r.Context(), identity.UserID)
	if err != nil {
		s.internalError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"credits": balance})
}

func (s *Server) addCredits(w http.ResponseWriter, r *http.Request, req authRequest) {
	header, ok := bearerToken(r)
	if !ok {
		s.writeError(w, http.StatusUnauthorized, "No authorization header")
		return
	}
	amount, err := req.Credits.Int64()
	if err != nil || amount <= 0 || amount > math.MaxInt32 {
		s.writeError(w, http.StatusBadRequest, "Invalid credit amount")
		return
	}
	identity, err := s.services.Auth.VerifyToken(r.Context(), header)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	res, err := s.services.Ledger.Credit(r.Context(), identity.UserID, int(amount), req.TransactionID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if !res.Applied {
		s.writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "Transaction already processed",
			"credits": res.Balance,
		})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"credits": res.Balance,
	})
}

// authenticate writes the 401 itself and reports whether the caller may proceed.
func (s *Server) authenticate(w http.ResponseWriter, r *http.Request) (*service.Identity, bool) {
	header, ok := bearerToken(r)
	if !ok {
		s.writeError(w, http.StatusUnauthorized, "No authorization header")
		return nil, false
	}
	identity, err := s.services.Auth.VerifyToken(r.Context(), header)
	if err != nil {
		s.writeServiceError(w, err)
		return nil, false
	}
	return identity, true
}
