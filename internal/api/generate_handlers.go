package api

import (
	"encoding/base64"
	"net/http"

	"github.com/digkill/themeshot/internal/models"
	"github.com/digkill/themeshot/internal/service"
)

type generateRequest struct {
	Image     string `json:"image"`
	Prompt    string `json:"prompt"`
	ThemeName string `json:"themeName"`
	Pipeline  string `json:"pipeline"`
}

type generateResponse struct {
	Success          bool   `json:"success"`
	Output           string `json:"output"`
	Image            string `json:"image"`
	RemainingCredits int    `json:"remainingCredits"`
	Pipeline         string `json:"pipeline"`
	Fallback         bool   `json:"fallback"`
	CreditWarning    string `json:"creditWarning,omitempty"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	identity, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	var req generateRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	var source []byte
	if req.Image != "" {
		data, err := decodeImage(req.Image)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "Image must be base64 encoded")
			return
		}
		source = data
	}

	res, err := s.services.Generation.Generate(r.Context(), service.GenerationRequest{
		UserID:      identity.UserID,
		SourceImage: source,
		Prompt:      req.Prompt,
		ThemeName:   req.ThemeName,
		Pipeline:    models.PipelineName(req.Pipeline),
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, generateResponse{
		Success:          true,
		Output:           res.OutputURL,
		Image:            base64.StdEncoding.EncodeToString(res.Image.Bytes),
		RemainingCredits: res.RemainingCredits,
		Pipeline:         string(res.Pipeline),
		Fallback:         res.FallbackUsed,
		CreditWarning:    res.CreditWarning,
	})
}
