package api

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"github.com/digkill/themeshot/internal/service"
)

type previewRequest struct {
	Prompt string `json:"prompt"`
}

func (s *Server) handleThemePreview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		s.writeError(w, http.StatusBadRequest, "Prompt is required")
		return
	}

	res, err := s.services.Preview.Preview(r.Context(), req.Prompt)
	if err != nil {
		if errors.Is(err, service.ErrNoImageGenerated) {
			s.writeError(w, http.StatusInternalServerError, "No image generated")
			return
		}
		s.log.Error("theme preview failed", "err", err)
		details := "preview provider unavailable"
		var upstream *service.UpstreamError
		if errors.As(err, &upstream) {
			details = upstream.Step + " step failed"
		}
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Preview generation failed", Details: details})
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"image":   base64.StdEncoding.EncodeToString(res.Image.Bytes),
		"url":     res.URL,
	})
}

type uploadRequest struct {
	Image string `json:"image"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	var req uploadRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Image) == "" {
		s.writeError(w, http.StatusBadRequest, "Image data required")
		return
	}
	data, err := decodeImage(req.Image)
	if err != nil || len(data) == 0 {
		s.writeError(w, http.StatusBadRequest, "Image must be base64 encoded")
		return
	}

	res, err := s.services.Upload.Upload(r.Context(), data)
	if err != nil {
		if errors.Is(err, service.ErrStorage) {
			s.log.Error("upload failed", "err", err)
			s.writeError(w, http.StatusInternalServerError, "Upload failed")
			return
		}
		s.writeServiceError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"url":      res.URL,
		"filename": res.Filename,
	})
}
