package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/digkill/themeshot/internal/storage"
)

const sharedImageContentType = "image/jpeg"

type UploadResult struct {
	URL      string
	Filename string
}

// UploadService publishes images users want to share.
type UploadService struct {
	storage ObjectStorage
	log     *slog.Logger
	now     func() time.Time
}

func NewUploadService(store ObjectStorage, log *slog.Logger) *UploadService {
	return &UploadService{storage: store, log: log, now: time.Now}
}

func (s *UploadService) Upload(ctx context.Context, data []byte) (*UploadResult, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: image data required", ErrInvalidInput)
	}
	name := storage.ShareName(s.now(), sharedImageContentType)
	url, err := s.storage.Put(ctx, name, data, sharedImageContentType)
	if err != nil {
		if s.log != nil {
			s.log.Error("failed to upload shared image", "filename", name, "err", err)
		}
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return &UploadResult{URL: url, Filename: name}, nil
}
