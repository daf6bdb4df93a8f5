package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpload(t *testing.T) {
	store := &fakeStorage{}
	svc := NewUploadService(store, testLogger())
	svc.now = func() time.Time { return time.UnixMilli(1700000000000) }

	res, err := svc.Upload(context.Background(), []byte("jpeg"))
	require.NoError(t, err)
	assert.Regexp(t, `^share_1700000000000_[0-9a-f]+\.jpg$`, res.Filename)
	assert.Equal(t, "https://cdn.example.com/shared-images/"+res.Filename, res.URL)
	assert.Equal(t, []byte("jpeg"), store.data)
}

func TestUploadFailures(t *testing.T) {
	_, err := NewUploadService(&fakeStorage{}, testLogger()).Upload(context.Background(), nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = NewUploadService(&fakeStorage{err: errors.New("access denied")}, testLogger()).Upload(context.Background(), []byte("x"))
	assert.ErrorIs(t, err, ErrStorage)
}
