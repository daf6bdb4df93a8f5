package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/digkill/themeshot/internal/fetch"
	"github.com/digkill/themeshot/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) Generate(ctx context.Context, model string, input map[string]any) (string, error) {
	args := m.Called(ctx, model, input)
	return args.String(0), args.Error(1)
}

type fakeFetcher struct {
	mu    sync.Mutex
	err   error
	calls []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (*fetch.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	if f.err != nil {
		return nil, f.err
	}
	return &fetch.Image{URL: url, Bytes: []byte("image:" + url), ContentType: "image/jpeg"}, nil
}

// racingCredits reports every debit as lost to a concurrent request.
type racingCredits struct {
	CreditStore
}

func (r racingCredits) DebitOne(context.Context, string) (int, bool, error) {
	return 0, false, nil
}

type failingUsage struct{}

func (failingUsage) LogUsage(context.Context, *models.UsageLog) error {
	return errors.New("usage table unavailable")
}

type fakeStorage struct {
	name string
	data []byte
	err  error
}

func (f *fakeStorage) Put(_ context.Context, name string, data []byte, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.name = name
	f.data = data
	return "https://cdn.example.com/shared-images/" + name, nil
}
