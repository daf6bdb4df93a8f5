// Package memory is an in-process store with the same contracts as the MySQL
// repositories. Every operation holds one mutex, so debits and credits for the
// same user are serialized.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/digkill/themeshot/internal/models"
	"github.com/digkill/themeshot/internal/repository"
)

type Store struct {
	mu           sync.Mutex
	users        map[string]*models.User
	balances     map[string]int
	transactions map[string]models.Transaction
	usage        []models.UsageLog
	now          func() time.Time
}

func NewStore() *Store {
	return &Store{
		users:        make(map[string]*models.User),
		balances:     make(map[string]int),
		transactions: make(map[string]models.Transaction),
		now:          time.Now,
	}
}

func (s *Store) CreateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.Email]; ok {
		return repository.ErrDuplicateEmail
	}
	u := *user
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now()
	}
	s.users[u.Email] = &u
	user.CreatedAt = u.CreatedAt
	return nil
}

func (s *Store) FindUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[email]
	if !ok {
		return nil, nil
	}
	copied := *u
	return &copied, nil
}

func (s *Store) ListUsers(_ context.Context) ([]models.UserSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.UserSummary, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, models.UserSummary{ID: u.ID, Email: u.Email, Balance: s.balances[u.ID]})
	}
	sort.Slice(out, func(i, j int) bool {
		return s.users[out[i].Email].CreatedAt.Before(s.users[out[j].Email].CreatedAt)
	})
	return out, nil
}

func (s *Store) GetBalance(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances[userID], nil
}

func (s *Store) AddCredits(_ context.Context, userID string, amount int, transactionID string) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if transactionID != "" {
		if _, seen := s.transactions[transactionID]; seen {
			return s.balances[userID], false, nil
		}
		s.transactions[transactionID] = models.Transaction{
			ID:            int64(len(s.transactions) + 1),
			TransactionID: transactionID,
			UserID:        userID,
			CreditsAdded:  amount,
			CreatedAt:     s.now(),
		}
	}
	s.balances[userID] += amount
	return s.balances[userID], true, nil
}

func (s *Store) DebitOne(_ context.Context, userID string) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.balances[userID] < 1 {
		return 0, false, nil
	}
	s.balances[userID]--
	return s.balances[userID], true, nil
}

func (s *Store) LogUsage(_ context.Context, entry *models.UsageLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.ID = int64(len(s.usage) + 1)
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}
	s.usage = append(s.usage, *entry)
	return nil
}

// Usage returns a copy of the usage log for a user, oldest first.
func (s *Store) Usage(userID string) []models.UsageLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.UsageLog
	for _, entry := range s.usage {
		if entry.UserID == userID {
			out = append(out, entry)
		}
	}
	return out
}
