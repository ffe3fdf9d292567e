package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/healthscope/healthscope/pkg/account"
)

// MemoryStore keeps everything in process memory. It is used by tests and
// by the memory store driver for demos.
type MemoryStore struct {
	mu        sync.RWMutex
	accounts  map[string]*account.Account
	byName    map[string]string
	snapshots map[string][]account.HealthSnapshot // by account, insertion order
	now       func() time.Time
}

// NewMemory creates an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		accounts:  make(map[string]*account.Account),
		byName:    make(map[string]string),
		snapshots: make(map[string][]account.HealthSnapshot),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) GetAccount(_ context.Context, id string) (*account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[id]
	if !ok {
		return nil, eris.Wrapf(ErrNotFound, "memory: account %s", id)
	}
	return a.Clone(), nil
}

func (s *MemoryStore) GetAccountByName(ctx context.Context, name string) (*account.Account, error) {
	s.mu.RLock()
	id, ok := s.byName[name]
	s.mu.RUnlock()
	if !ok {
		return nil, eris.Wrapf(ErrNotFound, "memory: account named %q", name)
	}
	return s.GetAccount(ctx, id)
}

func (s *MemoryStore) ListAccounts(_ context.Context, f Filter) ([]account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []account.Account
	for _, a := range s.accounts {
		if f.matches(a) {
			out = append(out, *a.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})

	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return nil, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *MemoryStore) CountAccounts(_ context.Context, f Filter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, a := range s.accounts {
		if f.matches(a) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) UpsertAccount(_ context.Context, a *account.Account) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	stored := a.Clone()

	id, exists := s.byName[a.Name]
	if exists {
		prev := s.accounts[id]
		stored.ID = prev.ID
		stored.CreatedAt = prev.CreatedAt
		stored.HealthScore = prev.HealthScore
		stored.HealthBucket = prev.HealthBucket
		stored.LatestSnapshotID = prev.LatestSnapshotID
	} else {
		stored.ID = uuid.New().String()
		if stored.CreatedAt.IsZero() {
			stored.CreatedAt = now
		}
		stored.HealthScore = 0
		stored.HealthBucket = ""
		stored.LatestSnapshotID = ""
	}
	stored.UpdatedAt = now

	s.accounts[stored.ID] = stored
	s.byName[stored.Name] = stored.ID

	*a = *stored.Clone()
	return !exists, nil
}

func (s *MemoryStore) SaveSnapshot(_ context.Context, snap *account.HealthSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[snap.AccountID]
	if !ok {
		return eris.Wrapf(ErrNotFound, "memory: account %s", snap.AccountID)
	}

	stored := *snap
	stored.Factors = append([]account.HealthFactor(nil), snap.Factors...)
	s.snapshots[a.ID] = append(s.snapshots[a.ID], stored)

	a.HealthScore = snap.Score
	a.HealthBucket = snap.RiskLabel
	a.LatestSnapshotID = snap.ID
	a.UpdatedAt = snap.CalculatedAt
	return nil
}

func (s *MemoryStore) LatestSnapshot(ctx context.Context, accountID string) (*account.HealthSnapshot, error) {
	history, err := s.History(ctx, accountID, 1)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, eris.Wrapf(ErrNotFound, "memory: no snapshots for account %s", accountID)
	}
	return &history[0], nil
}

func (s *MemoryStore) History(_ context.Context, accountID string, limit int) ([]account.HealthSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.accounts[accountID]; !ok {
		return nil, eris.Wrapf(ErrNotFound, "memory: account %s", accountID)
	}

	stored := s.snapshots[accountID]
	out := make([]account.HealthSnapshot, 0, len(stored))
	for i := len(stored) - 1; i >= 0; i-- {
		snap := stored[i]
		snap.Factors = append([]account.HealthFactor(nil), stored[i].Factors...)
		out = append(out, snap)
	}
	// Newest insertion first already; a stable sort keeps it for equal timestamps.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CalculatedAt.After(out[j].CalculatedAt)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
