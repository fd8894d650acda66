package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"quiz-results-service/internal/domain"
)

// ParticipantStore is an in-memory implementation of app.ParticipantStore,
// used for tests and for running the service without a database.
type ParticipantStore struct {
	clock func() time.Time

	mu      sync.RWMutex
	records map[string]*domain.ParticipantRecord
	order   []string // insertion order; residual sort ties follow it
}

func NewParticipantStore() *ParticipantStore {
	return NewParticipantStoreWithClock(time.Now)
}

// NewParticipantStoreWithClock allows deterministic timestamps in tests.
func NewParticipantStoreWithClock(clock func() time.Time) *ParticipantStore {
	return &ParticipantStore{
		clock:   clock,
		records: make(map[string]*domain.ParticipantRecord),
	}
}

func (s *ParticipantStore) Create(_ context.Context, rec *domain.ParticipantRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *rec
	stored.ID = uuid.NewString()
	if stored.RegisteredAt.IsZero() {
		stored.RegisteredAt = s.clock()
	}
	if stored.Answers == nil {
		stored.Answers = []domain.Answer{}
	}
	s.records[stored.ID] = &stored
	s.order = append(s.order, stored.ID)
	rec.ID = stored.ID
	rec.RegisteredAt = stored.RegisteredAt
	return stored.ID, nil
}

func (s *ParticipantStore) GetByID(_ context.Context, id string) (domain.ParticipantRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return domain.ParticipantRecord{}, domain.ErrNotFound
	}
	return *rec, nil
}

func (s *ParticipantStore) UpdateByID(_ context.Context, id string, upd domain.ParticipantUpdate) (domain.ParticipantRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return domain.ParticipantRecord{}, domain.ErrNotFound
	}
	upd.Apply(rec)
	return *rec, nil
}

func (s *ParticipantStore) List(_ context.Context) ([]domain.ParticipantRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.ParticipantRecord, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.records[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RegisteredAt.After(out[j].RegisteredAt)
	})
	return out, nil
}

func (s *ParticipantStore) ListRanking(_ context.Context, limit int) ([]domain.RankingEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]domain.RankingEntry, 0)
	for _, id := range s.order {
		rec := s.records[id]
		if rec.Score <= 0 {
			continue
		}
		entries = append(entries, rec.RankingView())
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].ElapsedSeconds < entries[j].ElapsedSeconds
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (s *ParticipantStore) FindMostRecent(_ context.Context, f domain.Filter) (*domain.ParticipantRecord, error) {
	if f.IsZero() {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *domain.ParticipantRecord
	for _, id := range s.order {
		rec := s.records[id]
		if !matches(rec, f) {
			continue
		}
		if best == nil || rec.RegisteredAt.After(best.RegisteredAt) {
			best = rec
		}
	}
	if best == nil {
		return nil, nil
	}
	found := *best
	return &found, nil
}

func matches(rec *domain.ParticipantRecord, f domain.Filter) bool {
	switch {
	case f.NameFold != "":
		return strings.EqualFold(rec.Name, f.NameFold)
	case f.PhoneDigits != "":
		return strings.Contains(digitsOnly(rec.Phone), f.PhoneDigits)
	case f.EmailExact != "":
		return rec.Email == f.EmailExact
	case f.RoleFold != "":
		return strings.EqualFold(rec.Role, f.RoleFold)
	}
	return false
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
