package app

import (
	"context"
	"log"
	"strings"
	"time"

	"quiz-results-service/internal/domain"
)

// ParticipantStore abstracts CRUD and query access to the participant
// collection (in-memory, Mongo, Postgres).
type ParticipantStore interface {
	// Create inserts a record and returns the store-assigned id. A zero
	// RegisteredAt defaults to the insertion time.
	Create(ctx context.Context, rec *domain.ParticipantRecord) (string, error)
	GetByID(ctx context.Context, id string) (domain.ParticipantRecord, error)
	// UpdateByID merges only the supplied fields and returns the post-update
	// record.
	UpdateByID(ctx context.Context, id string, upd domain.ParticipantUpdate) (domain.ParticipantRecord, error)
	// List returns every record, most recently registered first.
	List(ctx context.Context) ([]domain.ParticipantRecord, error)
	// ListRanking returns the leaderboard view: score > 0 only, ordered by
	// score descending then elapsed seconds ascending. limit <= 0 means
	// unbounded.
	ListRanking(ctx context.Context, limit int) ([]domain.RankingEntry, error)
	// FindMostRecent returns the most recently registered record matching
	// the filter, or (nil, nil) when nothing matches.
	FindMostRecent(ctx context.Context, f domain.Filter) (*domain.ParticipantRecord, error)
}

// RankingSource serves the leaderboard view, optionally through a cache.
type RankingSource interface {
	Ranking(ctx context.Context, limit int) ([]domain.RankingEntry, error)
	// Invalidate discards any cached view after a score-affecting write.
	Invalidate(ctx context.Context)
}

// directRanking reads the leaderboard straight from the store.
type directRanking struct {
	store ParticipantStore
}

// NewDirectRanking returns a cache-less RankingSource for deployments
// without Redis.
func NewDirectRanking(store ParticipantStore) RankingSource {
	return &directRanking{store: store}
}

func (d *directRanking) Ranking(ctx context.Context, limit int) ([]domain.RankingEntry, error) {
	return d.store.ListRanking(ctx, limit)
}

func (d *directRanking) Invalidate(context.Context) {}

// ResultSubmission carries a completed quiz result, either for a brand-new
// record or for updating one found via the lookup chain.
type ResultSubmission struct {
	Name            string
	Email           string
	Role            string
	Phone           string
	ManagingCompany string
	State           string
	City            string
	Products        []string
	Other           string
	Answers         []domain.Answer
	Score           int
	ElapsedSeconds  int
}

// ParticipantService implements the registration, scoring, ranking, lookup,
// and reset use cases over a ParticipantStore.
type ParticipantService struct {
	store    ParticipantStore
	rankings RankingSource
	broker   *RankingBroker
	now      func() time.Time
}

func NewParticipantService(store ParticipantStore, rankings RankingSource, broker *RankingBroker) *ParticipantService {
	return NewParticipantServiceWithClock(store, rankings, broker, time.Now)
}

// NewParticipantServiceWithClock allows deterministic timestamps in tests.
func NewParticipantServiceWithClock(store ParticipantStore, rankings RankingSource, broker *RankingBroker, now func() time.Time) *ParticipantService {
	if rankings == nil {
		rankings = NewDirectRanking(store)
	}
	return &ParticipantService{store: store, rankings: rankings, broker: broker, now: now}
}

// Register validates and inserts a new participant record. The supplied
// record may carry initial answers and a score; missing values default to
// zero, which keeps the record out of the ranking until a result arrives.
func (s *ParticipantService) Register(ctx context.Context, rec domain.ParticipantRecord) (string, error) {
	if err := validateRecord(rec); err != nil {
		return "", err
	}
	rec.ID = ""
	id, err := s.store.Create(ctx, &rec)
	if err != nil {
		return "", err
	}
	if rec.Score > 0 {
		s.afterScoreChange(ctx)
	}
	return id, nil
}

// Get fetches a single record by id.
func (s *ParticipantService) Get(ctx context.Context, id string) (domain.ParticipantRecord, error) {
	return s.store.GetByID(ctx, id)
}

// List returns all records, most recently registered first.
func (s *ParticipantService) List(ctx context.Context) ([]domain.ParticipantRecord, error) {
	return s.store.List(ctx)
}

// SubmitAnswers records the answers and score for an existing participant.
func (s *ParticipantService) SubmitAnswers(ctx context.Context, id string, answers []domain.Answer, score int) (domain.ParticipantRecord, error) {
	if err := validateScore(score, 0); err != nil {
		return domain.ParticipantRecord{}, err
	}
	if answers == nil {
		answers = []domain.Answer{}
	}
	rec, err := s.store.UpdateByID(ctx, id, domain.ParticipantUpdate{
		Answers: answers,
		Score:   &score,
	})
	if err != nil {
		return domain.ParticipantRecord{}, err
	}
	s.afterScoreChange(ctx)
	return rec, nil
}

// SubmitAnswersWithTime additionally records how long the quiz took.
func (s *ParticipantService) SubmitAnswersWithTime(ctx context.Context, id string, answers []domain.Answer, score, elapsedSeconds int) (domain.ParticipantRecord, error) {
	if err := validateScore(score, elapsedSeconds); err != nil {
		return domain.ParticipantRecord{}, err
	}
	if answers == nil {
		answers = []domain.Answer{}
	}
	rec, err := s.store.UpdateByID(ctx, id, domain.ParticipantUpdate{
		Answers:        answers,
		Score:          &score,
		ElapsedSeconds: &elapsedSeconds,
	})
	if err != nil {
		return domain.ParticipantRecord{}, err
	}
	s.afterScoreChange(ctx)
	return rec, nil
}

// Ranking returns the leaderboard view, bounded when limit > 0.
func (s *ParticipantService) Ranking(ctx context.Context, limit int) ([]domain.RankingEntry, error) {
	return s.rankings.Ranking(ctx, limit)
}

// SubmitResult always inserts a fresh record; deduplication is the caller's
// job via FindExisting followed by UpdateResult.
func (s *ParticipantService) SubmitResult(ctx context.Context, res ResultSubmission) (string, error) {
	rec := res.record()
	rec.RegisteredAt = s.now()
	if err := validateRecord(rec); err != nil {
		return "", err
	}
	id, err := s.store.Create(ctx, &rec)
	if err != nil {
		return "", err
	}
	s.afterScoreChange(ctx)
	return id, nil
}

// UpdateResult overwrites the identity and result fields of an existing
// record and refreshes its registration time.
func (s *ParticipantService) UpdateResult(ctx context.Context, id string, res ResultSubmission) (domain.ParticipantRecord, error) {
	rec := res.record()
	if err := validateRecord(rec); err != nil {
		return domain.ParticipantRecord{}, err
	}
	now := s.now()
	answers := res.Answers
	if answers == nil {
		answers = []domain.Answer{}
	}
	products := res.Products
	updated, err := s.store.UpdateByID(ctx, id, domain.ParticipantUpdate{
		Name:            &res.Name,
		Email:           &res.Email,
		Role:            &res.Role,
		Phone:           &res.Phone,
		ManagingCompany: &res.ManagingCompany,
		State:           &res.State,
		City:            &res.City,
		Products:        &products,
		Other:           &res.Other,
		Answers:         answers,
		Score:           &res.Score,
		ElapsedSeconds:  &res.ElapsedSeconds,
		RegisteredAt:    &now,
	})
	if err != nil {
		return domain.ParticipantRecord{}, err
	}
	s.afterScoreChange(ctx)
	return updated, nil
}

// ResetProgress clears a participant's score and elapsed time so they can
// retry, refreshing the registration timestamp. Identity fields are left
// untouched.
func (s *ParticipantService) ResetProgress(ctx context.Context, id string) (domain.ParticipantRecord, error) {
	zero := 0
	now := s.now()
	rec, err := s.store.UpdateByID(ctx, id, domain.ParticipantUpdate{
		Score:          &zero,
		ElapsedSeconds: &zero,
		RegisteredAt:   &now,
	})
	if err != nil {
		return domain.ParticipantRecord{}, err
	}
	s.afterScoreChange(ctx)
	return rec, nil
}

// SubscribeRanking returns a channel of leaderboard snapshots. The caller
// must invoke cancel to avoid leaks.
func (s *ParticipantService) SubscribeRanking(ctx context.Context) (<-chan []domain.RankingEntry, func(), error) {
	if s.broker == nil {
		return nil, nil, ErrNoBroker
	}
	initial, err := s.rankings.Ranking(ctx, 0)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := s.broker.Subscribe(initial)
	return ch, cancel, nil
}

// afterScoreChange drops the cached ranking and pushes a fresh snapshot to
// live subscribers. Publish failures only cost liveness, never the write.
func (s *ParticipantService) afterScoreChange(ctx context.Context) {
	s.rankings.Invalidate(ctx)
	if s.broker == nil || !s.broker.HasSubscribers() {
		return
	}
	entries, err := s.rankings.Ranking(ctx, 0)
	if err != nil {
		log.Printf("ranking publish skipped: %v", err)
		return
	}
	s.broker.Publish(entries)
}

func (r ResultSubmission) record() domain.ParticipantRecord {
	return domain.ParticipantRecord{
		Name:            r.Name,
		Email:           r.Email,
		Role:            r.Role,
		Phone:           r.Phone,
		ManagingCompany: r.ManagingCompany,
		State:           r.State,
		City:            r.City,
		Products:        r.Products,
		Other:           r.Other,
		Answers:         r.Answers,
		Score:           r.Score,
		ElapsedSeconds:  r.ElapsedSeconds,
	}
}

// validateRecord enforces the required registration fields explicitly
// instead of relying on store-level schema coercion.
func validateRecord(rec domain.ParticipantRecord) error {
	required := []struct {
		field string
		value string
	}{
		{"name", rec.Name},
		{"email", rec.Email},
		{"role", rec.Role},
		{"phone", rec.Phone},
		{"managingCompany", rec.ManagingCompany},
		{"state", rec.State},
		{"city", rec.City},
	}
	var fields []domain.FieldError
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			fields = append(fields, domain.FieldError{Field: r.field, Reason: "required"})
		}
	}
	if rec.Score < 0 {
		fields = append(fields, domain.FieldError{Field: "score", Reason: "must not be negative"})
	}
	if rec.ElapsedSeconds < 0 {
		fields = append(fields, domain.FieldError{Field: "elapsedSeconds", Reason: "must not be negative"})
	}
	if fields != nil {
		return &domain.ValidationError{Fields: fields}
	}
	return nil
}

func validateScore(score, elapsedSeconds int) error {
	var fields []domain.FieldError
	if score < 0 {
		fields = append(fields, domain.FieldError{Field: "score", Reason: "must not be negative"})
	}
	if elapsedSeconds < 0 {
		fields = append(fields, domain.FieldError{Field: "elapsedSeconds", Reason: "must not be negative"})
	}
	if fields != nil {
		return &domain.ValidationError{Fields: fields}
	}
	return nil
}
