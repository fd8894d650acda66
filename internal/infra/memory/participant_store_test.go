package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"quiz-results-service/internal/domain"
)

func TestCreateAssignsIDAndRegistrationTime(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	store := NewParticipantStoreWithClock(func() time.Time { return now })

	rec := sampleRecord("Ana")
	id, err := store.Create(ctx, &rec)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if id == "" || rec.ID != id {
		t.Fatalf("expected assigned id, got %q / %q", id, rec.ID)
	}
	if !rec.RegisteredAt.Equal(now) {
		t.Fatalf("expected default registration time %v, got %v", now, rec.RegisteredAt)
	}

	explicit := sampleRecord("Bea")
	explicit.RegisteredAt = now.Add(-time.Hour)
	if _, err := store.Create(ctx, &explicit); err != nil {
		t.Fatalf("create: %v", err)
	}
	if !explicit.RegisteredAt.Equal(now.Add(-time.Hour)) {
		t.Fatalf("explicit registration time must be kept, got %v", explicit.RegisteredAt)
	}
}

func TestGetAndUpdateByID(t *testing.T) {
	ctx := context.Background()
	store := NewParticipantStore()

	if _, err := store.GetByID(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.UpdateByID(ctx, "missing", domain.ParticipantUpdate{}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	rec := sampleRecord("Ana")
	id, err := store.Create(ctx, &rec)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	score := 4
	updated, err := store.UpdateByID(ctx, id, domain.ParticipantUpdate{
		Score:   &score,
		Answers: []domain.Answer{{Question: "Q1", Answer: "yes", Correct: true}},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Score != 4 || len(updated.Answers) != 1 {
		t.Fatalf("expected merged update, got %+v", updated)
	}
	if updated.Name != "Ana" || updated.ID != id {
		t.Fatalf("untouched fields must survive the merge, got %+v", updated)
	}

	got, err := store.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Score != 4 {
		t.Fatalf("expected persisted update, got %+v", got)
	}
}

func TestListSortsByRegistrationDescending(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	current := now
	store := NewParticipantStoreWithClock(func() time.Time { return current })

	first := sampleRecord("First")
	if _, err := store.Create(ctx, &first); err != nil {
		t.Fatalf("create: %v", err)
	}
	current = now.Add(time.Hour)
	second := sampleRecord("Second")
	if _, err := store.Create(ctx, &second); err != nil {
		t.Fatalf("create: %v", err)
	}

	records, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 2 || records[0].Name != "Second" || records[1].Name != "First" {
		t.Fatalf("expected newest first, got %+v", records)
	}
}

func TestListRankingFiltersAndProjects(t *testing.T) {
	ctx := context.Background()
	store := NewParticipantStore()

	scored := sampleRecord("Scored")
	scored.Score = 5
	scored.ElapsedSeconds = 100
	if _, err := store.Create(ctx, &scored); err != nil {
		t.Fatalf("create: %v", err)
	}
	unscored := sampleRecord("Unscored")
	if _, err := store.Create(ctx, &unscored); err != nil {
		t.Fatalf("create: %v", err)
	}

	entries, err := store.ListRanking(ctx, 0)
	if err != nil {
		t.Fatalf("ranking: %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "Scored" {
		t.Fatalf("expected only scored records, got %+v", entries)
	}
	if entries[0].Score != 5 || entries[0].ElapsedSeconds != 100 {
		t.Fatalf("unexpected projection, got %+v", entries[0])
	}
}

func TestFindMostRecentIgnoresEmptyFilter(t *testing.T) {
	ctx := context.Background()
	store := NewParticipantStore()

	rec := sampleRecord("Ana")
	if _, err := store.Create(ctx, &rec); err != nil {
		t.Fatalf("create: %v", err)
	}

	found, err := store.FindMostRecent(ctx, domain.Filter{})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found != nil {
		t.Fatalf("empty filter must match nothing, got %+v", found)
	}
}

func sampleRecord(name string) domain.ParticipantRecord {
	return domain.ParticipantRecord{
		Name:            name,
		Email:           name + "@example.com",
		Role:            "broker",
		Phone:           "11 98765-4321",
		ManagingCompany: "Acme Consortia",
		State:           "SP",
		City:            "Campinas",
	}
}
