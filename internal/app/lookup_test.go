package app_test

import (
	"context"
	"testing"
	"time"

	"quiz-results-service/internal/app"
)

func TestFindExistingByNamePicksMostRecent(t *testing.T) {
	ctx := context.Background()
	service, _, clock := newTestService()

	if _, err := service.Register(ctx, registration("Dee")); err != nil {
		t.Fatalf("register: %v", err)
	}
	clock.Advance(time.Hour)
	later := registration("Dee")
	later.City = "Santos"
	laterID, err := service.Register(ctx, later)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	found, err := service.FindExisting(ctx, app.LookupQuery{Name: "  dee "})
	if err != nil {
		t.Fatalf("find existing: %v", err)
	}
	if found == nil {
		t.Fatalf("expected a match")
	}
	if found.ID != laterID || found.City != "Santos" {
		t.Fatalf("expected the later Dee, got %+v", found)
	}
}

func TestFindExistingPhoneMatchesDigitSubstring(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newTestService()

	rec := registration("Hal")
	rec.Phone = "+1 (555) 123-4567"
	id, err := service.Register(ctx, rec)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	found, err := service.FindExisting(ctx, app.LookupQuery{Phone: "5551234567"})
	if err != nil {
		t.Fatalf("find existing: %v", err)
	}
	if found == nil || found.ID != id {
		t.Fatalf("expected phone digits to match formatted number, got %+v", found)
	}
}

func TestFindExistingPhoneOnlyAfterNameMisses(t *testing.T) {
	ctx := context.Background()
	service, _, clock := newTestService()

	byPhone := registration("Ira")
	byPhone.Phone = "21 91111-2222"
	phoneID, err := service.Register(ctx, byPhone)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	clock.Advance(time.Hour)
	byName := registration("Jo")
	byName.Phone = "31 93333-4444"
	nameID, err := service.Register(ctx, byName)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	// Name matches: the phone strategy must never run, even though the
	// phone points at a different record.
	found, err := service.FindExisting(ctx, app.LookupQuery{Name: "jo", Phone: "21911112222"})
	if err != nil {
		t.Fatalf("find existing: %v", err)
	}
	if found == nil || found.ID != nameID {
		t.Fatalf("expected name match to win, got %+v", found)
	}

	// Name misses: fallback reaches the phone strategy.
	found, err = service.FindExisting(ctx, app.LookupQuery{Name: "nobody", Phone: "21911112222"})
	if err != nil {
		t.Fatalf("find existing: %v", err)
	}
	if found == nil || found.ID != phoneID {
		t.Fatalf("expected phone fallback match, got %+v", found)
	}
}

func TestFindExistingEmailAndRoleFallbacks(t *testing.T) {
	ctx := context.Background()
	service, _, clock := newTestService()

	rec := registration("Kim")
	rec.Email = "kim@example.com"
	rec.Role = "Manager"
	id, err := service.Register(ctx, rec)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	found, err := service.FindExisting(ctx, app.LookupQuery{Email: "  KIM@example.com "})
	if err != nil {
		t.Fatalf("find by email: %v", err)
	}
	if found == nil || found.ID != id {
		t.Fatalf("expected email match after normalization, got %+v", found)
	}

	clock.Advance(time.Hour)
	other := registration("Lea")
	other.Role = "manager"
	otherID, err := service.Register(ctx, other)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	found, err = service.FindExisting(ctx, app.LookupQuery{Role: "MANAGER"})
	if err != nil {
		t.Fatalf("find by role: %v", err)
	}
	if found == nil || found.ID != otherID {
		t.Fatalf("expected most recent role match, got %+v", found)
	}
}

func TestFindExistingNoMatchIsNotAnError(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newTestService()

	found, err := service.FindExisting(ctx, app.LookupQuery{Name: "ghost", Phone: "000", Email: "x@y.z", Role: "none"})
	if err != nil {
		t.Fatalf("find existing: %v", err)
	}
	if found != nil {
		t.Fatalf("expected no match, got %+v", found)
	}

	found, err = service.FindExisting(ctx, app.LookupQuery{})
	if err != nil {
		t.Fatalf("empty query: %v", err)
	}
	if found != nil {
		t.Fatalf("expected no match for empty query, got %+v", found)
	}
}
