package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cryptoguard/cryptoguard/internal/domain"
)

func TestStatusScenarioFlagged(t *testing.T) {
	ratings, repo, _, cache, _, _ := newRatingFixture()
	status := NewStatusUsecase(repo)
	ctx := context.Background()

	if _, err := ratings.Rate(ctx, RateInput{URL: "https://Example.com/page", Address: addr("ABC"), IsSafe: false}); err != nil {
		t.Fatalf("rate failed: %v", err)
	}
	// a stale cache must not affect the projection
	cache.entries["example.com"] = nil

	got, err := status.Project(ctx, "https://example.com")
	if err != nil {
		t.Fatalf("project failed: %v", err)
	}
	if !got.Flagged || got.Count != 1 || got.Domain != "example.com" {
		t.Fatalf("expected {flagged:true count:1} got %+v", got)
	}
}

func TestStatusProjectsBareDomainKey(t *testing.T) {
	ratings, repo, _, _, _, _ := newRatingFixture()
	status := NewStatusUsecase(repo)
	ctx := context.Background()

	if _, err := ratings.Rate(ctx, RateInput{URL: "https://Example.com/page", Address: addr("ABC"), IsSafe: false}); err != nil {
		t.Fatalf("rate failed: %v", err)
	}

	got, err := status.Project(ctx, "example.com")
	if err != nil {
		t.Fatalf("project failed: %v", err)
	}
	if !got.Flagged || got.Count != 1 || got.Domain != "example.com" {
		t.Fatalf("expected {flagged:true count:1} got %+v", got)
	}

	got, err = status.Project(ctx, "www.example.com")
	if err != nil {
		t.Fatalf("project failed: %v", err)
	}
	if !got.Flagged || got.Count != 1 {
		t.Fatalf("expected www host to share the key, got %+v", got)
	}
}

func TestStatusEmptyInput(t *testing.T) {
	repo := newMockRatingRepo()
	repo.failRead = errStore
	status := NewStatusUsecase(repo)

	got, err := status.Project(context.Background(), "")
	if err != nil || got.Flagged {
		t.Fatalf("expected unflagged without store access, got %+v %v", got, err)
	}
}

func TestStatusNonRatableURL(t *testing.T) {
	repo := newMockRatingRepo()
	repo.failRead = errStore
	status := NewStatusUsecase(repo)

	got, err := status.Project(context.Background(), "chrome://newtab")
	if err != nil {
		t.Fatalf("expected no store access for chrome url, got %v", err)
	}
	if got.Flagged {
		t.Fatalf("expected unflagged")
	}
}

func TestStatusReadFailure(t *testing.T) {
	repo := newMockRatingRepo()
	repo.failRead = errStore
	status := NewStatusUsecase(repo)

	_, err := status.Project(context.Background(), "https://example.com")
	var storeErr *domain.StoreError
	if !errors.As(err, &storeErr) {
		t.Fatalf("expected StoreError got %v", err)
	}
}

func TestStatusOverAttestedRatings(t *testing.T) {
	f := newAttestationFixture(t)
	repo := NewAttestedRatingRepository(f.uc, f.node)
	ratings := NewRatingUsecase(repo, NewIdentityUsecase(f.identities), nil, f.publisher, f.clock)
	status := NewStatusUsecase(repo)
	ctx := context.Background()

	if _, err := ratings.Rate(ctx, RateInput{URL: "https://example.com", Address: addr("abc"), IsSafe: true}); err != nil {
		t.Fatalf("first rate failed: %v", err)
	}
	f.clock.Advance(time.Minute)
	summary, err := ratings.Rate(ctx, RateInput{URL: "https://example.com", Address: addr("abc"), IsSafe: false})
	if err != nil {
		t.Fatalf("second rate failed: %v", err)
	}

	if len(f.repo.records) != 2 {
		t.Fatalf("expected append-only history of 2 got %d", len(f.repo.records))
	}
	if summary.TotalRatings != 1 || summary.UnsafeCount != 1 {
		t.Fatalf("expected one current rating per identity, got %+v", summary)
	}
	if len(f.publisher.events) != 2 {
		t.Fatalf("expected one event per rate, got %d", len(f.publisher.events))
	}

	got, err := status.Project(ctx, "https://www.example.com/")
	if err != nil {
		t.Fatalf("project failed: %v", err)
	}
	if !got.Flagged || got.Count != 1 {
		t.Fatalf("expected flagged count 1 got %+v", got)
	}

	sites, err := ratings.Flagged(ctx, 10)
	if err != nil {
		t.Fatalf("flagged failed: %v", err)
	}
	if len(sites) != 1 || sites[0].FlaggedBy != addr("abc") {
		t.Fatalf("unexpected flagged sites %+v", sites)
	}
}
