package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/cryptoguard/cryptoguard"
	"github.com/cryptoguard/cryptoguard/internal/domain"
	"github.com/cryptoguard/cryptoguard/internal/testutil"
	"github.com/cryptoguard/cryptoguard/schemas"
)

type attestationFixture struct {
	uc         *AttestationUsecase
	repo       *mockAttestationRepo
	identities *mockIdentityRepo
	publisher  *mockPublisher
	node       *testutil.Signer
	clock      *testutil.StubClock
}

func newAttestationFixture(t *testing.T) attestationFixture {
	clock := testutil.FixedClock()
	node := &testutil.Signer{Wallet: testutil.NewWallet(t), Clock: clock}
	repo := newMockAttestationRepo()
	identities := newMockIdentityRepo()
	publisher := &mockPublisher{}
	uc := NewAttestationUsecase(repo, NewIdentityUsecase(identities), publisher, node.Address())
	return attestationFixture{uc: uc, repo: repo, identities: identities, publisher: publisher, node: node, clock: clock}
}

func userDocument(w testutil.Wallet, clock *testutil.StubClock, schema, index string, value any) cryptoguard.Document[any] {
	return cryptoguard.Document[any]{
		Schema:        schema,
		IndexingValue: index,
		Value:         value,
		Author:        w.Address,
		CreateAt:      clock.Now(),
	}
}

func TestCommitUserSignedRating(t *testing.T) {
	f := newAttestationFixture(t)
	user := testutil.NewWallet(t)

	sd := user.SignDocument(t, userDocument(user, f.clock, schemas.SafetyRatingURL, "https://www.Example.com/x", schemas.SafetyRating{IsSafe: false}))
	attestation, err := f.uc.Commit(context.Background(), sd)
	if err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	if attestation.IndexingValue != "example.com" {
		t.Fatalf("expected canonical index example.com got %s", attestation.IndexingValue)
	}
	if attestation.ID != cryptoguard.DocumentID(sd.Document) {
		t.Fatalf("expected content addressed id")
	}
	if _, ok := f.identities.identities[user.Address]; !ok {
		t.Fatalf("expected signer identity to be ensured")
	}
	if len(f.publisher.events) != 1 || f.publisher.events[0].Type != domain.EventTypeRating {
		t.Fatalf("expected one rating event got %+v", f.publisher.events)
	}

	// identical re-commit is idempotent
	if _, err := f.uc.Commit(context.Background(), sd); err != nil {
		t.Fatalf("recommit failed: %v", err)
	}
	if len(f.repo.records) != 1 {
		t.Fatalf("expected one stored record got %d", len(f.repo.records))
	}
}

func TestCommitRejectsForgedSignature(t *testing.T) {
	f := newAttestationFixture(t)
	user := testutil.NewWallet(t)
	mallory := testutil.NewWallet(t)

	doc := userDocument(user, f.clock, schemas.SafetyRatingURL, "example.com", schemas.SafetyRating{IsSafe: false})
	sd := mallory.SignDocument(t, doc)

	_, err := f.uc.Commit(context.Background(), sd)
	if !errors.Is(err, domain.ErrSignatureMismatch) {
		t.Fatalf("expected ErrSignatureMismatch got %v", err)
	}
	if len(f.repo.records) != 0 {
		t.Fatalf("expected nothing stored")
	}
}

func TestCommitRejectsDelegationByNonAttester(t *testing.T) {
	f := newAttestationFixture(t)
	user := testutil.NewWallet(t)

	sd := user.SignDocument(t, userDocument(user, f.clock, schemas.CommentURL, "example.com", schemas.Comment{
		Comment:    "impersonating",
		EthAddress: addr("def"),
	}))

	_, err := f.uc.Commit(context.Background(), sd)
	if !errors.Is(err, domain.ErrUnauthorizedDelegation) {
		t.Fatalf("expected ErrUnauthorizedDelegation got %v", err)
	}
}

func TestCommitAllowsNodeDelegation(t *testing.T) {
	f := newAttestationFixture(t)

	sd, err := f.node.Sign(context.Background(), schemas.CommentURL, "example.com", schemas.Comment{
		Comment:    "hello",
		EthAddress: addr("def"),
	})
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	if _, err := f.uc.Commit(context.Background(), sd); err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if _, ok := f.identities.identities[addr("def")]; !ok {
		t.Fatalf("expected delegated identity to be ensured")
	}
}

func TestCommitRejectsUnknownSchema(t *testing.T) {
	f := newAttestationFixture(t)
	user := testutil.NewWallet(t)

	sd := user.SignDocument(t, userDocument(user, f.clock, "https://example.com/unknown.json", "x", map[string]any{"a": 1}))
	_, err := f.uc.Commit(context.Background(), sd)
	if !errors.Is(err, domain.ErrUnsupportedSchema) {
		t.Fatalf("expected ErrUnsupportedSchema got %v", err)
	}
}

func TestCommitRejectsMalformedDocuments(t *testing.T) {
	f := newAttestationFixture(t)
	ctx := context.Background()

	_, err := f.uc.Commit(ctx, cryptoguard.SignedDocument{Document: "not json"})
	if !errors.Is(err, domain.ErrInvalidDocument) {
		t.Fatalf("expected ErrInvalidDocument for non-json got %v", err)
	}

	_, err = f.uc.Commit(ctx, cryptoguard.SignedDocument{Document: `{"value":{}}`})
	if !errors.Is(err, domain.ErrInvalidDocument) {
		t.Fatalf("expected ErrInvalidDocument for missing schema got %v", err)
	}
}

func TestCommitVoteRequiresComment(t *testing.T) {
	f := newAttestationFixture(t)
	user := testutil.NewWallet(t)

	sd := user.SignDocument(t, userDocument(user, f.clock, schemas.VoteURL, "0xdeadbeef", schemas.Vote{CommentID: "0xdeadbeef", Vote: 1}))
	_, err := f.uc.Commit(context.Background(), sd)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found got %v", err)
	}
}

func TestCommitVotePublishesOnCommentDomain(t *testing.T) {
	f := newAttestationFixture(t)
	user := testutil.NewWallet(t)
	ctx := context.Background()

	comment, err := f.uc.Commit(ctx, user.SignDocument(t, userDocument(user, f.clock, schemas.CommentURL, "https://example.com", schemas.Comment{Comment: "foo"})))
	if err != nil {
		t.Fatalf("comment commit failed: %v", err)
	}

	vote, err := f.uc.Commit(ctx, user.SignDocument(t, userDocument(user, f.clock, schemas.VoteURL, comment.ID, schemas.Vote{CommentID: comment.ID, Vote: 1})))
	if err != nil {
		t.Fatalf("vote commit failed: %v", err)
	}
	if vote.IndexingValue != comment.ID {
		t.Fatalf("expected vote indexed by comment id")
	}

	last := f.publisher.events[len(f.publisher.events)-1]
	if last.Type != domain.EventTypeVote || last.Channel != "example.com" {
		t.Fatalf("unexpected vote event %+v", last)
	}
}

func TestCommitStoreFailure(t *testing.T) {
	f := newAttestationFixture(t)
	f.repo.fail = errStore
	user := testutil.NewWallet(t)

	sd := user.SignDocument(t, userDocument(user, f.clock, schemas.SafetyRatingURL, "example.com", schemas.SafetyRating{IsSafe: true}))
	_, err := f.uc.Commit(context.Background(), sd)
	var storeErr *domain.StoreError
	if !errors.As(err, &storeErr) || !storeErr.Write {
		t.Fatalf("expected write StoreError got %v", err)
	}
	if len(f.publisher.events) != 0 {
		t.Fatalf("expected no event for failed write")
	}
}
