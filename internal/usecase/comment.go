package usecase

import (
	"context"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/cryptoguard/cryptoguard"
	"github.com/cryptoguard/cryptoguard/internal/domain"
	"github.com/cryptoguard/cryptoguard/policy"
	"github.com/cryptoguard/cryptoguard/schemas"
)

const maxCommentLength = 2000

type AddCommentInput struct {
	URL     string
	Address string
	Email   string
	Text    string
}

type VoteInput struct {
	CommentID string
	Address   string
	Email     string
	Upvote    bool
}

type CommentUsecase struct {
	attestations *AttestationUsecase
	identities   *IdentityUsecase
	signer       Signer
	sanitizer    *bluemonday.Policy
	tally        domain.VoteTally
}

func NewCommentUsecase(
	attestations *AttestationUsecase,
	identities *IdentityUsecase,
	signer Signer,
	tally domain.VoteTally,
) *CommentUsecase {
	if !tally.Valid() {
		tally = domain.VoteTallyLatest
	}
	return &CommentUsecase{
		attestations: attestations,
		identities:   identities,
		signer:       signer,
		sanitizer:    bluemonday.StripTagsPolicy(),
		tally:        tally,
	}
}

// Add appends a comment. A later comment by the same author supersedes the earlier
// one in listings; the earlier text stays in History.
func (uc *CommentUsecase) Add(ctx context.Context, input AddCommentInput) ([]domain.CommentView, error) {
	ctx, span := tracer.Start(ctx, "Comment.Usecase.Add")
	defer span.End()

	if input.Address == "" {
		span.RecordError(domain.ErrIdentityRequired)
		return nil, domain.ErrIdentityRequired
	}
	if !cryptoguard.IsValidFlagURL(input.URL) {
		span.RecordError(domain.ErrNotRatable)
		return nil, errors.Wrap(domain.ErrNotRatable, input.URL)
	}

	text := strings.TrimSpace(uc.sanitizer.Sanitize(input.Text))
	if text == "" {
		return nil, domain.ErrEmptyComment
	}
	if utf8.RuneCountInString(text) > maxCommentLength {
		return nil, domain.ErrCommentTooLong
	}

	key := cryptoguard.NormalizeDomain(input.URL)
	span.SetAttributes(attribute.String("domain", key))

	err := checkPolicy(uc.attestations.policy, policy.ActionComment, policy.RequestContext{
		Requester: cryptoguard.NormalizeAddress(input.Address),
		Domain:    key,
		Schema:    schemas.CommentURL,
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	identity, err := uc.identities.Ensure(ctx, input.Address, input.Email)
	if err != nil {
		span.RecordError(errors.Wrap(err, "identities.Ensure failed"))
		return nil, err
	}

	sd, err := uc.signer.Sign(ctx, schemas.CommentURL, key, schemas.Comment{
		Comment:    text,
		EthAddress: identity.Address,
	})
	if err != nil {
		span.RecordError(errors.Wrap(err, "signer.Sign failed"))
		return nil, errors.Wrap(err, "sign comment")
	}

	_, err = uc.attestations.Commit(ctx, sd)
	if err != nil {
		span.RecordError(errors.Wrap(err, "attestations.Commit failed"))
		return nil, err
	}

	return uc.List(ctx, input.URL, identity.Address)
}

// Vote appends a vote on a comment and returns the comment's new tally.
func (uc *CommentUsecase) Vote(ctx context.Context, input VoteInput) (domain.VoteCount, error) {
	ctx, span := tracer.Start(ctx, "Comment.Usecase.Vote")
	defer span.End()

	if input.Address == "" {
		span.RecordError(domain.ErrIdentityRequired)
		return domain.VoteCount{}, domain.ErrIdentityRequired
	}
	commentID := strings.ToLower(strings.TrimSpace(input.CommentID))
	if commentID == "" {
		return domain.VoteCount{}, domain.NotFoundError{Resource: "comment"}
	}
	span.SetAttributes(attribute.String("commentId", commentID))

	target, err := uc.attestations.Get(ctx, commentID)
	if err != nil {
		span.RecordError(err)
		return domain.VoteCount{}, err
	}
	if target.Schema != schemas.CommentURL {
		return domain.VoteCount{}, domain.NotFoundError{Resource: "comment"}
	}

	err = checkPolicy(uc.attestations.policy, policy.ActionVote, policy.RequestContext{
		Requester: cryptoguard.NormalizeAddress(input.Address),
		Domain:    target.IndexingValue,
		Schema:    schemas.VoteURL,
	})
	if err != nil {
		span.RecordError(err)
		return domain.VoteCount{}, err
	}

	identity, err := uc.identities.Ensure(ctx, input.Address, input.Email)
	if err != nil {
		span.RecordError(errors.Wrap(err, "identities.Ensure failed"))
		return domain.VoteCount{}, err
	}

	value := -1
	if input.Upvote {
		value = 1
	}

	sd, err := uc.signer.Sign(ctx, schemas.VoteURL, commentID, schemas.Vote{
		CommentID:  commentID,
		Vote:       value,
		EthAddress: identity.Address,
	})
	if err != nil {
		span.RecordError(errors.Wrap(err, "signer.Sign failed"))
		return domain.VoteCount{}, errors.Wrap(err, "sign vote")
	}

	_, err = uc.attestations.Commit(ctx, sd)
	if err != nil {
		span.RecordError(errors.Wrap(err, "attestations.Commit failed"))
		return domain.VoteCount{}, err
	}

	return uc.tallyFor(ctx, commentID, identity.Address)
}

// List returns the current comment per author with vote tallies, viewer's own first.
func (uc *CommentUsecase) List(ctx context.Context, url, viewer string) ([]domain.CommentView, error) {
	ctx, span := tracer.Start(ctx, "Comment.Usecase.List")
	defer span.End()

	viewer = cryptoguard.NormalizeAddress(viewer)
	key := cryptoguard.NormalizeDomain(url)
	span.SetAttributes(attribute.String("domain", key))

	attestations, err := uc.attestations.Query(ctx, schemas.CommentURL, key)
	if err != nil {
		span.RecordError(errors.Wrap(err, "attestations.Query failed"))
		return nil, err
	}

	views := domain.CurrentComments(domain.DecodeComments(attestations))
	for i := range views {
		count, err := uc.tallyFor(ctx, views[i].ID, viewer)
		if err != nil {
			span.RecordError(errors.Wrap(err, "tallyFor failed"))
			return nil, err
		}
		views[i].VoteCount = count
	}

	domain.SortComments(views, viewer)
	return views, nil
}

// History lists every comment revision an author posted for the url's domain, oldest first.
func (uc *CommentUsecase) History(ctx context.Context, url, author string) ([]domain.Comment, error) {
	ctx, span := tracer.Start(ctx, "Comment.Usecase.History")
	defer span.End()

	key := cryptoguard.NormalizeDomain(url)
	attestations, err := uc.attestations.Query(ctx, schemas.CommentURL, key)
	if err != nil {
		span.RecordError(errors.Wrap(err, "attestations.Query failed"))
		return nil, err
	}

	history := make([]domain.Comment, 0)
	for _, c := range domain.DecodeComments(attestations) {
		if strings.EqualFold(c.Author, author) {
			history = append(history, c)
		}
	}
	sort.SliceStable(history, func(i, j int) bool {
		return history[i].CreatedAt.Before(history[j].CreatedAt)
	})
	return history, nil
}

func (uc *CommentUsecase) tallyFor(ctx context.Context, commentID, viewer string) (domain.VoteCount, error) {
	attestations, err := uc.attestations.Query(ctx, schemas.VoteURL, commentID)
	if err != nil {
		return domain.VoteCount{}, err
	}
	return domain.TallyVotes(domain.DecodeVotes(attestations), viewer, uc.tally), nil
}
