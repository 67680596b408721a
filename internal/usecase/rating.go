package usecase

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/cryptoguard/cryptoguard"
	"github.com/cryptoguard/cryptoguard/internal/domain"
	"github.com/cryptoguard/cryptoguard/policy"
	"github.com/cryptoguard/cryptoguard/schemas"
)

type RateInput struct {
	URL     string
	Address string
	Email   string
	IsSafe  bool
}

type RatingUsecase struct {
	repo       RatingRepository
	identities *IdentityUsecase
	cache      RatingCache
	publisher  Publisher
	policy     WritePolicy
	clock      Clock
}

func NewRatingUsecase(
	repo RatingRepository,
	identities *IdentityUsecase,
	cache RatingCache,
	publisher Publisher,
	clock Clock,
) *RatingUsecase {
	if cache == nil {
		cache = nopRatingCache{}
	}
	if publisher == nil {
		publisher = nopPublisher{}
	}
	if clock == nil {
		clock = RealClock{}
	}
	return &RatingUsecase{
		repo:       repo,
		identities: identities,
		cache:      cache,
		publisher:  publisher,
		clock:      clock,
	}
}

// WithPolicy makes Rate subject to p.
func (uc *RatingUsecase) WithPolicy(p WritePolicy) *RatingUsecase {
	uc.policy = p
	return uc
}

// Rate records the caller's verdict for the url's domain, replacing any earlier one,
// and returns the re-read aggregate.
func (uc *RatingUsecase) Rate(ctx context.Context, input RateInput) (domain.RatingSummary, error) {
	ctx, span := tracer.Start(ctx, "Rating.Usecase.Rate")
	defer span.End()

	if input.Address == "" {
		span.RecordError(domain.ErrIdentityRequired)
		return domain.RatingSummary{}, domain.ErrIdentityRequired
	}
	if !cryptoguard.IsValidFlagURL(input.URL) {
		span.RecordError(domain.ErrNotRatable)
		return domain.RatingSummary{}, errors.Wrap(domain.ErrNotRatable, input.URL)
	}

	key := cryptoguard.NormalizeDomain(input.URL)
	span.SetAttributes(attribute.String("domain", key))

	err := checkPolicy(uc.policy, policy.ActionRate, policy.RequestContext{
		Requester: cryptoguard.NormalizeAddress(input.Address),
		Domain:    key,
		Schema:    schemas.SafetyRatingURL,
	})
	if err != nil {
		span.RecordError(err)
		return domain.RatingSummary{}, err
	}

	identity, err := uc.identities.Ensure(ctx, input.Address, input.Email)
	if err != nil {
		span.RecordError(errors.Wrap(err, "identities.Ensure failed"))
		return domain.RatingSummary{}, err
	}

	err = uc.repo.Upsert(ctx, domain.Rating{
		Domain:    key,
		Rater:     identity.Address,
		IsSafe:    input.IsSafe,
		UpdatedAt: uc.clock.Now(),
	})
	if err != nil {
		span.RecordError(errors.Wrap(err, "repo.Upsert failed"))
		return domain.RatingSummary{}, domain.WriteFailure("rating.upsert", err)
	}

	uc.cache.Invalidate(ctx, key)
	publish(ctx, uc.publisher, key, cryptoguard.Event{
		Type:    domain.EventTypeRating,
		Channel: key,
		Domain:  key,
		At:      uc.clock.Now(),
	})

	records, err := uc.repo.ListByDomain(ctx, key)
	if err != nil {
		span.RecordError(errors.Wrap(err, "repo.ListByDomain failed"))
		return domain.RatingSummary{}, domain.ReadFailure("rating.list", err)
	}
	uc.cache.Set(ctx, key, records)

	summary := domain.AggregateRatings(records, identity.Address)
	summary.Domain = key
	return summary, nil
}

func (uc *RatingUsecase) Summary(ctx context.Context, url, viewer string) (domain.RatingSummary, error) {
	ctx, span := tracer.Start(ctx, "Rating.Usecase.Summary")
	defer span.End()

	key := cryptoguard.NormalizeDomain(url)
	span.SetAttributes(attribute.String("domain", key))

	records, ok := uc.cache.Get(ctx, key)
	if !ok {
		var err error
		records, err = uc.repo.ListByDomain(ctx, key)
		if err != nil {
			span.RecordError(errors.Wrap(err, "repo.ListByDomain failed"))
			return domain.RatingSummary{}, domain.ReadFailure("rating.list", err)
		}
		uc.cache.Fill(ctx, key, records)
	}

	summary := domain.AggregateRatings(records, cryptoguard.NormalizeAddress(viewer))
	summary.Domain = key
	return summary, nil
}

func (uc *RatingUsecase) Flagged(ctx context.Context, limit int) ([]domain.FlaggedSite, error) {
	ctx, span := tracer.Start(ctx, "Rating.Usecase.Flagged")
	defer span.End()

	sites, err := uc.repo.ListFlagged(ctx, limit)
	if err != nil {
		span.RecordError(errors.Wrap(err, "repo.ListFlagged failed"))
		return nil, domain.ReadFailure("rating.flagged", err)
	}
	return sites, nil
}

// publish is best effort: the write it announces has already succeeded.
func publish(ctx context.Context, publisher Publisher, channel string, event cryptoguard.Event) {
	err := publisher.Publish(ctx, channel, event)
	if err != nil {
		slog.WarnContext(
			ctx, "failed to publish event",
			slog.String("channel", channel),
			slog.String("type", event.Type),
			slog.String("error", err.Error()),
			slog.String("module", "usecase"),
		)
	}
}
