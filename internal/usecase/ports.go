package usecase

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/cryptoguard/cryptoguard"
	"github.com/cryptoguard/cryptoguard/internal/domain"
	"github.com/cryptoguard/cryptoguard/policy"
)

// IdentityRepository upserts identities keyed by lowercase address.
type IdentityRepository interface {
	Upsert(ctx context.Context, identity domain.Identity) (domain.Identity, error)
	Get(ctx context.Context, address string) (domain.Identity, error)
}

// RatingRepository stores one current rating per (domain, rater).
type RatingRepository interface {
	Upsert(ctx context.Context, rating domain.Rating) error
	ListByDomain(ctx context.Context, domainKey string) ([]domain.Rating, error)
	ListFlagged(ctx context.Context, limit int) ([]domain.FlaggedSite, error)
}

// AttestationRepository is an append-only store of signed documents.
type AttestationRepository interface {
	Create(ctx context.Context, sd cryptoguard.SignedDocument, attestation domain.Attestation) error
	Get(ctx context.Context, id string) (domain.Attestation, error)
	GetSigned(ctx context.Context, id string) (cryptoguard.SignedDocument, error)
	Query(ctx context.Context, schema, indexingValue string) ([]domain.Attestation, error)
	Recent(ctx context.Context, schema string, limit int) ([]domain.Attestation, error)
}

// Signer produces documents attested by the node key.
type Signer interface {
	Address() string
	Sign(ctx context.Context, schema, indexingValue string, value any) (cryptoguard.SignedDocument, error)
}

type Publisher interface {
	Publish(ctx context.Context, channel string, event cryptoguard.Event) error
}

// RatingCache holds rating lists per domain key between writes. Set replaces an
// entry and is used after a write; Fill only stores when no entry exists, so a
// read that raced a write cannot replace the fresher list.
type RatingCache interface {
	Get(ctx context.Context, domainKey string) ([]domain.Rating, bool)
	Set(ctx context.Context, domainKey string, ratings []domain.Rating)
	Fill(ctx context.Context, domainKey string, ratings []domain.Rating)
	Invalidate(ctx context.Context, domainKey string)
}

// WritePolicy decides whether a write may proceed.
type WritePolicy interface {
	Allowed(action string, ctx policy.RequestContext) (bool, error)
}

func checkPolicy(p WritePolicy, action string, ctx policy.RequestContext) error {
	if p == nil {
		return nil
	}
	allowed, err := p.Allowed(action, ctx)
	if err != nil {
		return errors.Wrap(err, "policy evaluation failed")
	}
	if !allowed {
		return errors.Wrapf(domain.ErrPolicyDenied, "%s by %s", action, ctx.Requester)
	}
	return nil
}

type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now().UTC() }

type nopPublisher struct{}

func (nopPublisher) Publish(ctx context.Context, channel string, event cryptoguard.Event) error {
	return nil
}

type nopRatingCache struct{}

func (nopRatingCache) Get(ctx context.Context, domainKey string) ([]domain.Rating, bool) {
	return nil, false
}
func (nopRatingCache) Set(ctx context.Context, domainKey string, ratings []domain.Rating)  {}
func (nopRatingCache) Fill(ctx context.Context, domainKey string, ratings []domain.Rating) {}
func (nopRatingCache) Invalidate(ctx context.Context, domainKey string)                    {}
