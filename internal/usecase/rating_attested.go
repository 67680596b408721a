package usecase

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/cryptoguard/cryptoguard/internal/domain"
	"github.com/cryptoguard/cryptoguard/schemas"
)

const flaggedScanLimit = 1000

// AttestedRatingRepository keeps ratings on the attestation ledger. Writes append a
// rating attestation signed by the node on behalf of the rater, and reads fold the
// history down to the latest verdict per rater.
type AttestedRatingRepository struct {
	attestations *AttestationUsecase
	signer       Signer
}

func NewAttestedRatingRepository(attestations *AttestationUsecase, signer Signer) *AttestedRatingRepository {
	return &AttestedRatingRepository{
		attestations: attestations,
		signer:       signer,
	}
}

func (r *AttestedRatingRepository) Upsert(ctx context.Context, rating domain.Rating) error {
	sd, err := r.signer.Sign(ctx, schemas.SafetyRatingURL, rating.Domain, schemas.SafetyRating{
		URL:        rating.Domain,
		IsSafe:     rating.IsSafe,
		EthAddress: rating.Rater,
	})
	if err != nil {
		return errors.Wrap(err, "sign rating")
	}

	// the rating usecase announces the write itself
	_, _, _, err = r.attestations.commit(ctx, sd)
	return err
}

func (r *AttestedRatingRepository) ListByDomain(ctx context.Context, domainKey string) ([]domain.Rating, error) {
	attestations, err := r.attestations.Query(ctx, schemas.SafetyRatingURL, domainKey)
	if err != nil {
		return nil, err
	}
	return domain.DecodeRatings(attestations), nil
}

func (r *AttestedRatingRepository) ListFlagged(ctx context.Context, limit int) ([]domain.FlaggedSite, error) {
	attestations, err := r.attestations.Recent(ctx, schemas.SafetyRatingURL, flaggedScanLimit)
	if err != nil {
		return nil, err
	}

	byDomain := make(map[string][]domain.Rating)
	for _, rating := range domain.DecodeRatings(attestations) {
		byDomain[rating.Domain] = append(byDomain[rating.Domain], rating)
	}

	sites := make([]domain.FlaggedSite, 0)
	for _, ratings := range byDomain {
		for _, rating := range domain.LatestRatings(ratings) {
			if rating.IsSafe {
				continue
			}
			sites = append(sites, domain.FlaggedSite{
				URL:       rating.Domain,
				FlaggedBy: rating.Rater,
				UpdatedAt: rating.UpdatedAt,
			})
		}
	}

	sort.Slice(sites, func(i, j int) bool {
		return sites[i].UpdatedAt.After(sites[j].UpdatedAt)
	})
	if limit > 0 && len(sites) > limit {
		sites = sites[:limit]
	}
	return sites, nil
}
