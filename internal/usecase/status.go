package usecase

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/cryptoguard/cryptoguard"
	"github.com/cryptoguard/cryptoguard/internal/domain"
)

type StatusUsecase struct {
	ratings RatingRepository
}

func NewStatusUsecase(ratings RatingRepository) *StatusUsecase {
	return &StatusUsecase{ratings: ratings}
}

// Project computes the badge state for a tab url or a bare domain key. Urls with a
// scheme other than http or https are never flagged. It always reads the store.
func (uc *StatusUsecase) Project(ctx context.Context, url string) (domain.TabStatus, error) {
	ctx, span := tracer.Start(ctx, "Status.Usecase.Project")
	defer span.End()

	key := cryptoguard.NormalizeDomain(url)
	span.SetAttributes(attribute.String("domain", key))

	if key == "" || (strings.Contains(url, "://") && !cryptoguard.IsValidFlagURL(url)) {
		return domain.TabStatus{Domain: key}, nil
	}

	records, err := uc.ratings.ListByDomain(ctx, key)
	if err != nil {
		span.RecordError(errors.Wrap(err, "ratings.ListByDomain failed"))
		return domain.TabStatus{}, domain.ReadFailure("status.project", err)
	}

	status := domain.ProjectStatus(records)
	status.Domain = key
	return status, nil
}
