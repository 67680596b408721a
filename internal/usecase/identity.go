package usecase

import (
	"context"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/cryptoguard/cryptoguard"
	"github.com/cryptoguard/cryptoguard/internal/domain"
)

var tracer = otel.Tracer("usecase")

type IdentityUsecase struct {
	repo IdentityRepository
}

func NewIdentityUsecase(repo IdentityRepository) *IdentityUsecase {
	return &IdentityUsecase{repo: repo}
}

// Ensure upserts the identity for address. A non-empty email replaces the stored one.
func (uc *IdentityUsecase) Ensure(ctx context.Context, address, email string) (domain.Identity, error) {
	ctx, span := tracer.Start(ctx, "Identity.Usecase.Ensure")
	defer span.End()

	address = cryptoguard.NormalizeAddress(address)
	if address == "" {
		span.RecordError(domain.ErrIdentityRequired)
		return domain.Identity{}, domain.ErrIdentityRequired
	}
	if !cryptoguard.IsAddress(address) {
		span.RecordError(domain.ErrInvalidAddress)
		return domain.Identity{}, errors.Wrap(domain.ErrInvalidAddress, address)
	}
	span.SetAttributes(attribute.String("address", address))

	identity := domain.Identity{Address: address}
	if email != "" {
		identity.Email = &email
	}

	result, err := uc.repo.Upsert(ctx, identity)
	if err != nil {
		span.RecordError(errors.Wrap(err, "repo.Upsert failed"))
		return domain.Identity{}, domain.WriteFailure("identity.upsert", err)
	}

	return result, nil
}

func (uc *IdentityUsecase) Get(ctx context.Context, address string) (domain.Identity, error) {
	ctx, span := tracer.Start(ctx, "Identity.Usecase.Get")
	defer span.End()

	address = cryptoguard.NormalizeAddress(address)
	if address == "" {
		return domain.Identity{}, domain.ErrIdentityRequired
	}

	identity, err := uc.repo.Get(ctx, address)
	if err != nil {
		span.RecordError(err)
		return domain.Identity{}, domain.ReadFailure("identity.get", err)
	}
	return identity, nil
}
