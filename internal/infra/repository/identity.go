package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cryptoguard/cryptoguard/internal/domain"
	"github.com/cryptoguard/cryptoguard/internal/infra/database/models"
)

type IdentityRepository struct {
	db *gorm.DB
}

func NewIdentityRepository(db *gorm.DB) *IdentityRepository {
	return &IdentityRepository{db: db}
}

func (r *IdentityRepository) Upsert(ctx context.Context, identity domain.Identity) (domain.Identity, error) {

	now := time.Now().UTC()
	model := models.Identity{
		Address: identity.Address,
		Email:   identity.Email,
		CDate:   now,
		MDate:   now,
	}

	updates := []string{"m_date"}
	if identity.Email != nil {
		updates = append(updates, "email")
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "address"}},
		DoUpdates: clause.AssignmentColumns(updates),
	}).Create(&model).Error
	if err != nil {
		return domain.Identity{}, writeError("identity.upsert", err)
	}

	return r.Get(ctx, identity.Address)
}

func (r *IdentityRepository) Get(ctx context.Context, address string) (domain.Identity, error) {
	var model models.Identity
	err := r.db.WithContext(ctx).Where("address = ?", address).Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Identity{}, domain.NotFoundError{Resource: "identity"}
		}
		return domain.Identity{}, err
	}
	return identityFromModel(model), nil
}

func identityFromModel(m models.Identity) domain.Identity {
	return domain.Identity{
		Address:   m.Address,
		Email:     m.Email,
		CreatedAt: m.CDate.UTC(),
		UpdatedAt: m.MDate.UTC(),
	}
}
