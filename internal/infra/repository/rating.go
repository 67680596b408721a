package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cryptoguard/cryptoguard/internal/domain"
	"github.com/cryptoguard/cryptoguard/internal/infra/database/models"
)

// RatingRepository keeps the relational flagged_sites table. One row per
// (url, flagged_by) holds the rater's current verdict.
type RatingRepository struct {
	db *gorm.DB
}

func NewRatingRepository(db *gorm.DB) *RatingRepository {
	return &RatingRepository{db: db}
}

func (r *RatingRepository) Upsert(ctx context.Context, rating domain.Rating) error {
	model := models.FlaggedSite{
		URL:       rating.Domain,
		FlaggedBy: rating.Rater,
		IsSafe:    rating.IsSafe,
		MDate:     rating.UpdatedAt.UTC(),
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "url"}, {Name: "flagged_by"}},
		DoUpdates: clause.AssignmentColumns([]string{"is_safe", "m_date"}),
	}).Create(&model).Error
	return writeError("rating.upsert", err)
}

func (r *RatingRepository) ListByDomain(ctx context.Context, domainKey string) ([]domain.Rating, error) {
	var rows []models.FlaggedSite
	err := r.db.WithContext(ctx).
		Where("url = ?", domainKey).
		Order("m_date asc").
		Order("id asc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	ratings := make([]domain.Rating, 0, len(rows))
	for _, row := range rows {
		ratings = append(ratings, domain.Rating{
			Domain:    row.URL,
			Rater:     row.FlaggedBy,
			IsSafe:    row.IsSafe,
			UpdatedAt: row.MDate.UTC(),
		})
	}
	return ratings, nil
}

// ListFlagged returns current unsafe verdicts, newest first.
func (r *RatingRepository) ListFlagged(ctx context.Context, limit int) ([]domain.FlaggedSite, error) {
	query := r.db.WithContext(ctx).
		Where("is_safe = ?", false).
		Order("m_date desc").
		Order("id desc")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []models.FlaggedSite
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	sites := make([]domain.FlaggedSite, 0, len(rows))
	for _, row := range rows {
		sites = append(sites, domain.FlaggedSite{
			URL:       row.URL,
			FlaggedBy: row.FlaggedBy,
			UpdatedAt: row.MDate.UTC(),
		})
	}
	return sites, nil
}
