package repository

import (
	"context"
	"encoding/json"
	"errors"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cryptoguard/cryptoguard"
	"github.com/cryptoguard/cryptoguard/internal/domain"
	"github.com/cryptoguard/cryptoguard/internal/infra/database/models"
)

// AttestationRepository is the append-only ledger of signed documents.
type AttestationRepository struct {
	db *gorm.DB
}

func NewAttestationRepository(db *gorm.DB) *AttestationRepository {
	return &AttestationRepository{db: db}
}

// Create stores the document. Committing the same document twice is a no-op.
func (r *AttestationRepository) Create(ctx context.Context, sd cryptoguard.SignedDocument, attestation domain.Attestation) error {

	proof, err := json.Marshal(sd.Proof)
	if err != nil {
		return err
	}

	model := models.Attestation{
		ID:            attestation.ID,
		Schema:        attestation.Schema,
		IndexingValue: attestation.IndexingValue,
		Attester:      attestation.Attester,
		Value:         datatypes.JSON(attestation.Value),
		Document:      sd.Document,
		Proof:         string(proof),
		SignedAt:      attestation.CreatedAt.UTC(),
	}

	err = r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(&model).Error
	return writeError("attestation.create", err)
}

func (r *AttestationRepository) Get(ctx context.Context, id string) (domain.Attestation, error) {
	var model models.Attestation
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Attestation{}, domain.NotFoundError{Resource: "attestation"}
		}
		return domain.Attestation{}, err
	}
	return attestationFromModel(model), nil
}

// GetSigned returns the stored document together with its proof.
func (r *AttestationRepository) GetSigned(ctx context.Context, id string) (cryptoguard.SignedDocument, error) {
	var model models.Attestation
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return cryptoguard.SignedDocument{}, domain.NotFoundError{Resource: "attestation"}
		}
		return cryptoguard.SignedDocument{}, err
	}

	var proof cryptoguard.Proof
	if err := json.Unmarshal([]byte(model.Proof), &proof); err != nil {
		return cryptoguard.SignedDocument{}, err
	}
	return cryptoguard.SignedDocument{Document: model.Document, Proof: proof}, nil
}

func (r *AttestationRepository) Query(ctx context.Context, schema, indexingValue string) ([]domain.Attestation, error) {
	var rows []models.Attestation
	err := r.db.WithContext(ctx).
		Where("schema = ? AND indexing_value = ?", schema, indexingValue).
		Order("signed_at asc").
		Order("c_date asc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return attestationsFromModels(rows), nil
}

func (r *AttestationRepository) Recent(ctx context.Context, schema string, limit int) ([]domain.Attestation, error) {
	query := r.db.WithContext(ctx).
		Where("schema = ?", schema).
		Order("signed_at desc").
		Order("c_date desc")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []models.Attestation
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return attestationsFromModels(rows), nil
}

func attestationFromModel(m models.Attestation) domain.Attestation {
	return domain.Attestation{
		ID:            m.ID,
		Schema:        m.Schema,
		IndexingValue: m.IndexingValue,
		Attester:      m.Attester,
		Value:         json.RawMessage(m.Value),
		CreatedAt:     m.SignedAt.UTC(),
	}
}

func attestationsFromModels(rows []models.Attestation) []domain.Attestation {
	result := make([]domain.Attestation, 0, len(rows))
	for _, row := range rows {
		result = append(result, attestationFromModel(row))
	}
	return result
}
