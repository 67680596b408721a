package usecase

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/attribute"

	"github.com/cryptoguard/cryptoguard"
	"github.com/cryptoguard/cryptoguard/internal/domain"
	"github.com/cryptoguard/cryptoguard/policy"
	"github.com/cryptoguard/cryptoguard/schemas"
)

type AttestationUsecase struct {
	repo       AttestationRepository
	identities *IdentityUsecase
	publisher  Publisher
	policy     WritePolicy
	attester   string
}

// NewAttestationUsecase wires the ledger. attester is the node address allowed to
// sign on behalf of other identities.
func NewAttestationUsecase(
	repo AttestationRepository,
	identities *IdentityUsecase,
	publisher Publisher,
	attester string,
) *AttestationUsecase {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	return &AttestationUsecase{
		repo:       repo,
		identities: identities,
		publisher:  publisher,
		attester:   cryptoguard.NormalizeAddress(attester),
	}
}

// WithPolicy makes every commit subject to p.
func (uc *AttestationUsecase) WithPolicy(p WritePolicy) *AttestationUsecase {
	uc.policy = p
	return uc
}

// Commit verifies, decodes and stores a signed document.
func (uc *AttestationUsecase) Commit(ctx context.Context, sd cryptoguard.SignedDocument) (domain.Attestation, error) {
	ctx, span := tracer.Start(ctx, "Attestation.Usecase.Commit")
	defer span.End()

	attestation, decoded, channel, err := uc.commit(ctx, sd)
	if err != nil {
		span.RecordError(err)
		return domain.Attestation{}, err
	}

	eventType := domain.EventTypeRating
	switch decoded.(type) {
	case domain.Comment:
		eventType = domain.EventTypeComment
	case domain.Vote:
		eventType = domain.EventTypeVote
	}

	publish(ctx, uc.publisher, channel, cryptoguard.Event{
		Type:    eventType,
		Channel: channel,
		Domain:  channel,
		ID:      attestation.ID,
		At:      attestation.CreatedAt,
	})

	return attestation, nil
}

// commit stores the document and returns the channel that should be notified.
func (uc *AttestationUsecase) commit(ctx context.Context, sd cryptoguard.SignedDocument) (domain.Attestation, domain.DecodedAttestation, string, error) {
	if !gjson.Valid(sd.Document) {
		return domain.Attestation{}, nil, "", errors.Wrap(domain.ErrInvalidDocument, "document is not json")
	}
	schema := gjson.Get(sd.Document, "schema").String()
	if schema == "" {
		return domain.Attestation{}, nil, "", errors.Wrap(domain.ErrInvalidDocument, "schema is required")
	}

	var doc cryptoguard.Document[json.RawMessage]
	err := json.Unmarshal([]byte(sd.Document), &doc)
	if err != nil {
		return domain.Attestation{}, nil, "", errors.Wrap(domain.ErrInvalidDocument, err.Error())
	}
	if doc.CreateAt.IsZero() {
		return domain.Attestation{}, nil, "", errors.Wrap(domain.ErrInvalidDocument, "createAt is required")
	}

	author := cryptoguard.NormalizeAddress(doc.Author)
	if !cryptoguard.IsAddress(author) {
		return domain.Attestation{}, nil, "", errors.Wrap(domain.ErrInvalidAddress, doc.Author)
	}

	err = cryptoguard.VerifyDocument(sd, author)
	if err != nil {
		return domain.Attestation{}, nil, "", errors.Wrap(domain.ErrSignatureMismatch, err.Error())
	}

	attestation := domain.Attestation{
		ID:            cryptoguard.DocumentID(sd.Document),
		Schema:        schema,
		IndexingValue: canonicalIndex(schema, doc.IndexingValue),
		Attester:      author,
		Value:         doc.Value,
		CreatedAt:     doc.CreateAt.UTC(),
	}

	decoded, err := domain.DecodeAttestation(attestation)
	if err != nil {
		return domain.Attestation{}, nil, "", err
	}

	channel := attestation.IndexingValue
	switch d := decoded.(type) {
	case domain.UnrecognizedAttestation:
		return domain.Attestation{}, nil, "", errors.Wrap(domain.ErrUnsupportedSchema, d.Schema)
	case domain.Vote:
		target, err := uc.repo.Get(ctx, d.CommentID)
		if err != nil {
			return domain.Attestation{}, nil, "", domain.ReadFailure("attestation.get", err)
		}
		if target.Schema != schemas.CommentURL {
			return domain.Attestation{}, nil, "", domain.NotFoundError{Resource: "comment"}
		}
		attestation.IndexingValue = d.CommentID
		channel = target.IndexingValue
	}

	subject := domain.Subject(decoded)
	if subject != author && author != uc.attester {
		return domain.Attestation{}, nil, "", errors.Wrapf(domain.ErrUnauthorizedDelegation, "%s for %s", author, subject)
	}

	action := policy.ActionRate
	switch decoded.(type) {
	case domain.Comment:
		action = policy.ActionComment
	case domain.Vote:
		action = policy.ActionVote
	}
	err = checkPolicy(uc.policy, action, policy.RequestContext{
		Requester: subject,
		Domain:    channel,
		Schema:    schema,
	})
	if err != nil {
		return domain.Attestation{}, nil, "", err
	}

	_, err = uc.identities.Ensure(ctx, subject, "")
	if err != nil {
		return domain.Attestation{}, nil, "", err
	}

	err = uc.repo.Create(ctx, sd, attestation)
	if err != nil {
		return domain.Attestation{}, nil, "", domain.WriteFailure("attestation.create", err)
	}

	return attestation, decoded, channel, nil
}

func (uc *AttestationUsecase) Get(ctx context.Context, id string) (domain.Attestation, error) {
	ctx, span := tracer.Start(ctx, "Attestation.Usecase.Get")
	defer span.End()

	attestation, err := uc.repo.Get(ctx, strings.ToLower(id))
	if err != nil {
		span.RecordError(err)
		return domain.Attestation{}, domain.ReadFailure("attestation.get", err)
	}
	return attestation, nil
}

// GetSigned returns the document and proof as committed, so callers can verify
// the signature themselves.
func (uc *AttestationUsecase) GetSigned(ctx context.Context, id string) (cryptoguard.SignedDocument, error) {
	ctx, span := tracer.Start(ctx, "Attestation.Usecase.GetSigned")
	defer span.End()

	sd, err := uc.repo.GetSigned(ctx, strings.ToLower(id))
	if err != nil {
		span.RecordError(err)
		return cryptoguard.SignedDocument{}, domain.ReadFailure("attestation.getSigned", err)
	}
	return sd, nil
}

// Query returns every attestation of schema indexed by indexingValue, oldest first.
func (uc *AttestationUsecase) Query(ctx context.Context, schema, indexingValue string) ([]domain.Attestation, error) {
	ctx, span := tracer.Start(ctx, "Attestation.Usecase.Query")
	defer span.End()

	index := canonicalIndex(schema, indexingValue)
	span.SetAttributes(attribute.String("schema", schema), attribute.String("indexingValue", index))

	attestations, err := uc.repo.Query(ctx, schema, index)
	if err != nil {
		span.RecordError(err)
		return nil, domain.ReadFailure("attestation.query", err)
	}
	return attestations, nil
}

// Recent returns the newest attestations of schema across all indexing values.
func (uc *AttestationUsecase) Recent(ctx context.Context, schema string, limit int) ([]domain.Attestation, error) {
	ctx, span := tracer.Start(ctx, "Attestation.Usecase.Recent")
	defer span.End()

	attestations, err := uc.repo.Recent(ctx, schema, limit)
	if err != nil {
		span.RecordError(err)
		return nil, domain.ReadFailure("attestation.recent", err)
	}
	return attestations, nil
}

func canonicalIndex(schema, indexingValue string) string {
	switch schema {
	case schemas.SafetyRatingURL, schemas.CommentURL:
		return cryptoguard.NormalizeDomain(indexingValue)
	default:
		return strings.ToLower(indexingValue)
	}
}
