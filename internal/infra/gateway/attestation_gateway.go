package gateway

import (
	"context"
	"errors"
	"net/http"

	pkgerrors "github.com/pkg/errors"

	"github.com/cryptoguard/cryptoguard"
	"github.com/cryptoguard/cryptoguard/client"
	"github.com/cryptoguard/cryptoguard/internal/domain"
)

// AttestationGateway keeps the attestation ledger on a remote cryptoguard node.
type AttestationGateway struct {
	client *client.Client
}

func NewAttestationGateway(cl *client.Client) *AttestationGateway {
	return &AttestationGateway{client: cl}
}

func (g *AttestationGateway) Create(ctx context.Context, sd cryptoguard.SignedDocument, attestation domain.Attestation) error {
	_, err := g.client.Commit(ctx, sd)
	return translate(err, "attestation")
}

func (g *AttestationGateway) Get(ctx context.Context, id string) (domain.Attestation, error) {
	remote, err := g.client.GetAttestation(ctx, id)
	if err != nil {
		return domain.Attestation{}, translate(err, "attestation")
	}
	return fromRemote(remote), nil
}

func (g *AttestationGateway) GetSigned(ctx context.Context, id string) (cryptoguard.SignedDocument, error) {
	sd, err := g.client.GetSignedDocument(ctx, id)
	if err != nil {
		return cryptoguard.SignedDocument{}, translate(err, "attestation")
	}
	return sd, nil
}

func (g *AttestationGateway) Query(ctx context.Context, schema, indexingValue string) ([]domain.Attestation, error) {
	remote, err := g.client.QueryAttestations(ctx, schema, indexingValue)
	if err != nil {
		return nil, translate(err, "attestation")
	}
	return fromRemoteList(remote), nil
}

func (g *AttestationGateway) Recent(ctx context.Context, schema string, limit int) ([]domain.Attestation, error) {
	remote, err := g.client.RecentAttestations(ctx, schema, limit)
	if err != nil {
		return nil, translate(err, "attestation")
	}
	return fromRemoteList(remote), nil
}

// translate maps remote status codes back onto domain errors.
func translate(err error, resource string) error {
	if err == nil {
		return nil
	}
	var statusErr *client.StatusError
	if !errors.As(err, &statusErr) {
		return err
	}
	switch statusErr.Code {
	case http.StatusNotFound:
		return domain.NotFoundError{Resource: resource}
	case http.StatusBadRequest:
		return pkgerrors.Wrap(domain.ErrInvalidDocument, statusErr.Message)
	case http.StatusForbidden:
		return pkgerrors.Wrap(domain.ErrUnauthorizedDelegation, statusErr.Message)
	case http.StatusConflict:
		return pkgerrors.Wrap(domain.ErrConflict, statusErr.Message)
	default:
		return err
	}
}

func fromRemote(a cryptoguard.Attestation) domain.Attestation {
	return domain.Attestation{
		ID:            a.ID,
		Schema:        a.Schema,
		IndexingValue: a.IndexingValue,
		Attester:      a.Attester,
		Value:         a.Value,
		CreatedAt:     a.CreatedAt.UTC(),
	}
}

func fromRemoteList(list []cryptoguard.Attestation) []domain.Attestation {
	result := make([]domain.Attestation, 0, len(list))
	for _, a := range list {
		result = append(result, fromRemote(a))
	}
	return result
}
