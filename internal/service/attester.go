package service

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/cryptoguard/cryptoguard"
	"github.com/cryptoguard/cryptoguard/internal/domain"
	"github.com/cryptoguard/cryptoguard/internal/usecase"
)

// AttesterService signs documents with the node key.
type AttesterService struct {
	key     *ecdsa.PrivateKey
	address string
	clock   usecase.Clock
}

func NewAttesterService(config domain.Config, clock usecase.Clock) (*AttesterService, error) {
	key, err := cryptoguard.LoadPrivateKey(config.PrivateKey)
	if err != nil {
		return nil, errors.Wrap(err, "invalid attester key")
	}
	if clock == nil {
		clock = usecase.RealClock{}
	}
	return &AttesterService{
		key:     key,
		address: cryptoguard.PubkeyToAddr(&key.PublicKey),
		clock:   clock,
	}, nil
}

func (s *AttesterService) Address() string {
	return s.address
}

func (s *AttesterService) Sign(ctx context.Context, schema, indexingValue string, value any) (cryptoguard.SignedDocument, error) {
	_, span := tracer.Start(ctx, "Attester.Service.Sign")
	defer span.End()

	doc := cryptoguard.Document[any]{
		Schema:        schema,
		IndexingValue: indexingValue,
		Value:         value,
		Author:        s.address,
		CreateAt:      s.clock.Now(),
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		span.RecordError(err)
		return cryptoguard.SignedDocument{}, err
	}

	sd, err := cryptoguard.SignDocument(string(raw), s.key)
	if err != nil {
		span.RecordError(errors.Wrap(err, "sign document failed"))
		return cryptoguard.SignedDocument{}, err
	}
	return sd, nil
}
