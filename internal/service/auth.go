package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/cryptoguard/cryptoguard"
	"github.com/cryptoguard/cryptoguard/internal/domain"
	"github.com/cryptoguard/cryptoguard/internal/usecase"
	"github.com/cryptoguard/cryptoguard/jwt"
)

var tracer = otel.Tracer("auth")

const (
	challengeTTL      = 5 * time.Minute
	defaultSessionTTL = 24 * time.Hour
)

var ErrNoChallenge = errors.New("no pending challenge for address")

// RevocationStore remembers token ids that were logged out before expiry.
type RevocationStore interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

type AuthService struct {
	config      domain.Config
	identities  *usecase.IdentityUsecase
	revocations RevocationStore
	challenges  *cache.Cache
	clock       usecase.Clock
}

func NewAuthService(
	config domain.Config,
	identities *usecase.IdentityUsecase,
	revocations RevocationStore,
	clock usecase.Clock,
) *AuthService {
	if clock == nil {
		clock = usecase.RealClock{}
	}
	if config.SessionTTL <= 0 {
		config.SessionTTL = defaultSessionTTL
	}
	return &AuthService{
		config:      config,
		identities:  identities,
		revocations: revocations,
		challenges:  cache.New(challengeTTL, 10*time.Minute),
		clock:       clock,
	}
}

type Challenge struct {
	Address   string    `json:"address"`
	Nonce     string    `json:"nonce"`
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type ConnectInput struct {
	Address   string `json:"address"`
	Email     string `json:"email"`
	Signature string `json:"signature"`
}

type Session struct {
	Token     string          `json:"token"`
	Identity  domain.Identity `json:"identity"`
	ExpiresAt time.Time       `json:"expiresAt"`
}

type AuthResult struct {
	Address   string
	Email     string
	TokenID   string
	ExpiresAt time.Time
}

func challengeMessage(fqdn, address, nonce string) string {
	return fmt.Sprintf("%s wants you to sign in with your Ethereum account:\n%s\n\nNonce: %s", fqdn, address, nonce)
}

// Challenge issues a login message for address. A new challenge replaces any pending one.
func (s *AuthService) Challenge(ctx context.Context, address string) (Challenge, error) {
	_, span := tracer.Start(ctx, "Auth.Service.Challenge")
	defer span.End()

	address = cryptoguard.NormalizeAddress(address)
	if !cryptoguard.IsAddress(address) {
		span.RecordError(domain.ErrInvalidAddress)
		return Challenge{}, errors.Wrap(domain.ErrInvalidAddress, address)
	}

	nonce := uuid.NewString()
	challenge := Challenge{
		Address:   address,
		Nonce:     nonce,
		Message:   challengeMessage(s.config.FQDN, address, nonce),
		ExpiresAt: s.clock.Now().Add(challengeTTL),
	}
	s.challenges.Set(address, challenge, challengeTTL)

	return challenge, nil
}

// Connect exchanges a signed challenge for a session token.
func (s *AuthService) Connect(ctx context.Context, input ConnectInput) (Session, error) {
	ctx, span := tracer.Start(ctx, "Auth.Service.Connect")
	defer span.End()

	address := cryptoguard.NormalizeAddress(input.Address)
	if address == "" {
		return Session{}, domain.ErrIdentityRequired
	}
	if !cryptoguard.IsAddress(address) {
		return Session{}, errors.Wrap(domain.ErrInvalidAddress, address)
	}
	span.SetAttributes(attribute.String("address", address))

	x, found := s.challenges.Get(address)
	if !found {
		span.RecordError(ErrNoChallenge)
		return Session{}, errors.Wrap(domain.ErrSignatureMismatch, ErrNoChallenge.Error())
	}
	challenge := x.(Challenge)

	signature, err := hexutil.Decode(input.Signature)
	if err != nil {
		span.RecordError(errors.Wrap(err, "signature decode failed"))
		return Session{}, errors.Wrap(domain.ErrSignatureMismatch, err.Error())
	}
	err = cryptoguard.VerifySignature([]byte(challenge.Message), signature, address)
	if err != nil {
		span.RecordError(errors.Wrap(err, "challenge verification failed"))
		return Session{}, errors.Wrap(domain.ErrSignatureMismatch, err.Error())
	}
	s.challenges.Delete(address)

	identity, err := s.identities.Ensure(ctx, address, strings.TrimSpace(input.Email))
	if err != nil {
		span.RecordError(err)
		return Session{}, err
	}

	now := s.clock.Now()
	expiresAt := now.Add(s.config.SessionTTL)
	claims := jwt.Claims{
		RegisteredClaims: gojwt.RegisteredClaims{
			Issuer:    s.config.Attester,
			Subject:   address,
			Audience:  gojwt.ClaimStrings{s.config.FQDN},
			ExpiresAt: gojwt.NewNumericDate(expiresAt),
			IssuedAt:  gojwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
	if identity.Email != nil {
		claims.Email = *identity.Email
	}

	token, err := jwt.Create(claims, s.config.PrivateKey)
	if err != nil {
		span.RecordError(errors.Wrap(err, "jwt.Create failed"))
		return Session{}, err
	}

	return Session{
		Token:     token,
		Identity:  identity,
		ExpiresAt: expiresAt,
	}, nil
}

func (s *AuthService) AuthJwt(ctx context.Context, token string) (*AuthResult, error) {
	ctx, span := tracer.Start(ctx, "Auth.Service.AuthJwt")
	defer span.End()

	claims, err := jwt.Validate(token, jwt.ValidateOptions{
		Audience: s.config.FQDN,
		Issuer:   s.config.Attester,
		Now:      s.clock.Now,
	})
	if err != nil {
		span.RecordError(errors.Wrap(err, "jwt validation failed"))
		return nil, err
	}

	if !cryptoguard.IsAddress(claims.Subject) {
		err := fmt.Errorf("invalid subject")
		span.RecordError(err)
		return nil, err
	}

	if s.revocations != nil && claims.ID != "" {
		revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
		if err != nil {
			span.RecordError(errors.Wrap(err, "revocation lookup failed"))
			return nil, err
		}
		if revoked {
			err := fmt.Errorf("token revoked")
			span.RecordError(err)
			return nil, err
		}
	}

	result := &AuthResult{
		Address: cryptoguard.NormalizeAddress(claims.Subject),
		Email:   claims.Email,
		TokenID: claims.ID,
	}
	if claims.ExpiresAt != nil {
		result.ExpiresAt = claims.ExpiresAt.Time
	}
	return result, nil
}

// Logout revokes the session token until it would have expired anyway.
func (s *AuthService) Logout(ctx context.Context, tokenID string, expiresAt time.Time) error {
	ctx, span := tracer.Start(ctx, "Auth.Service.Logout")
	defer span.End()

	if tokenID == "" {
		return domain.ErrIdentityRequired
	}
	if s.revocations == nil {
		return nil
	}

	err := s.revocations.Revoke(ctx, tokenID, expiresAt.Sub(s.clock.Now()))
	if err != nil {
		span.RecordError(errors.Wrap(err, "revoke failed"))
		return domain.WriteFailure("session.revoke", err)
	}
	return nil
}
