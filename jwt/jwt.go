package jwt

import (
	"fmt"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"

	"github.com/cryptoguard/cryptoguard"
)

// Claims are the session claims. Issuer is the signing node's address and
// Subject is the session identity.
type Claims struct {
	Email string `json:"email,omitempty"`
	gojwt.RegisteredClaims
}

// Create creates a server signed JWT
func Create(claims Claims, privatekey string) (string, error) {
	key, err := cryptoguard.LoadPrivateKey(privatekey)
	if err != nil {
		return "", err
	}
	token := gojwt.NewWithClaims(SigningMethodEIP191, claims)
	return token.SignedString(key)
}

type ValidateOptions struct {
	Audience string
	Issuer   string
	Now      func() time.Time
}

// Validate checks the signature against the issuer address, the expiry and
// the expected audience and issuer.
func Validate(token string, opts ValidateOptions) (*Claims, error) {

	parserOpts := []gojwt.ParserOption{
		gojwt.WithValidMethods([]string{SigningMethodEIP191.Alg()}),
		gojwt.WithExpirationRequired(),
	}
	if opts.Audience != "" {
		parserOpts = append(parserOpts, gojwt.WithAudience(opts.Audience))
	}
	if opts.Issuer != "" {
		parserOpts = append(parserOpts, gojwt.WithIssuer(opts.Issuer))
	}
	if opts.Now != nil {
		parserOpts = append(parserOpts, gojwt.WithTimeFunc(opts.Now))
	}

	claims := &Claims{}
	parsed, err := gojwt.ParseWithClaims(token, claims, func(t *gojwt.Token) (any, error) {
		issuer, err := t.Claims.GetIssuer()
		if err != nil {
			return nil, err
		}
		if !cryptoguard.IsAddress(issuer) {
			return nil, fmt.Errorf("invalid issuer")
		}
		return issuer, nil
	}, parserOpts...)
	if err != nil {
		return nil, err
	}

	if !parsed.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	return claims, nil
}
