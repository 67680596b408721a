package jwt

import (
	"crypto/ecdsa"

	gojwt "github.com/golang-jwt/jwt/v5"

	"github.com/cryptoguard/cryptoguard"
)

// signingMethodEIP191 signs the token with a secp256k1 key using the same
// personal_sign digest as attestations. Verification takes the signer address.
type signingMethodEIP191 struct{}

var SigningMethodEIP191 gojwt.SigningMethod = signingMethodEIP191{}

func init() {
	gojwt.RegisterSigningMethod(SigningMethodEIP191.Alg(), func() gojwt.SigningMethod {
		return SigningMethodEIP191
	})
}

func (signingMethodEIP191) Alg() string {
	return "ES256K-EIP191"
}

func (signingMethodEIP191) Sign(signingString string, key any) ([]byte, error) {
	privateKey, ok := key.(*ecdsa.PrivateKey)
	if !ok {
		return nil, gojwt.ErrInvalidKeyType
	}
	return cryptoguard.SignBytesWithKey([]byte(signingString), privateKey)
}

func (signingMethodEIP191) Verify(signingString string, sig []byte, key any) error {
	address, ok := key.(string)
	if !ok {
		return gojwt.ErrInvalidKeyType
	}
	if err := cryptoguard.VerifySignature([]byte(signingString), sig, address); err != nil {
		return gojwt.ErrSignatureInvalid
	}
	return nil
}
