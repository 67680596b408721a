package cryptoguard

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/sha3"
)

// GetHash returns the legacy Keccak-256 digest used by ethereum.
func GetHash(bytes []byte) []byte {
	hash := sha3.NewLegacyKeccak256()
	hash.Write(bytes)
	return hash.Sum(nil)
}

// DocumentID is the content address of a signed document.
func DocumentID(document string) string {
	return hexutil.Encode(GetHash([]byte(document)))
}

func LoadPrivateKey(privatekey string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privatekey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return key, nil
}

func PrivKeyToAddr(privatekey string) (string, error) {
	key, err := LoadPrivateKey(privatekey)
	if err != nil {
		return "", err
	}
	return PubkeyToAddr(&key.PublicKey), nil
}

func PubkeyToAddr(pub *ecdsa.PublicKey) string {
	return strings.ToLower(crypto.PubkeyToAddress(*pub).Hex())
}

// SignBytesWithKey produces a personal_sign (EIP-191) signature with V in {27, 28}
// so it matches what browser wallets return.
func SignBytesWithKey(bytes []byte, key *ecdsa.PrivateKey) ([]byte, error) {
	signature, err := crypto.Sign(accounts.TextHash(bytes), key)
	if err != nil {
		return nil, err
	}
	signature[crypto.RecoveryIDOffset] += 27
	return signature, nil
}

func RecoverAddress(bytes []byte, signature []byte) (string, error) {
	if len(signature) != crypto.SignatureLength {
		return "", fmt.Errorf("invalid signature length: %d", len(signature))
	}

	sig := make([]byte, crypto.SignatureLength)
	copy(sig, signature)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash(bytes), sig)
	if err != nil {
		return "", err
	}

	return PubkeyToAddr(pub), nil
}

func VerifySignature(bytes []byte, signature []byte, address string) error {
	recovered, err := RecoverAddress(bytes, signature)
	if err != nil {
		return err
	}
	if !strings.EqualFold(recovered, address) {
		return fmt.Errorf("signature mismatch: expected %s, recovered %s", address, recovered)
	}
	return nil
}

func SignDocument(document string, key *ecdsa.PrivateKey) (SignedDocument, error) {
	signature, err := SignBytesWithKey([]byte(document), key)
	if err != nil {
		return SignedDocument{}, err
	}
	return SignedDocument{
		Document: document,
		Proof: Proof{
			Type:      ProofTypeEIP191,
			Signature: hexutil.Encode(signature),
		},
	}, nil
}

func VerifyDocument(sd SignedDocument, author string) error {
	if sd.Proof.Type != ProofTypeEIP191 {
		return fmt.Errorf("unsupported proof type: %s", sd.Proof.Type)
	}
	signature, err := hexutil.Decode(sd.Proof.Signature)
	if err != nil {
		return fmt.Errorf("invalid signature encoding: %w", err)
	}
	return VerifySignature([]byte(sd.Document), signature, author)
}
