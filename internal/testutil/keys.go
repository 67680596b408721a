package testutil

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/cryptoguard/cryptoguard"
)

// Wallet is a throwaway secp256k1 identity for tests.
type Wallet struct {
	Key     *ecdsa.PrivateKey
	Address string
}

func NewWallet(t *testing.T) Wallet {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key failed: %v", err)
	}
	return Wallet{Key: key, Address: cryptoguard.PubkeyToAddr(&key.PublicKey)}
}

// PrivateKeyHex returns the key in the form config files use.
func (w Wallet) PrivateKeyHex() string {
	return hexutil.Encode(crypto.FromECDSA(w.Key))
}

// SignDocument signs doc with the wallet key, as a browser wallet would.
func (w Wallet) SignDocument(t *testing.T, doc any) cryptoguard.SignedDocument {
	t.Helper()
	raw, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal document failed: %v", err)
	}
	sd, err := cryptoguard.SignDocument(string(raw), w.Key)
	if err != nil {
		t.Fatalf("sign document failed: %v", err)
	}
	return sd
}

// Signer signs node documents with a fixed key and clock.
type Signer struct {
	Wallet Wallet
	Clock  interface{ Now() time.Time }
}

func (s *Signer) Address() string {
	return s.Wallet.Address
}

func (s *Signer) Sign(ctx context.Context, schema, indexingValue string, value any) (cryptoguard.SignedDocument, error) {
	doc := cryptoguard.Document[any]{
		Schema:        schema,
		IndexingValue: indexingValue,
		Value:         value,
		Author:        s.Wallet.Address,
		CreateAt:      s.Clock.Now(),
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return cryptoguard.SignedDocument{}, err
	}
	return cryptoguard.SignDocument(string(raw), s.Wallet.Key)
}
