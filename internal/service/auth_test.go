package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/cryptoguard/cryptoguard"
	"github.com/cryptoguard/cryptoguard/internal/domain"
	"github.com/cryptoguard/cryptoguard/internal/infra/database"
	"github.com/cryptoguard/cryptoguard/internal/infra/repository"
	"github.com/cryptoguard/cryptoguard/internal/testutil"
	"github.com/cryptoguard/cryptoguard/internal/usecase"
)

type authFixture struct {
	auth   *AuthService
	node   testutil.Wallet
	clock  *testutil.StubClock
	config domain.Config
}

func newAuthFixture(t *testing.T) authFixture {
	t.Helper()

	db, err := database.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node := testutil.NewWallet(t)
	config := domain.Config{
		FQDN:       "node.example.com",
		PrivateKey: node.PrivateKeyHex(),
		Attester:   node.Address,
		SessionTTL: time.Hour,
	}
	clock := testutil.NewStubClock(time.Now().UTC())
	identities := usecase.NewIdentityUsecase(repository.NewIdentityRepository(db))

	return authFixture{
		auth:   NewAuthService(config, identities, repository.NewMemoryRevocationStore(), clock),
		node:   node,
		clock:  clock,
		config: config,
	}
}

func signChallenge(t *testing.T, wallet testutil.Wallet, message string) string {
	t.Helper()
	sig, err := cryptoguard.SignBytesWithKey([]byte(message), wallet.Key)
	if err != nil {
		t.Fatalf("sign challenge: %v", err)
	}
	return hexutil.Encode(sig)
}

func TestConnectIssuesSession(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	user := testutil.NewWallet(t)

	challenge, err := f.auth.Challenge(ctx, user.Address)
	if err != nil {
		t.Fatalf("challenge: %v", err)
	}

	session, err := f.auth.Connect(ctx, ConnectInput{
		Address:   user.Address,
		Email:     "alice@example.com",
		Signature: signChallenge(t, user, challenge.Message),
	})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if session.Identity.Address != user.Address {
		t.Fatalf("expected identity %s, got %s", user.Address, session.Identity.Address)
	}
	if session.Identity.Email == nil || *session.Identity.Email != "alice@example.com" {
		t.Fatalf("expected email to be stored, got %v", session.Identity.Email)
	}

	result, err := f.auth.AuthJwt(ctx, session.Token)
	if err != nil {
		t.Fatalf("auth jwt: %v", err)
	}
	if result.Address != user.Address || result.Email != "alice@example.com" || result.TokenID == "" {
		t.Fatalf("unexpected auth result %+v", result)
	}
}

func TestConnectRejectsWrongSigner(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	user := testutil.NewWallet(t)
	mallory := testutil.NewWallet(t)

	challenge, err := f.auth.Challenge(ctx, user.Address)
	if err != nil {
		t.Fatalf("challenge: %v", err)
	}

	_, err = f.auth.Connect(ctx, ConnectInput{
		Address:   user.Address,
		Signature: signChallenge(t, mallory, challenge.Message),
	})
	if !errors.Is(err, domain.ErrSignatureMismatch) {
		t.Fatalf("expected signature mismatch, got %v", err)
	}
}

func TestConnectRequiresChallenge(t *testing.T) {
	f := newAuthFixture(t)
	user := testutil.NewWallet(t)

	_, err := f.auth.Connect(context.Background(), ConnectInput{
		Address:   user.Address,
		Signature: signChallenge(t, user, "anything"),
	})
	if !errors.Is(err, domain.ErrSignatureMismatch) {
		t.Fatalf("expected missing challenge to fail, got %v", err)
	}
}

func TestChallengeIsSingleUse(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	user := testutil.NewWallet(t)

	challenge, err := f.auth.Challenge(ctx, user.Address)
	if err != nil {
		t.Fatalf("challenge: %v", err)
	}
	input := ConnectInput{Address: user.Address, Signature: signChallenge(t, user, challenge.Message)}
	if _, err := f.auth.Connect(ctx, input); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if _, err := f.auth.Connect(ctx, input); err == nil {
		t.Fatalf("replayed challenge should be rejected")
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	user := testutil.NewWallet(t)

	challenge, err := f.auth.Challenge(ctx, user.Address)
	if err != nil {
		t.Fatalf("challenge: %v", err)
	}
	session, err := f.auth.Connect(ctx, ConnectInput{Address: user.Address, Signature: signChallenge(t, user, challenge.Message)})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}

	result, err := f.auth.AuthJwt(ctx, session.Token)
	if err != nil {
		t.Fatalf("auth jwt: %v", err)
	}
	if err := f.auth.Logout(ctx, result.TokenID, result.ExpiresAt); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := f.auth.AuthJwt(ctx, session.Token); err == nil {
		t.Fatalf("revoked token should not authenticate")
	}
}

func TestAuthJwtExpires(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)
	user := testutil.NewWallet(t)

	challenge, _ := f.auth.Challenge(ctx, user.Address)
	session, err := f.auth.Connect(ctx, ConnectInput{Address: user.Address, Signature: signChallenge(t, user, challenge.Message)})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}

	f.clock.Advance(2 * time.Hour)
	if _, err := f.auth.AuthJwt(ctx, session.Token); err == nil {
		t.Fatalf("expired token should not authenticate")
	}
}

func TestAttesterSignsVerifiableDocuments(t *testing.T) {
	f := newAuthFixture(t)
	attester, err := NewAttesterService(f.config, f.clock)
	if err != nil {
		t.Fatalf("new attester: %v", err)
	}
	if attester.Address() != f.node.Address {
		t.Fatalf("expected attester %s, got %s", f.node.Address, attester.Address())
	}

	sd, err := attester.Sign(context.Background(), "https://schema.example/x.json", "example.com", map[string]any{"ok": true})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if err := cryptoguard.VerifyDocument(sd, f.node.Address); err != nil {
		t.Fatalf("verify: %v", err)
	}

	var doc cryptoguard.Document[json.RawMessage]
	if err := json.Unmarshal([]byte(sd.Document), &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !doc.CreateAt.Equal(f.clock.Now()) {
		t.Fatalf("expected createAt from clock, got %v", doc.CreateAt)
	}
}

func TestAttesterRejectsBadKey(t *testing.T) {
	_, err := NewAttesterService(domain.Config{PrivateKey: "not-a-key"}, nil)
	if err == nil {
		t.Fatalf("expected invalid key error")
	}
}

func TestSignalServiceWithoutRedis(t *testing.T) {
	signal := NewSignalService(nil)
	if signal.Enabled() {
		t.Fatalf("signal service without redis should be disabled")
	}
	if err := signal.Publish(context.Background(), "example.com", cryptoguard.Event{Type: "rating"}); err != nil {
		t.Fatalf("publish without redis should be a no-op: %v", err)
	}
	if err := signal.Realtime(context.Background(), nil, nil); err == nil {
		t.Fatalf("realtime without redis should fail")
	}
}
