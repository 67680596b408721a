package usecase

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/cryptoguard/cryptoguard"
	"github.com/cryptoguard/cryptoguard/internal/domain"
)

type mockIdentityRepo struct {
	mu         sync.Mutex
	identities map[string]domain.Identity
	upserts    int
	fail       error
}

func newMockIdentityRepo() *mockIdentityRepo {
	return &mockIdentityRepo{identities: map[string]domain.Identity{}}
}

func (m *mockIdentityRepo) Upsert(ctx context.Context, identity domain.Identity) (domain.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return domain.Identity{}, m.fail
	}
	m.upserts++
	existing, ok := m.identities[identity.Address]
	if ok && identity.Email == nil {
		identity.Email = existing.Email
	}
	m.identities[identity.Address] = identity
	return identity, nil
}

func (m *mockIdentityRepo) Get(ctx context.Context, address string) (domain.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	identity, ok := m.identities[address]
	if !ok {
		return domain.Identity{}, domain.NotFoundError{Resource: "identity"}
	}
	return identity, nil
}

type mockRatingRepo struct {
	ratings   map[string]domain.Rating
	upserts   int
	failWrite error
	failRead  error
	afterList func()
}

func newMockRatingRepo() *mockRatingRepo {
	return &mockRatingRepo{ratings: map[string]domain.Rating{}}
}

func (m *mockRatingRepo) Upsert(ctx context.Context, rating domain.Rating) error {
	if m.failWrite != nil {
		return m.failWrite
	}
	m.upserts++
	m.ratings[rating.Domain+"|"+rating.Rater] = rating
	return nil
}

func (m *mockRatingRepo) ListByDomain(ctx context.Context, domainKey string) ([]domain.Rating, error) {
	if m.failRead != nil {
		return nil, m.failRead
	}
	result := make([]domain.Rating, 0)
	for _, r := range m.ratings {
		if r.Domain == domainKey {
			result = append(result, r)
		}
	}
	if hook := m.afterList; hook != nil {
		m.afterList = nil
		hook()
	}
	return result, nil
}

func (m *mockRatingRepo) ListFlagged(ctx context.Context, limit int) ([]domain.FlaggedSite, error) {
	result := make([]domain.FlaggedSite, 0)
	for _, r := range m.ratings {
		if !r.IsSafe {
			result = append(result, domain.FlaggedSite{URL: r.Domain, FlaggedBy: r.Rater, UpdatedAt: r.UpdatedAt})
		}
	}
	return result, nil
}

type mockAttestationRepo struct {
	records []domain.Attestation
	docs    map[string]cryptoguard.SignedDocument
	fail    error
}

func newMockAttestationRepo() *mockAttestationRepo {
	return &mockAttestationRepo{docs: map[string]cryptoguard.SignedDocument{}}
}

func (m *mockAttestationRepo) Create(ctx context.Context, sd cryptoguard.SignedDocument, attestation domain.Attestation) error {
	if m.fail != nil {
		return m.fail
	}
	if _, ok := m.docs[attestation.ID]; ok {
		return nil
	}
	m.docs[attestation.ID] = sd
	m.records = append(m.records, attestation)
	return nil
}

func (m *mockAttestationRepo) Get(ctx context.Context, id string) (domain.Attestation, error) {
	for _, a := range m.records {
		if a.ID == id {
			return a, nil
		}
	}
	return domain.Attestation{}, domain.NotFoundError{Resource: "attestation"}
}

func (m *mockAttestationRepo) GetSigned(ctx context.Context, id string) (cryptoguard.SignedDocument, error) {
	sd, ok := m.docs[id]
	if !ok {
		return cryptoguard.SignedDocument{}, domain.NotFoundError{Resource: "attestation"}
	}
	return sd, nil
}

func (m *mockAttestationRepo) Query(ctx context.Context, schema, indexingValue string) ([]domain.Attestation, error) {
	if m.fail != nil {
		return nil, m.fail
	}
	result := make([]domain.Attestation, 0)
	for _, a := range m.records {
		if a.Schema == schema && a.IndexingValue == indexingValue {
			result = append(result, a)
		}
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (m *mockAttestationRepo) Recent(ctx context.Context, schema string, limit int) ([]domain.Attestation, error) {
	result := make([]domain.Attestation, 0)
	for _, a := range m.records {
		if a.Schema == schema {
			result = append(result, a)
		}
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

type mockPublisher struct {
	events []cryptoguard.Event
	fail   error
}

func (m *mockPublisher) Publish(ctx context.Context, channel string, event cryptoguard.Event) error {
	m.events = append(m.events, event)
	return m.fail
}

type mockRatingCache struct {
	entries     map[string][]domain.Rating
	invalidated []string
}

func newMockRatingCache() *mockRatingCache {
	return &mockRatingCache{entries: map[string][]domain.Rating{}}
}

func (m *mockRatingCache) Get(ctx context.Context, domainKey string) ([]domain.Rating, bool) {
	r, ok := m.entries[domainKey]
	return r, ok
}

func (m *mockRatingCache) Set(ctx context.Context, domainKey string, ratings []domain.Rating) {
	m.entries[domainKey] = ratings
}

func (m *mockRatingCache) Fill(ctx context.Context, domainKey string, ratings []domain.Rating) {
	if _, ok := m.entries[domainKey]; ok {
		return
	}
	m.entries[domainKey] = ratings
}

func (m *mockRatingCache) Invalidate(ctx context.Context, domainKey string) {
	delete(m.entries, domainKey)
	m.invalidated = append(m.invalidated, domainKey)
}

var errStore = errors.New("store unavailable")

func addr(suffix string) string {
	return "0x" + strings.Repeat("0", 40-len(suffix)) + strings.ToLower(suffix)
}
