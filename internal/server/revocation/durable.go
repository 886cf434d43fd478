package revocation

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/vipclub/internal/server/metrics"
	"github.com/dmitrijs2005/vipclub/internal/server/models"
	"github.com/dmitrijs2005/vipclub/internal/server/repositories/revokedtokens"
)

// DurableStore keeps revocations in PostgreSQL. It is the source of truth;
// every other Store is a view over it.
type DurableStore struct {
	repo    revokedtokens.Repository
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewDurableStore(repo revokedtokens.Repository, m *metrics.Metrics) *DurableStore {
	return &DurableStore{repo: repo, metrics: m, now: time.Now}
}

func (s *DurableStore) Revoke(ctx context.Context, token string, expiresAt time.Time) error {
	rec := &models.RevokedToken{
		Fingerprint: Fingerprint(token),
		RevokedAt:   s.now().UTC(),
		ExpiresAt:   expiresAt.UTC(),
	}
	if err := s.repo.Insert(ctx, rec); err != nil {
		return fmt.Errorf("revoke: %w", err)
	}
	return nil
}

func (s *DurableStore) IsRevoked(ctx context.Context, token string) (bool, error) {
	return s.isRevokedFingerprint(ctx, Fingerprint(token))
}

func (s *DurableStore) isRevokedFingerprint(ctx context.Context, fp string) (bool, error) {
	ok, err := s.repo.Exists(ctx, fp)
	if err != nil {
		return false, fmt.Errorf("revocation lookup: %w", err)
	}
	s.metrics.RevocationLookup(metrics.LookupDurable)
	return ok, nil
}

// Active lists the records whose tokens are still within their lifetime.
func (s *DurableStore) Active(ctx context.Context) ([]models.RevokedToken, error) {
	items, err := s.repo.ListActive(ctx, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("list revocations: %w", err)
	}
	return items, nil
}

// PurgeExpired deletes records of tokens that have expired by now. Such
// tokens are rejected by their expiry alone.
func (s *DurableStore) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteExpired(ctx, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("purge revocations: %w", err)
	}
	s.metrics.Purged(n)
	return n, nil
}
