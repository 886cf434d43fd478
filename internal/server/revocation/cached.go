package revocation

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/vipclub/internal/logging"
	"github.com/dmitrijs2005/vipclub/internal/server/metrics"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix = "vipclub:revoked:"
	syncedKey = "vipclub:revoked-synced"
	genKey    = "vipclub:revoked-gen"

	// DefaultSyncedTTL bounds how long the mirror is trusted for negative
	// answers without a fresh Resync.
	DefaultSyncedTTL = 30 * time.Minute
)

// ErrMirrorStale is returned by CachedStore.Revoke when the revocation was
// stored in PostgreSQL but Redis could neither record it nor be marked out
// of date. The store owes Redis a generation bump and settles it before
// its next lookup or Resync trusts the mirror.
var ErrMirrorStale = errors.New("revocation mirror is stale")

// CachedStore mirrors a DurableStore in Redis.
//
// A key per revoked fingerprint lives until the token's expiry. The synced
// marker says the mirror holds every active revocation; only while it
// exists and carries the current generation is a missing key taken as
// "not revoked". A failed mirror write bumps the generation, which voids
// the marker, including one a concurrent Resync is about to write. Without
// a valid marker, or on any Redis error, lookups go to PostgreSQL.
type CachedStore struct {
	rdb       redis.UniversalClient
	durable   *DurableStore
	log       logging.Logger
	metrics   *metrics.Metrics
	syncedTTL time.Duration
	now       func() time.Time

	// owed counts generation bumps Redis has not seen yet.
	owed atomic.Int64
}

func NewCachedStore(rdb redis.UniversalClient, durable *DurableStore, log logging.Logger, m *metrics.Metrics) *CachedStore {
	return &CachedStore{
		rdb:       rdb,
		durable:   durable,
		log:       log.With("module", "revocation"),
		metrics:   m,
		syncedTTL: DefaultSyncedTTL,
		now:       time.Now,
	}
}

func cacheKey(fp string) string { return keyPrefix + fp }

// generation reads the mirror generation; a missing counter is "0".
func generation(cmd *redis.StringCmd) (string, error) {
	v, err := cmd.Result()
	if errors.Is(err, redis.Nil) {
		return "0", nil
	}
	return v, err
}

// Revoke stores the revocation in PostgreSQL and then mirrors it. If the
// mirror write fails the generation is bumped so the synced marker stops
// vouching for misses. If that fails too, ErrMirrorStale is returned even
// though the revocation itself is stored, and the bump is owed until
// settle delivers it. Repeating the call is safe.
func (s *CachedStore) Revoke(ctx context.Context, token string, expiresAt time.Time) error {
	if err := s.durable.Revoke(ctx, token, expiresAt); err != nil {
		return err
	}

	ttl := expiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}

	err := s.rdb.Set(ctx, cacheKey(Fingerprint(token)), "1", ttl).Err()
	if err == nil {
		return nil
	}
	s.log.Warn(ctx, "revocation mirror write failed", "error", err)

	if incErr := s.rdb.Incr(ctx, genKey).Err(); incErr != nil {
		s.owed.Add(1)
		s.log.Error(ctx, "cannot invalidate revocation mirror", "error", incErr)
		return fmt.Errorf("%w: %w", ErrMirrorStale, errors.Join(err, incErr))
	}
	return nil
}

// settle pushes owed generation bumps to Redis. One INCR covers any number
// of them.
func (s *CachedStore) settle(ctx context.Context) error {
	n := s.owed.Load()
	if n == 0 {
		return nil
	}
	if err := s.rdb.Incr(ctx, genKey).Err(); err != nil {
		return err
	}
	s.owed.Add(-n)
	s.log.Info(ctx, "revocation mirror invalidated after outage")
	return nil
}

func (s *CachedStore) IsRevoked(ctx context.Context, token string) (bool, error) {
	fp := Fingerprint(token)

	var revoked *redis.IntCmd
	var marker, gen *redis.StringCmd
	err := s.settle(ctx)
	if err == nil {
		_, err = s.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
			revoked = p.Exists(ctx, cacheKey(fp))
			marker = p.Get(ctx, syncedKey)
			gen = p.Get(ctx, genKey)
			return nil
		})
		// GET misses surface as redis.Nil; only other failures count.
		if errors.Is(err, redis.Nil) {
			err = nil
			for _, cmd := range []redis.Cmder{revoked, marker, gen} {
				if cmdErr := cmd.Err(); cmdErr != nil && !errors.Is(cmdErr, redis.Nil) {
					err = cmdErr
					break
				}
			}
		}
	}
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return false, err
		}
		s.log.Warn(ctx, "revocation mirror unavailable, using database", "error", err)
		return s.durable.isRevokedFingerprint(ctx, fp)
	}

	if revoked.Val() > 0 {
		s.metrics.RevocationLookup(metrics.LookupCacheHit)
		return true, nil
	}
	current, _ := generation(gen)
	if marker.Err() == nil && marker.Val() == current {
		s.metrics.RevocationLookup(metrics.LookupCacheNegative)
		return false, nil
	}
	return s.durable.isRevokedFingerprint(ctx, fp)
}

// Resync copies every active revocation from PostgreSQL into Redis and then
// sets the synced marker to the generation read before the copy began.
func (s *CachedStore) Resync(ctx context.Context) (int, error) {
	if err := s.settle(ctx); err != nil {
		return 0, fmt.Errorf("invalidate mirror: %w", err)
	}

	gen, err := generation(s.rdb.Get(ctx, genKey))
	if err != nil {
		return 0, fmt.Errorf("read mirror generation: %w", err)
	}

	items, err := s.durable.Active(ctx)
	if err != nil {
		return 0, err
	}

	now := s.now()
	_, err = s.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		for _, it := range items {
			if ttl := it.ExpiresAt.Sub(now); ttl > 0 {
				p.Set(ctx, cacheKey(it.Fingerprint), "1", ttl)
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("mirror revocations: %w", err)
	}

	if err := s.rdb.Set(ctx, syncedKey, gen, s.syncedTTL).Err(); err != nil {
		return 0, fmt.Errorf("mark mirror synced: %w", err)
	}

	s.log.Debug(ctx, "revocation mirror synced", "records", len(items), "generation", gen)
	return len(items), nil
}

// PurgeExpired delegates to the durable store; Redis keys expire by TTL.
func (s *CachedStore) PurgeExpired(ctx context.Context) (int64, error) {
	return s.durable.PurgeExpired(ctx)
}
