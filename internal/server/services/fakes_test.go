package services

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/dmitrijs2005/vipclub/internal/common"
	"github.com/dmitrijs2005/vipclub/internal/dbx"
	"github.com/dmitrijs2005/vipclub/internal/server/auth"
	"github.com/dmitrijs2005/vipclub/internal/server/models"
	"github.com/dmitrijs2005/vipclub/internal/server/repositories/revokedtokens"
	"github.com/dmitrijs2005/vipclub/internal/server/repositories/users"
	"github.com/dmitrijs2005/vipclub/internal/server/repositories/vips"
	"github.com/dmitrijs2005/vipclub/internal/server/revocation"
)

type memUsers struct {
	mu     sync.Mutex
	rows   map[string]*models.User
	nextID int64

	getErr    error
	createErr error
	creates   int
}

func newMemUsers() *memUsers { return &memUsers{rows: map[string]*models.User{}} }

func (r *memUsers) Create(_ context.Context, u *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.creates++
	if r.createErr != nil {
		return nil, r.createErr
	}
	if _, ok := r.rows[u.UserName]; ok {
		return nil, common.ErrorAlreadyExists
	}
	r.nextID++
	cp := *u
	cp.ID = r.nextID
	cp.CreatedAt = time.Now()
	r.rows[u.UserName] = &cp
	return &cp, nil
}

func (r *memUsers) GetUserByLogin(_ context.Context, name string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	u, ok := r.rows[name]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *u
	return &cp, nil
}

type memVIPs struct {
	mu        sync.Mutex
	rows      map[int64]*models.VIP
	createErr error
	getErr    error
}

func newMemVIPs() *memVIPs { return &memVIPs{rows: map[int64]*models.VIP{}} }

func (r *memVIPs) Create(_ context.Context, v *models.VIP) (*models.VIP, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return nil, r.createErr
	}
	cp := *v
	r.rows[v.ID] = &cp
	return &cp, nil
}

func (r *memVIPs) GetByUserID(_ context.Context, id int64) (*models.VIP, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	v, ok := r.rows[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *v
	return &cp, nil
}

type fakeRepoManager struct {
	users *memUsers
	vips  *memVIPs
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error    { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository                 { return m.users }
func (m *fakeRepoManager) VIPs(dbx.DBTX) vips.Repository                   { return m.vips }
func (m *fakeRepoManager) RevokedTokens(dbx.DBTX) revokedtokens.Repository { return nil }

// memRevocations is an in-memory revocation.Store.
type memRevocations struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	err     error
}

func newMemRevocations() *memRevocations {
	return &memRevocations{revoked: map[string]time.Time{}}
}

func (s *memRevocations) Revoke(_ context.Context, token string, exp time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.revoked[revocation.Fingerprint(token)] = exp
	return nil
}

func (s *memRevocations) IsRevoked(_ context.Context, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	_, ok := s.revoked[revocation.Fingerprint(token)]
	return ok, nil
}

// purge drops entries whose expiry is at or before now, like the janitor.
func (s *memRevocations) purge(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for fp, exp := range s.revoked {
		if !exp.After(now) {
			delete(s.revoked, fp)
		}
	}
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// countingHasher wraps a real hasher and records Verify calls.
type countingHasher struct {
	inner auth.Hasher

	mu       sync.Mutex
	verifies int
	digests  []string
}

func (h *countingHasher) Hash(ctx context.Context, p string) (string, error) {
	return h.inner.Hash(ctx, p)
}

func (h *countingHasher) Verify(ctx context.Context, p, d string) (bool, error) {
	h.mu.Lock()
	h.verifies++
	h.digests = append(h.digests, d)
	h.mu.Unlock()
	return h.inner.Verify(ctx, p, d)
}

func (h *countingHasher) DummyDigest() string { return h.inner.DummyDigest() }
