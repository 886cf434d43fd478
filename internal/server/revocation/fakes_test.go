package revocation

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/vipclub/internal/server/models"
)

// memRepo is an in-memory revokedtokens.Repository.
type memRepo struct {
	mu          sync.Mutex
	rows        map[string]models.RevokedToken
	existsCalls int
	err         error
	// afterList runs once ListActive has read the rows.
	afterList func()
}

func newMemRepo() *memRepo {
	return &memRepo{rows: map[string]models.RevokedToken{}}
}

func (r *memRepo) Insert(_ context.Context, t *models.RevokedToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	if _, ok := r.rows[t.Fingerprint]; !ok {
		r.rows[t.Fingerprint] = *t
	}
	return nil
}

func (r *memRepo) Exists(_ context.Context, fp string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.existsCalls++
	if r.err != nil {
		return false, r.err
	}
	_, ok := r.rows[fp]
	return ok, nil
}

func (r *memRepo) ListActive(_ context.Context, now time.Time) ([]models.RevokedToken, error) {
	out, err := r.listActive(now)
	if r.afterList != nil {
		r.afterList()
	}
	return out, err
}

func (r *memRepo) listActive(now time.Time) ([]models.RevokedToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	var out []models.RevokedToken
	for _, t := range r.rows {
		if t.ExpiresAt.After(now) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	return out, nil
}

func (r *memRepo) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return 0, r.err
	}
	var n int64
	for fp, t := range r.rows {
		if !t.ExpiresAt.After(before) {
			delete(r.rows, fp)
			n++
		}
	}
	return n, nil
}

func (r *memRepo) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.existsCalls
}

func (r *memRepo) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

type fixedClock struct{ t time.Time }

func (c *fixedClock) Now() time.Time { return c.t }
