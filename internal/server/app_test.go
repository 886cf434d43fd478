package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/dmitrijs2005/vipclub/internal/common"
	"github.com/dmitrijs2005/vipclub/internal/dbx"
	"github.com/dmitrijs2005/vipclub/internal/logging"
	"github.com/dmitrijs2005/vipclub/internal/server/config"
	"github.com/dmitrijs2005/vipclub/internal/server/models"
	"github.com/dmitrijs2005/vipclub/internal/server/objectstore"
	"github.com/dmitrijs2005/vipclub/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/vipclub/internal/server/repositories/revokedtokens"
	"github.com/dmitrijs2005/vipclub/internal/server/repositories/users"
	"github.com/dmitrijs2005/vipclub/internal/server/repositories/vips"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore backs all three repositories in memory.
type memStore struct {
	mu      sync.Mutex
	users   map[string]models.User
	vips    map[int64]models.VIP
	revoked map[string]models.RevokedToken
	nextID  int64
}

func newMemStore() *memStore {
	return &memStore{
		users:   map[string]models.User{},
		vips:    map[int64]models.VIP{},
		revoked: map[string]models.RevokedToken{},
	}
}

type memUsers struct{ s *memStore }

func (r memUsers) Create(_ context.Context, u *models.User) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[u.UserName]; ok {
		return nil, common.ErrorAlreadyExists
	}
	r.s.nextID++
	cp := *u
	cp.ID = r.s.nextID
	r.s.users[u.UserName] = cp
	return &cp, nil
}

func (r memUsers) GetUserByLogin(_ context.Context, name string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[name]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &u, nil
}

type memVIPs struct{ s *memStore }

func (r memVIPs) Create(_ context.Context, v *models.VIP) (*models.VIP, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.vips[v.ID] = *v
	return v, nil
}

func (r memVIPs) GetByUserID(_ context.Context, id int64) (*models.VIP, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	v, ok := r.s.vips[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &v, nil
}

type memRevoked struct{ s *memStore }

func (r memRevoked) Insert(_ context.Context, t *models.RevokedToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.revoked[t.Fingerprint]; !ok {
		r.s.revoked[t.Fingerprint] = *t
	}
	return nil
}

func (r memRevoked) Exists(_ context.Context, fp string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	_, ok := r.s.revoked[fp]
	return ok, nil
}

func (r memRevoked) ListActive(_ context.Context, now time.Time) ([]models.RevokedToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.RevokedToken
	for _, t := range r.s.revoked {
		if t.ExpiresAt.After(now) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r memRevoked) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for fp, t := range r.s.revoked {
		if !t.ExpiresAt.After(before) {
			delete(r.s.revoked, fp)
			n++
		}
	}
	return n, nil
}

type memManager struct {
	s             *memStore
	migrationsErr error
}

func (m *memManager) RunMigrations(context.Context, *sql.DB) error    { return m.migrationsErr }
func (m *memManager) Users(dbx.DBTX) users.Repository                 { return memUsers{m.s} }
func (m *memManager) VIPs(dbx.DBTX) vips.Repository                   { return memVIPs{m.s} }
func (m *memManager) RevokedTokens(dbx.DBTX) revokedtokens.Repository { return memRevoked{m.s} }

func testConfig() *config.Config {
	c := &config.Config{}
	c.LoadDefaults()
	c.HTTPAddr = "127.0.0.1:0"
	c.GRPCAddr = "127.0.0.1:0"
	c.ShutdownTimeout = time.Second
	c.SecretKey = "app-test-secret"
	c.BcryptCost = 4
	c.HashWorkers = 2
	c.PurgeSchedule = "@every 1h"
	return c
}

func stubSeams(t *testing.T, mgr *memManager) sqlmock.Sqlmock {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	origOpen, origRM, origObj := openDB, newRepoManager, newObjectStore
	t.Cleanup(func() { openDB, newRepoManager, newObjectStore = origOpen, origRM, origObj })

	openDB = func(context.Context, string) (*sql.DB, error) { return db, nil }
	newRepoManager = func() repomanager.RepositoryManager { return mgr }
	return mock
}

func form(username, password string) *strings.Reader {
	return strings.NewReader(url.Values{"username": {username}, "password": {password}}.Encode())
}

func post(t *testing.T, srv *httptest.Server, path, token string, body *strings.Reader) *http.Response {
	t.Helper()
	if body == nil {
		body = strings.NewReader("")
	}
	req, err := http.NewRequest(http.MethodPost, srv.URL+path, body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func get(t *testing.T, srv *httptest.Server, path, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, srv.URL+path, nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestApp_EndToEnd_WithRedisMirror(t *testing.T) {
	store := newMemStore()
	stubSeams(t, &memManager{s: store})

	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.RedisURL = "redis://" + mr.Addr()

	app, err := NewApp(context.Background(), cfg, logging.Nop{})
	require.NoError(t, err)
	t.Cleanup(app.Close)

	srv := httptest.NewServer(app.Router())
	t.Cleanup(srv.Close)

	resp := post(t, srv, "/api/register", "", form("alice", "s3cr3t!"))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = post(t, srv, "/api/register", "", form("alice", "other"))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = post(t, srv, "/api/login", "", form("alice", "wrong"))
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = post(t, srv, "/api/login", "", form("alice", "s3cr3t!"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var login struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&login))
	assert.Equal(t, "bearer", login.TokenType)

	resp = get(t, srv, "/api/dashboard", login.AccessToken)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = post(t, srv, "/api/logout", login.AccessToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = get(t, srv, "/api/dashboard", login.AccessToken)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// revocation reached both stores
	assert.Len(t, store.revoked, 1)
	keys := mr.Keys()
	assert.Contains(t, strings.Join(keys, " "), "vipclub:revoked:")
}

func TestApp_SignupAndBarcode(t *testing.T) {
	mock := stubSeams(t, &memManager{s: newMemStore()})
	mock.ExpectBegin()
	mock.ExpectCommit()

	app, err := NewApp(context.Background(), testConfig(), logging.Nop{})
	require.NoError(t, err)
	t.Cleanup(app.Close)

	srv := httptest.NewServer(app.Router())
	t.Cleanup(srv.Close)

	body := `{"user":{"username":"bob","password":"pw"},"vip":{"code":"VIP-77","cellulare":"333"}}`
	resp, err := srv.Client().Post(srv.URL+"/signup/", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = post(t, srv, "/api/login", "", form("bob", "pw"))
	var login struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&login))

	resp = get(t, srv, "/api/barcode", login.AccessToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))

	resp = get(t, srv, "/api/barcode/url", login.AccessToken)
	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)
}

func TestApp_SignupNeedsTransactions(t *testing.T) {
	mock := stubSeams(t, &memManager{s: newMemStore()})
	mock.ExpectBegin()
	mock.ExpectCommit()

	app, err := NewApp(context.Background(), testConfig(), logging.Nop{})
	require.NoError(t, err)
	t.Cleanup(app.Close)

	_, err = app.users.Signup(context.Background(), "carol", "pw", &models.VIP{Code: "C-1", Phone: "1"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewApp_Errors(t *testing.T) {
	t.Run("db unreachable", func(t *testing.T) {
		orig := openDB
		t.Cleanup(func() { openDB = orig })
		openDB = func(context.Context, string) (*sql.DB, error) { return nil, errors.New("refused") }

		_, err := NewApp(context.Background(), testConfig(), logging.Nop{})
		require.ErrorContains(t, err, "db init error")
	})

	t.Run("migrations fail", func(t *testing.T) {
		stubSeams(t, &memManager{s: newMemStore(), migrationsErr: errors.New("dirty")})
		_, err := NewApp(context.Background(), testConfig(), logging.Nop{})
		require.ErrorContains(t, err, "migrations")
	})

	t.Run("bad redis url", func(t *testing.T) {
		stubSeams(t, &memManager{s: newMemStore()})
		cfg := testConfig()
		cfg.RedisURL = "mysql://nope"
		_, err := NewApp(context.Background(), cfg, logging.Nop{})
		require.ErrorContains(t, err, "redis url")
	})

	t.Run("object storage", func(t *testing.T) {
		stubSeams(t, &memManager{s: newMemStore()})
		newObjectStore = func(context.Context, objectstore.Config) (objectstore.Store, error) {
			return nil, errors.New("no region")
		}
		cfg := testConfig()
		cfg.S3Bucket = "vipclub"
		_, err := NewApp(context.Background(), cfg, logging.Nop{})
		require.ErrorContains(t, err, "object storage")
	})
}

func TestApp_RunStopsOnCancel(t *testing.T) {
	stubSeams(t, &memManager{s: newMemStore()})

	app, err := NewApp(context.Background(), testConfig(), logging.Nop{})
	require.NoError(t, err)
	t.Cleanup(app.Close)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	time.Sleep(200 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("app did not stop after cancel")
	}
}

func TestApp_CloseOnce(t *testing.T) {
	mock := stubSeams(t, &memManager{s: newMemStore()})
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.RedisURL = "redis://" + mr.Addr()

	app, err := NewApp(context.Background(), cfg, logging.Nop{})
	require.NoError(t, err)

	mock.ExpectClose()
	app.Close()
	require.NoError(t, mock.ExpectationsWereMet())

	require.NotPanics(t, app.Close)
	require.NoError(t, mock.ExpectationsWereMet())
}
