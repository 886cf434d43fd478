package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/vipclub/internal/client/models"
	"github.com/dmitrijs2005/vipclub/internal/common"
)

type Client interface {
	Register(ctx context.Context, username, password string) error
	Signup(ctx context.Context, username, password string, vip *models.VIP) (int64, error)
	Login(ctx context.Context, username, password string) (*models.Session, error)
	Logout(ctx context.Context) error
	Dashboard(ctx context.Context) (*models.Dashboard, error)
	Barcode(ctx context.Context) (string, []byte, error)
	BarcodeURL(ctx context.Context) (*models.PresignedURL, error)
	Ping(ctx context.Context) error
	LoggedIn() bool
}

type HTTPClient struct {
	baseURL *url.URL
	http    *http.Client

	mu    sync.RWMutex
	token string
}

var _ Client = (*HTTPClient)(nil)

func NewHTTPClient(serverURL string, timeout time.Duration) (*HTTPClient, error) {
	u, err := url.Parse(strings.TrimRight(serverURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("server url: %w", err)
	}
	return &HTTPClient{baseURL: u, http: &http.Client{Timeout: timeout}}, nil
}

func (c *HTTPClient) LoggedIn() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token != ""
}

func (c *HTTPClient) setToken(t string) {
	c.mu.Lock()
	c.token = t
	c.mu.Unlock()
}

func (c *HTTPClient) bearer() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.token == "" {
		return "", ErrNotLoggedIn
	}
	return common.BearerScheme + " " + c.token, nil
}

func (c *HTTPClient) Register(ctx context.Context, username, password string) error {
	form := url.Values{"username": {username}, "password": {password}}
	return c.do(ctx, http.MethodPost, "/api/register", formBody(form), false, nil)
}

func (c *HTTPClient) Signup(ctx context.Context, username, password string, vip *models.VIP) (int64, error) {
	payload := map[string]any{
		"user": map[string]string{"username": username, "password": password},
		"vip":  vip,
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return 0, err
	}

	var out struct {
		UserID int64 `json:"userid"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/signup", jsonBody(b), false, &out); err != nil {
		return 0, err
	}
	return out.UserID, nil
}

func (c *HTTPClient) Login(ctx context.Context, username, password string) (*models.Session, error) {
	form := url.Values{"username": {username}, "password": {password}}

	var s models.Session
	if err := c.do(ctx, http.MethodPost, "/api/login", formBody(form), false, &s); err != nil {
		return nil, err
	}
	c.setToken(s.AccessToken)
	return &s, nil
}

// Logout revokes the current token. The local copy is kept only when the
// server could not be reached, so the user can retry.
func (c *HTTPClient) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/api/logout", nil, true, nil)
	if err == nil || !errors.Is(err, ErrUnavailable) {
		c.setToken("")
	}
	return err
}

// check turns a non-2xx answer into an error. A 401 on a protected call
// means the token is dead, so it is dropped.
func (c *HTTPClient) check(resp *http.Response, auth bool) error {
	err := checkStatus(resp)
	if auth && errors.Is(err, ErrUnauthorized) {
		c.setToken("")
	}
	return err
}

func (c *HTTPClient) Dashboard(ctx context.Context) (*models.Dashboard, error) {
	var d models.Dashboard
	if err := c.do(ctx, http.MethodGet, "/api/dashboard", nil, true, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// Barcode returns the suggested file name and the PNG bytes.
func (c *HTTPClient) Barcode(ctx context.Context) (string, []byte, error) {
	resp, err := c.send(ctx, http.MethodGet, "/api/barcode", nil, true)
	if err != nil {
		return "", nil, err
	}
	defer resp.Body.Close()

	if err := c.check(resp, true); err != nil {
		return "", nil, err
	}

	img, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	name := "barcode.png"
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		name = params["filename"]
	}
	return name, img, nil
}

func (c *HTTPClient) BarcodeURL(ctx context.Context) (*models.PresignedURL, error) {
	var p models.PresignedURL
	if err := c.do(ctx, http.MethodGet, "/api/barcode/url", nil, true, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Ping calls /healthz. Any answer below 500 counts as reachable, so a
// degraded server is still online.
func (c *HTTPClient) Ping(ctx context.Context) error {
	resp, err := c.send(ctx, http.MethodGet, "/healthz", nil, false)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: health %d", ErrUnavailable, resp.StatusCode)
	}
	return nil
}

type body struct {
	contentType string
	data        []byte
}

func formBody(v url.Values) *body {
	return &body{contentType: "application/x-www-form-urlencoded", data: []byte(v.Encode())}
}

func jsonBody(b []byte) *body {
	return &body{contentType: "application/json", data: b}
}

func (c *HTTPClient) do(ctx context.Context, method, path string, b *body, auth bool, out any) error {
	resp, err := c.send(ctx, method, path, b, auth)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.check(resp, auth); err != nil {
		return err
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *HTTPClient) send(ctx context.Context, method, path string, b *body, auth bool) (*http.Response, error) {
	var rdr io.Reader
	if b != nil {
		rdr = bytes.NewReader(b.data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.JoinPath(path).String(), rdr)
	if err != nil {
		return nil, err
	}
	if b != nil {
		req.Header.Set("Content-Type", b.contentType)
	}
	if auth {
		h, err := c.bearer()
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", h)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return resp, nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var e struct {
		Detail string `json:"detail"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&e)

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		if e.Detail != "" {
			return fmt.Errorf("%w: %s", ErrUnauthorized, e.Detail)
		}
		return ErrUnauthorized
	case http.StatusServiceUnavailable:
		return fmt.Errorf("%w: %s", ErrUnavailable, e.Detail)
	default:
		return &APIError{Status: resp.StatusCode, Detail: e.Detail}
	}
}
