package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/dmitrijs2005/vipclub/internal/client/client"
	"github.com/stretchr/testify/assert"
)

type fakeExec struct {
	loggedIn bool
	calls    []string
	fail     map[string]error
}

func (f *fakeExec) record(name string) error {
	f.calls = append(f.calls, name)
	return f.fail[name]
}

func (f *fakeExec) isLoggedIn() bool                     { return f.loggedIn }
func (f *fakeExec) Register(ctx context.Context) error   { return f.record("register") }
func (f *fakeExec) Signup(ctx context.Context) error     { return f.record("signup") }
func (f *fakeExec) Dashboard(ctx context.Context) error  { return f.record("dashboard") }
func (f *fakeExec) BarcodeURL(ctx context.Context) error { return f.record("link") }
func (f *fakeExec) Barcode(ctx context.Context, dir string) error {
	return f.record("barcode:" + dir)
}
func (f *fakeExec) FetchBarcode(ctx context.Context, dir string) error {
	return f.record("fetch:" + dir)
}
func (f *fakeExec) Login(ctx context.Context) error {
	err := f.record("login")
	if err == nil {
		f.loggedIn = true
	}
	return err
}
func (f *fakeExec) Logout(ctx context.Context) error {
	f.loggedIn = false
	return f.record("logout")
}

func capturePrint(t *testing.T) *[]string {
	t.Helper()
	var lines []string
	orig := printlnFn
	printlnFn = func(a ...any) (int, error) {
		lines = append(lines, strings.TrimSuffix(fmt.Sprintln(a...), "\n"))
		return 0, nil
	}
	t.Cleanup(func() { printlnFn = orig })
	return &lines
}

func TestRunREPL_Dispatch(t *testing.T) {
	out := capturePrint(t)

	input := strings.Join([]string{
		"help",
		"dashboard",
		"login",
		"help",
		"",
		"dashboard",
		"barcode /tmp/cards",
		"barcode",
		"link",
		"fetch out",
		"logout",
		"foobar",
		"exit",
		"register",
	}, "\n")

	exec := &fakeExec{}
	runREPL(context.Background(), exec, func() string { return "(online)" }, rdr(input))

	assert.Equal(t, []string{
		"login", "dashboard", "barcode:/tmp/cards", "barcode:", "link", "fetch:out", "logout",
	}, exec.calls)

	assert.Contains(t, *out, "Available commands: register, signup, login, exit")
	assert.Contains(t, *out, "Available commands: dashboard, barcode [dir], link, fetch [dir], logout, exit")
	assert.Contains(t, *out, "Please login first")
	assert.Contains(t, *out, "Unknown command: foobar")
	assert.Contains(t, *out, "vip (online)> ")
	assert.Equal(t, "Bye!", (*out)[len(*out)-1])
}

func TestRunREPL_ReportsErrorsAndContinues(t *testing.T) {
	out := capturePrint(t)

	exec := &fakeExec{fail: map[string]error{
		"register": &client.APIError{Status: 400, Detail: "Username already taken"},
		"signup":   fmt.Errorf("wrap: %w", client.ErrUnavailable),
		"login":    client.ErrUnauthorized,
	}}
	runREPL(context.Background(), exec, func() string { return "" }, rdr("register\nsignup\nlogin\nlogin"))

	assert.Equal(t, []string{"register", "signup", "login", "login"}, exec.calls)
	assert.Contains(t, *out, "Error: Username already taken")
	assert.Contains(t, *out, "Error: server unavailable, try again later")
	assert.Contains(t, *out, "Error: not authorized, please login again")
}

func TestRunREPL_StopsOnCancelledContext(t *testing.T) {
	capturePrint(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	exec := &fakeExec{}
	runREPL(ctx, exec, func() string { return "" }, rdr("register\n"))
	assert.Empty(t, exec.calls)
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "please login first", describe(client.ErrNotLoggedIn))
	assert.Equal(t, "server returned 500", describe(&client.APIError{Status: 500}))
	assert.Equal(t, "boom", describe(errors.New("boom")))
}
