package cli

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/dmitrijs2005/vipclub/internal/client/client"
	"github.com/dmitrijs2005/vipclub/internal/client/config"
	"github.com/dmitrijs2005/vipclub/internal/logging"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type App struct {
	config   *config.Config
	api      client.Client
	download *http.Client
	log      logging.Logger
	reader   *bufio.Reader
	out      io.Writer

	mu       sync.Mutex
	userName string
	mode     Mode
}

func NewApp(c *config.Config, in io.Reader, out io.Writer, log logging.Logger) (*App, error) {
	api, err := client.NewHTTPClient(c.ServerURL, c.RequestTimeout)
	if err != nil {
		return nil, err
	}
	return newApp(c, api, in, out, log), nil
}

func newApp(c *config.Config, api client.Client, in io.Reader, out io.Writer, log logging.Logger) *App {
	return &App{
		config:   c,
		api:      api,
		download: &http.Client{Timeout: c.RequestTimeout},
		log:      log.With("module", "cli"),
		reader:   bufio.NewReader(in),
		out:      out,
	}
}

// Run starts the online watcher and blocks in the REPL until the user
// exits, input ends or ctx is cancelled.
func (a *App) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.checkOnline(ctx)
	go a.StartOnlineStatusWatcher(ctx, a.config.OnlineCheckInterval)

	printlnFn("Welcome to VIP club CLI (type 'help' for commands)")
	runREPL(ctx, a, a.status, a.reader)
}

func (a *App) isLoggedIn() bool {
	return a.api.LoggedIn()
}

func (a *App) Mode() Mode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mode
}

func (a *App) setMode(ctx context.Context, mode Mode) {
	a.mu.Lock()
	changed := a.mode != mode
	a.mode = mode
	a.mu.Unlock()

	if changed {
		a.log.Info(ctx, "connectivity changed", "mode", string(mode))
	}
}

func (a *App) setUser(name string) {
	a.mu.Lock()
	a.userName = name
	a.mu.Unlock()
}

// status renders the prompt suffix, e.g. "(alice online)".
func (a *App) status() string {
	a.mu.Lock()
	name, mode := a.userName, a.mode
	a.mu.Unlock()

	s := ""
	if name != "" && a.isLoggedIn() {
		s = name + " "
	}
	s += string(mode)
	if s == "" {
		return ""
	}
	return "(" + s + ")"
}

func (a *App) checkOnline(ctx context.Context) {
	pctx, cancel := context.WithTimeout(ctx, a.config.RequestTimeout)
	err := a.api.Ping(pctx)
	cancel()

	if err != nil {
		a.setMode(ctx, ModeOffline)
		return
	}
	a.setMode(ctx, ModeOnline)
}

// StartOnlineStatusWatcher pings the server every interval until ctx ends.
func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.checkOnline(ctx)
		case <-ctx.Done():
			return
		}
	}
}
