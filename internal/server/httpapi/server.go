// Package httpapi is the HTTP boundary of the membership service. It maps
// requests onto the user and barcode services and domain errors onto
// status codes with a {"detail": ...} body.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/vipclub/internal/logging"
	"github.com/dmitrijs2005/vipclub/internal/server/auth"
	"github.com/dmitrijs2005/vipclub/internal/server/metrics"
	"github.com/dmitrijs2005/vipclub/internal/server/models"
	"github.com/dmitrijs2005/vipclub/internal/server/services"
	"github.com/gorilla/mux"
)

// Users is the part of services.UserService the handlers use.
type Users interface {
	Register(ctx context.Context, username, password string) (*models.User, error)
	Signup(ctx context.Context, username, password string, vip *models.VIP) (*models.User, error)
	Login(ctx context.Context, username, password string) (*services.LoginResult, error)
	Logout(ctx context.Context, token string) error
	Authenticate(ctx context.Context, token string) (auth.Identity, error)
	Dashboard(ctx context.Context, username string) (*services.Dashboard, error)
	Membership(ctx context.Context, username string) (*models.VIP, error)
}

// Barcodes is the part of services.BarcodeService the handlers use.
type Barcodes interface {
	PNG(ctx context.Context, code string) ([]byte, error)
	PresignedURL(ctx context.Context, code string) (string, time.Duration, error)
}

// Deps collects what the router serves. Health and Metrics are optional.
type Deps struct {
	Users    Users
	Barcodes Barcodes
	Health   http.Handler
	Metrics  http.Handler
	Log      logging.Logger
	Recorder *metrics.Metrics
}

type handlers struct {
	users    Users
	barcodes Barcodes
	log      logging.Logger
}

// NewRouter wires every route and the middleware chain.
func NewRouter(d Deps) *mux.Router {
	log := d.Log.With("module", "http")
	h := &handlers{users: d.Users, barcodes: d.Barcodes, log: log}

	r := mux.NewRouter()
	r.Use(requestID, recoverer(log), accessLog(log, d.Recorder))

	r.HandleFunc("/api/register", h.register).Methods(http.MethodPost)
	r.HandleFunc("/signup/", h.signup).Methods(http.MethodPost)
	r.HandleFunc("/api/signup", h.signup).Methods(http.MethodPost)
	r.HandleFunc("/api/login", h.login).Methods(http.MethodPost)

	protected := r.NewRoute().Subrouter()
	protected.Use(requireToken(d.Users, log))
	protected.HandleFunc("/api/logout", h.logout).Methods(http.MethodPost)
	protected.HandleFunc("/api/dashboard", h.dashboard).Methods(http.MethodGet)
	protected.HandleFunc("/api/barcode", h.barcode).Methods(http.MethodGet)
	protected.HandleFunc("/api/barcode/url", h.barcodeURL).Methods(http.MethodGet)

	if d.Health != nil {
		r.Handle("/healthz", d.Health).Methods(http.MethodGet)
	}
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics).Methods(http.MethodGet)
	}

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	return r
}

// Server runs the router until its context ends.
type Server struct {
	srv             *http.Server
	shutdownTimeout time.Duration
	log             logging.Logger
}

func NewServer(addr string, h http.Handler, shutdownTimeout time.Duration, log logging.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           h,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		shutdownTimeout: shutdownTimeout,
		log:             log.With("module", "http_server"),
	}
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info(ctx, "Starting HTTP server", "address", s.srv.Addr)
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info(ctx, "Stopping HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
