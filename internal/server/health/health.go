// Package health reports whether the server's dependencies are reachable.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/dmitrijs2005/vipclub/internal/buildinfo"
	"github.com/redis/go-redis/v9"
)

const (
	StatusOK        = "ok"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

const checkTimeout = 3 * time.Second

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Dependency struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

type Report struct {
	Status       string                `json:"status"`
	Version      string                `json:"version"`
	Dependencies map[string]Dependency `json:"dependencies,omitempty"`
}

// Checker pings PostgreSQL and, when configured, Redis. PostgreSQL down is
// unhealthy; Redis down is only degraded since revocation falls back to
// PostgreSQL.
type Checker struct {
	db    Pinger
	redis redis.UniversalClient
}

// NewChecker accepts a nil rdb.
func NewChecker(db Pinger, rdb redis.UniversalClient) *Checker {
	return &Checker{db: db, redis: rdb}
}

func (c *Checker) Check(ctx context.Context) Report {
	r := Report{
		Status:       StatusOK,
		Version:      buildinfo.Version(),
		Dependencies: map[string]Dependency{},
	}

	if c.db != nil {
		d := checkDependency(ctx, c.db.PingContext)
		r.Dependencies["database"] = d
		if d.Status != StatusOK {
			r.Status = StatusUnhealthy
		}
	}

	if c.redis != nil {
		d := checkDependency(ctx, func(ctx context.Context) error { return c.redis.Ping(ctx).Err() })
		r.Dependencies["redis"] = d
		if d.Status != StatusOK && r.Status == StatusOK {
			r.Status = StatusDegraded
		}
	}

	return r
}

func checkDependency(ctx context.Context, ping func(context.Context) error) Dependency {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	start := time.Now()
	err := ping(ctx)
	d := Dependency{Status: StatusOK, Latency: time.Since(start).String()}
	if err != nil {
		d.Status = StatusUnhealthy
		d.Message = err.Error()
	}
	return d
}

// ServeHTTP answers 503 when unhealthy and 200 otherwise.
func (c *Checker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	report := c.Check(r.Context())

	w.Header().Set("Content-Type", "application/json")
	if report.Status == StatusUnhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	_ = json.NewEncoder(w).Encode(report)
}
