package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/vipclub/internal/dbx"
	"github.com/dmitrijs2005/vipclub/internal/server/repositories/revokedtokens"
	"github.com/dmitrijs2005/vipclub/internal/server/repositories/users"
	"github.com/dmitrijs2005/vipclub/internal/server/repositories/vips"
)

// RepositoryManager vends repositories bound to a DBTX, so callers can run
// them either on the pool or inside a transaction.
type RepositoryManager interface {
	RunMigrations(ctx context.Context, db *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	VIPs(db dbx.DBTX) vips.Repository
	RevokedTokens(db dbx.DBTX) revokedtokens.Repository
}
