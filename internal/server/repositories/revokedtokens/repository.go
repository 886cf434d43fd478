package revokedtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/vipclub/internal/server/models"
)

type Repository interface {
	Insert(ctx context.Context, token *models.RevokedToken) error
	Exists(ctx context.Context, fingerprint string) (bool, error)
	ListActive(ctx context.Context, now time.Time) ([]models.RevokedToken, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
