package vips

import (
	"context"

	"github.com/dmitrijs2005/vipclub/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, vip *models.VIP) (*models.VIP, error)
	GetByUserID(ctx context.Context, userID int64) (*models.VIP, error)
}
