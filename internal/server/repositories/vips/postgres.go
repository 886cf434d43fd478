// Package vips stores membership records in the vips table.
package vips

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/vipclub/internal/common"
	"github.com/dmitrijs2005/vipclub/internal/dbx"
	"github.com/dmitrijs2005/vipclub/internal/server/models"
)

// ErrCodeTaken reports a membership code already assigned to someone else.
var ErrCodeTaken = errors.New("membership code already taken")

const codeConstraint = "vips_code_key"

const vipColumns = `vip_id, code, birth_date, phone, sms_opt_in, points, discount,
		 first_name, last_name, email, address, city, province, postal_code,
		 tax_code, vat_number, gender, membership_year, expires_on, blocked,
		 last_purchase_amount, last_purchase_date`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts vip; vip.ID must already be the owning user's ID. A reused
// membership code yields ErrCodeTaken, a second record for the same user
// common.ErrorAlreadyExists.
func (r *PostgresRepository) Create(ctx context.Context, vip *models.VIP) (*models.VIP, error) {
	query :=
		`INSERT INTO vips (` + vipColumns + `)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
		 $15, $16, $17, $18, $19, $20, $21, $22)
		 RETURNING created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		vip.ID, vip.Code, vip.BirthDate, vip.Phone, vip.SMSOptIn, vip.Points, vip.Discount,
		vip.FirstName, vip.LastName, vip.Email, vip.Address, vip.City, vip.Province, vip.PostalCode,
		vip.TaxCode, vip.VATNumber, vip.Gender, vip.MembershipYear, vip.ExpiresOn, vip.Blocked,
		vip.LastPurchaseAmount, vip.LastPurchaseDate,
	).Scan(&vip.CreatedAt)
	if err != nil {
		switch {
		case dbx.IsUniqueViolation(err, codeConstraint):
			return nil, ErrCodeTaken
		case dbx.IsUniqueViolation(err, ""):
			return nil, common.ErrorAlreadyExists
		case dbx.IsForeignKeyViolation(err):
			return nil, fmt.Errorf("user %d: %w", vip.ID, common.ErrorNotFound)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return vip, nil
}

// GetByUserID returns the membership of the given user.
func (r *PostgresRepository) GetByUserID(ctx context.Context, userID int64) (*models.VIP, error) {
	query :=
		`SELECT ` + vipColumns + `, created_at
		 FROM vips
		 WHERE vip_id = $1
		 `

	vip := &models.VIP{}
	var birth, expires, lastPurchase nullDate
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&vip.ID, &vip.Code, &birth, &vip.Phone, &vip.SMSOptIn, &vip.Points, &vip.Discount,
		&vip.FirstName, &vip.LastName, &vip.Email, &vip.Address, &vip.City, &vip.Province, &vip.PostalCode,
		&vip.TaxCode, &vip.VATNumber, &vip.Gender, &vip.MembershipYear, &expires, &vip.Blocked,
		&vip.LastPurchaseAmount, &lastPurchase, &vip.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	vip.BirthDate = birth.ptr()
	vip.ExpiresOn = expires.ptr()
	vip.LastPurchaseDate = lastPurchase.ptr()
	return vip, nil
}

// nullDate scans a nullable DATE column.
type nullDate struct {
	date  models.Date
	valid bool
}

func (n *nullDate) Scan(src any) error {
	if src == nil {
		n.valid = false
		return nil
	}
	n.valid = true
	return n.date.Scan(src)
}

func (n nullDate) ptr() *models.Date {
	if !n.valid {
		return nil
	}
	d := n.date
	return &d
}
