package core

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
)

// OfferInput carries create/update fields for an offer.
type OfferInput struct {
	Title        string
	DiscountType string
	DiscountVal  string // decimal string, validated by the DB numeric type
	StartAt      *string
	EndAt        *string
	ProductID    *int64
	CategoryID   *int64
}

// OfferRepository defines persistence operations for offers.
type OfferRepository interface {
	// CandidatesForProduct returns offers targeting the product directly or
	// via its category, newest id first. Temporal filtering is left to the
	// pricing resolver.
	CandidatesForProduct(ctx context.Context, productID int64, categoryID *int64) ([]Offer, error)
	List(ctx context.Context, page, perPage int) ([]Offer, int, error)
	Find(ctx context.Context, id int64) (*Offer, error)
	Create(ctx context.Context, in OfferInput) (*Offer, error)
	Update(ctx context.Context, id int64, in OfferInput) (*Offer, error)
	Delete(ctx context.Context, id int64) error
}

// PgOfferRepository implements OfferRepository using pgxpool.
type PgOfferRepository struct {
	db *pgxpool.Pool
}

func NewPgOfferRepository(db *pgxpool.Pool) *PgOfferRepository {
	return &PgOfferRepository{db: db}
}

const offerColumns = `id, title, discount_type, discount_val, start_at, end_at, product_id, category_id, created_at`

func scanOffer(row interface{ Scan(...any) error }) (*Offer, error) {
	var o Offer
	if err := row.Scan(&o.ID, &o.Title, &o.DiscountType, &o.DiscountVal, &o.StartAt, &o.EndAt, &o.ProductID, &o.CategoryID, &o.CreatedAt); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *PgOfferRepository) CandidatesForProduct(ctx context.Context, productID int64, categoryID *int64) ([]Offer, error) {
	// id DESC keeps the DB ordering aligned with the highest-id-wins
	// selection in the resolver.
	rows, err := r.db.Query(ctx, `
SELECT `+offerColumns+`
FROM offers
WHERE product_id=$1 OR ($2::bigint IS NOT NULL AND category_id=$2)
ORDER BY id DESC
`, productID, categoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Offer
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *o)
	}
	return items, rows.Err()
}

func (r *PgOfferRepository) List(ctx context.Context, page, perPage int) ([]Offer, int, error) {
	if page <= 0 || perPage <= 0 {
		return nil, 0, errors.New("invalid pagination")
	}
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM offers`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.db.Query(ctx,
		`SELECT `+offerColumns+` FROM offers ORDER BY id DESC LIMIT $1 OFFSET $2`,
		perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items := make([]Offer, 0, perPage)
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, *o)
	}
	return items, total, rows.Err()
}

func (r *PgOfferRepository) Find(ctx context.Context, id int64) (*Offer, error) {
	return scanOffer(r.db.QueryRow(ctx, `SELECT `+offerColumns+` FROM offers WHERE id=$1`, id))
}

func (r *PgOfferRepository) Create(ctx context.Context, in OfferInput) (*Offer, error) {
	return scanOffer(r.db.QueryRow(ctx, `
INSERT INTO offers (title, discount_type, discount_val, start_at, end_at, product_id, category_id)
VALUES ($1,$2,$3::numeric,$4::timestamptz,$5::timestamptz,$6,$7)
RETURNING `+offerColumns,
		in.Title, in.DiscountType, in.DiscountVal, in.StartAt, in.EndAt, in.ProductID, in.CategoryID))
}

func (r *PgOfferRepository) Update(ctx context.Context, id int64, in OfferInput) (*Offer, error) {
	return scanOffer(r.db.QueryRow(ctx, `
UPDATE offers
SET title=$1, discount_type=$2, discount_val=$3::numeric, start_at=$4::timestamptz, end_at=$5::timestamptz, product_id=$6, category_id=$7
WHERE id=$8
RETURNING `+offerColumns,
		in.Title, in.DiscountType, in.DiscountVal, in.StartAt, in.EndAt, in.ProductID, in.CategoryID, id))
}

func (r *PgOfferRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM offers WHERE id=$1`, id)
	return err
}
