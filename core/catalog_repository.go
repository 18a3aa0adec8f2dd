package core

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Product is a catalog item. Price is the nullable list price; pricing is
// computed per request, never stored.
type Product struct {
	ID          int64               `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Price       decimal.NullDecimal `json:"price"`
	CategoryID  *int64              `json:"category_id"`
	Tags        []int64             `json:"tags"`
	ImagePath   string              `json:"image_path"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// ProductInput carries create/update fields for a product.
type ProductInput struct {
	Name        string
	Description string
	Price       decimal.NullDecimal
	CategoryID  *int64
	Tags        []int64
	ImagePath   string
}

type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type Banner struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	ImagePath string `json:"image_path"`
	LinkURL   string `json:"link_url"`
	SortOrder int    `json:"sort_order"`
	Active    bool   `json:"active"`
}

// ProductRepository defines persistence operations for catalog items.
type ProductRepository interface {
	List(ctx context.Context, categoryID *int64, page, perPage int) ([]Product, int, error)
	Find(ctx context.Context, id int64) (*Product, error)
	Create(ctx context.Context, in ProductInput) (*Product, error)
	Update(ctx context.Context, id int64, in ProductInput) (*Product, error)
	Delete(ctx context.Context, id int64) error
}

type CategoryRepository interface {
	List(ctx context.Context) ([]Category, error)
	Create(ctx context.Context, name, slug string) (*Category, error)
	Update(ctx context.Context, id int64, name, slug string) (*Category, error)
	Delete(ctx context.Context, id int64) error
}

type BannerRepository interface {
	ListActive(ctx context.Context) ([]Banner, error)
	List(ctx context.Context, page, perPage int) ([]Banner, int, error)
	Create(ctx context.Context, b Banner) (*Banner, error)
	Update(ctx context.Context, id int64, b Banner) (*Banner, error)
	Delete(ctx context.Context, id int64) error
}

// PgProductRepository implements ProductRepository using pgxpool.
type PgProductRepository struct {
	db *pgxpool.Pool
}

func NewPgProductRepository(db *pgxpool.Pool) *PgProductRepository {
	return &PgProductRepository{db: db}
}

const productColumns = `id, name, description, price, category_id, tags, image_path, created_at, updated_at`

func scanProduct(row interface{ Scan(...any) error }) (*Product, error) {
	var p Product
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.CategoryID, &p.Tags, &p.ImagePath, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PgProductRepository) List(ctx context.Context, categoryID *int64, page, perPage int) ([]Product, int, error) {
	if page <= 0 || perPage <= 0 {
		return nil, 0, errors.New("invalid pagination")
	}

	var total int
	if err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM products WHERE $1::bigint IS NULL OR category_id=$1`,
		categoryID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.Query(ctx, `
SELECT `+productColumns+`
FROM products
WHERE $1::bigint IS NULL OR category_id=$1
ORDER BY id DESC
LIMIT $2 OFFSET $3
`, categoryID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := make([]Product, 0, perPage)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, *p)
	}
	return items, total, rows.Err()
}

func (r *PgProductRepository) Find(ctx context.Context, id int64) (*Product, error) {
	return scanProduct(r.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, id))
}

func (r *PgProductRepository) Create(ctx context.Context, in ProductInput) (*Product, error) {
	return scanProduct(r.db.QueryRow(ctx, `
INSERT INTO products (name, description, price, category_id, tags, image_path)
VALUES ($1,$2,$3,$4,$5,$6)
RETURNING `+productColumns,
		in.Name, in.Description, in.Price, in.CategoryID, in.Tags, in.ImagePath))
}

func (r *PgProductRepository) Update(ctx context.Context, id int64, in ProductInput) (*Product, error) {
	return scanProduct(r.db.QueryRow(ctx, `
UPDATE products
SET name=$1, description=$2, price=$3, category_id=$4, tags=$5, image_path=$6, updated_at=now()
WHERE id=$7
RETURNING `+productColumns,
		in.Name, in.Description, in.Price, in.CategoryID, in.Tags, in.ImagePath, id))
}

func (r *PgProductRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM products WHERE id=$1`, id)
	return err
}

// PgCategoryRepository implements CategoryRepository using pgxpool.
type PgCategoryRepository struct {
	db *pgxpool.Pool
}

func NewPgCategoryRepository(db *pgxpool.Pool) *PgCategoryRepository {
	return &PgCategoryRepository{db: db}
}

func (r *PgCategoryRepository) List(ctx context.Context) ([]Category, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, slug FROM categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Category
	for rows.Next() {
		var cat Category
		if err := rows.Scan(&cat.ID, &cat.Name, &cat.Slug); err != nil {
			return nil, err
		}
		items = append(items, cat)
	}
	return items, rows.Err()
}

func (r *PgCategoryRepository) Create(ctx context.Context, name, slug string) (*Category, error) {
	name = strings.TrimSpace(name)
	slug = strings.TrimSpace(slug)
	var cat Category
	if err := r.db.QueryRow(ctx,
		`INSERT INTO categories (name, slug) VALUES ($1,$2) RETURNING id, name, slug`,
		name, slug).Scan(&cat.ID, &cat.Name, &cat.Slug); err != nil {
		return nil, err
	}
	return &cat, nil
}

func (r *PgCategoryRepository) Update(ctx context.Context, id int64, name, slug string) (*Category, error) {
	var cat Category
	if err := r.db.QueryRow(ctx,
		`UPDATE categories SET name=$1, slug=$2 WHERE id=$3 RETURNING id, name, slug`,
		strings.TrimSpace(name), strings.TrimSpace(slug), id).Scan(&cat.ID, &cat.Name, &cat.Slug); err != nil {
		return nil, err
	}
	return &cat, nil
}

func (r *PgCategoryRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM categories WHERE id=$1`, id)
	return err
}

// PgBannerRepository implements BannerRepository using pgxpool.
type PgBannerRepository struct {
	db *pgxpool.Pool
}

func NewPgBannerRepository(db *pgxpool.Pool) *PgBannerRepository {
	return &PgBannerRepository{db: db}
}

const bannerColumns = `id, title, image_path, link_url, sort_order, active`

func (r *PgBannerRepository) ListActive(ctx context.Context) ([]Banner, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+bannerColumns+` FROM banners WHERE active ORDER BY sort_order, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Banner
	for rows.Next() {
		var b Banner
		if err := rows.Scan(&b.ID, &b.Title, &b.ImagePath, &b.LinkURL, &b.SortOrder, &b.Active); err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	return items, rows.Err()
}

func (r *PgBannerRepository) List(ctx context.Context, page, perPage int) ([]Banner, int, error) {
	if page <= 0 || perPage <= 0 {
		return nil, 0, errors.New("invalid pagination")
	}
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM banners`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.db.Query(ctx,
		`SELECT `+bannerColumns+` FROM banners ORDER BY sort_order, id LIMIT $1 OFFSET $2`,
		perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items := make([]Banner, 0, perPage)
	for rows.Next() {
		var b Banner
		if err := rows.Scan(&b.ID, &b.Title, &b.ImagePath, &b.LinkURL, &b.SortOrder, &b.Active); err != nil {
			return nil, 0, err
		}
		items = append(items, b)
	}
	return items, total, rows.Err()
}

func (r *PgBannerRepository) Create(ctx context.Context, b Banner) (*Banner, error) {
	var out Banner
	if err := r.db.QueryRow(ctx, `
INSERT INTO banners (title, image_path, link_url, sort_order, active)
VALUES ($1,$2,$3,$4,$5)
RETURNING `+bannerColumns,
		b.Title, b.ImagePath, b.LinkURL, b.SortOrder, b.Active).
		Scan(&out.ID, &out.Title, &out.ImagePath, &out.LinkURL, &out.SortOrder, &out.Active); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *PgBannerRepository) Update(ctx context.Context, id int64, b Banner) (*Banner, error) {
	var out Banner
	if err := r.db.QueryRow(ctx, `
UPDATE banners SET title=$1, image_path=$2, link_url=$3, sort_order=$4, active=$5
WHERE id=$6
RETURNING `+bannerColumns,
		b.Title, b.ImagePath, b.LinkURL, b.SortOrder, b.Active, id).
		Scan(&out.ID, &out.Title, &out.ImagePath, &out.LinkURL, &out.SortOrder, &out.Active); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *PgBannerRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM banners WHERE id=$1`, id)
	return err
}
