// internal/repository/postgres/product_repository.go
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/tiendanorte/compraplan/internal/domain"
)

type productRepository struct {
	db *DB
}

func NewProductRepository(db *DB) *productRepository {
	return &productRepository{db: db}
}

func (r *productRepository) List(ctx context.Context, skuPrefix string) ([]domain.Product, error) {
	query := `
		SELECT id, sku, description, family, created_at, updated_at
		FROM products
		WHERE ($1 = '' OR sku ILIKE $1 || '%')
		ORDER BY sku ASC
	`

	var products []domain.Product
	if err := sqlx.SelectContext(ctx, r.db, &products, query, skuPrefix); err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	return products, nil
}

func (r *productRepository) GetBySKU(ctx context.Context, sku string) (*domain.Product, error) {
	query := `
		SELECT id, sku, description, family, created_at, updated_at
		FROM products
		WHERE sku = $1
	`

	var p domain.Product
	if err := sqlx.GetContext(ctx, r.db, &p, query, sku); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("product %s: %w", sku, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get product by sku: %w", err)
	}

	return &p, nil
}

func (r *productRepository) Create(ctx context.Context, p *domain.Product) error {
	query := `
		INSERT INTO products (sku, description, family, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (sku) DO UPDATE SET updated_at = NOW()
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRowContext(ctx, query, p.SKU, p.Description, p.Family).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}

	return nil
}

func (r *productRepository) Update(ctx context.Context, p *domain.Product) error {
	query := `
		UPDATE products
		SET description = $2, family = $3, updated_at = NOW()
		WHERE id = $1
	`

	res, err := r.db.ExecContext(ctx, query, p.ID, p.Description, p.Family)
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("product %d: %w", p.ID, domain.ErrNotFound)
	}

	return nil
}
