package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sakashimaa/go-storefront/internal/domain"
	"github.com/sakashimaa/go-storefront/pkg/mylogger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type ProductRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Product, error)
	GetStockCount(ctx context.Context, tx pgx.Tx, id int64) (int32, error)
	DecrementStock(ctx context.Context, tx pgx.Tx, id int64, quantity int32) error
}

type productRepo struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
	logger *zap.Logger
}

func NewProductRepository(pool *pgxpool.Pool, logger *zap.Logger) ProductRepository {
	return &productRepo{
		pool:   pool,
		logger: logger,
		tracer: otel.Tracer("contract/product_repo"),
	}
}

func (r *productRepo) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.GetByID")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("id", id),
	)

	query := `
		SELECT id, name, sku, description, price, stock_count, in_stock,
		image_url, category, created_at, updated_at
		FROM products
		WHERE id = $1 AND deleted_at IS NULL;
	`

	var res domain.Product
	if err := r.pool.QueryRow(ctx, query, id).
		Scan(&res.ID, &res.Name, &res.SKU, &res.Description, &res.Price,
			&res.StockCount, &res.InStock, &res.ImageUrl, &res.Category,
			&res.CreatedAt, &res.UpdatedAt,
		); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}

		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Error get by id",
			zap.Int64("id", id),
			zap.Error(err),
		)

		return nil, fmt.Errorf("error getting product: %w", err)
	}

	variantQuery := `
		SELECT id, product_id, size, price
		FROM product_variants
		WHERE product_id = $1
		ORDER BY size;
	`

	rows, err := r.pool.Query(ctx, variantQuery, id)
	if err != nil {
		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Error querying product variants",
			zap.Int64("id", id),
			zap.Error(err),
		)

		return nil, fmt.Errorf("error querying variants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var v domain.Variant
		if err := rows.Scan(&v.ID, &v.ProductID, &v.Size, &v.Price); err != nil {
			span.RecordError(err)

			return nil, fmt.Errorf("error scanning variant: %w", err)
		}

		res.Variants = append(res.Variants, v)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)

		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return &res, nil
}

// GetStockCount reads the current stock as visible inside tx.
func (r *productRepo) GetStockCount(ctx context.Context, tx pgx.Tx, id int64) (int32, error) {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.GetStockCount")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("id", id),
	)

	query := `
		SELECT stock_count
		FROM products
		WHERE id = $1 AND deleted_at IS NULL;
	`

	var stockCount int32
	if err := tx.QueryRow(ctx, query, id).Scan(&stockCount); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrProductNotFound
		}

		span.RecordError(err)

		return 0, fmt.Errorf("error getting stock count: %w", err)
	}

	return stockCount, nil
}

// DecrementStock applies a conditional decrement against the row state
// visible inside tx. Zero affected rows means the stock moved under us:
// the caller treats that as a failed decrement, never as a partial one.
func (r *productRepo) DecrementStock(ctx context.Context, tx pgx.Tx, id int64, quantity int32) error {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.DecrementStock")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("id", id),
		attribute.Int("quantity", int(quantity)),
	)

	query := `
		UPDATE products
		SET stock_count = stock_count - $2,
			in_stock = (stock_count - $2) > 0,
			updated_at = NOW()
		WHERE id = $1
			AND stock_count >= $2
			AND deleted_at IS NULL;
	`

	commandTag, err := tx.Exec(ctx, query, id, quantity)
	if err != nil {
		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Error decrementing stock",
			zap.Int64("id", id),
			zap.Int32("quantity", quantity),
			zap.Error(err),
		)

		return fmt.Errorf("error decrementing stock for product %d: %w", id, err)
	}

	if commandTag.RowsAffected() == 0 {
		return ErrInsufficientStock
	}

	return nil
}
