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

type CartRepository interface {
	ListByUser(ctx context.Context, userID int64) ([]domain.CartItem, error)
	GetLine(ctx context.Context, userID, lineID int64) (*domain.CartLine, error)
	GetQuantity(ctx context.Context, userID, productID int64, size string) (int32, error)
	UpsertLine(ctx context.Context, userID, productID int64, size string, quantity int32) (*domain.CartLine, error)
	UpdateQuantity(ctx context.Context, userID, lineID int64, quantity int32) error
	DeleteLine(ctx context.Context, userID, lineID int64) error
	Clear(ctx context.Context, userID int64) error
	ListForCheckout(ctx context.Context, tx pgx.Tx, userID int64) ([]domain.CheckoutLine, error)
	ClearTx(ctx context.Context, tx pgx.Tx, userID int64) error
}

type cartRepo struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
	logger *zap.Logger
}

func NewCartRepository(pool *pgxpool.Pool, logger *zap.Logger) CartRepository {
	return &cartRepo{
		pool:   pool,
		logger: logger,
		tracer: otel.Tracer("contract/cart_repo"),
	}
}

func (r *cartRepo) ListByUser(ctx context.Context, userID int64) ([]domain.CartItem, error) {
	ctx, span := r.tracer.Start(ctx, "CartRepository.ListByUser")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("user_id", userID),
	)

	query := `
		SELECT ci.id, ci.product_id, p.name, p.image_url, ci.size, ci.quantity,
			COALESCE(pv.price, p.price) AS unit_price,
			p.in_stock, p.stock_count, ci.created_at
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id AND p.deleted_at IS NULL
		LEFT JOIN product_variants pv ON pv.product_id = ci.product_id AND pv.size = ci.size
		WHERE ci.user_id = $1
		ORDER BY ci.created_at DESC;
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Failed to query cart items",
			zap.Int64("user_id", userID),
			zap.Error(err),
		)

		return nil, fmt.Errorf("error selecting cart items: %w", err)
	}
	defer rows.Close()

	var items []domain.CartItem
	for rows.Next() {
		var item domain.CartItem
		if err := rows.Scan(
			&item.LineID,
			&item.ProductID,
			&item.Name,
			&item.ImageUrl,
			&item.Size,
			&item.Quantity,
			&item.UnitPrice,
			&item.InStock,
			&item.StockCount,
			&item.AddedAt,
		); err != nil {
			span.RecordError(err)

			return nil, fmt.Errorf("error scanning cart item: %w", err)
		}

		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)

		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return items, nil
}

func (r *cartRepo) GetLine(ctx context.Context, userID, lineID int64) (*domain.CartLine, error) {
	ctx, span := r.tracer.Start(ctx, "CartRepository.GetLine")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("user_id", userID),
		attribute.Int64("line_id", lineID),
	)

	query := `
		SELECT id, user_id, product_id, size, quantity, created_at, updated_at
		FROM cart_items
		WHERE id = $1 AND user_id = $2;
	`

	var line domain.CartLine
	if err := r.pool.QueryRow(ctx, query, lineID, userID).Scan(
		&line.ID,
		&line.UserID,
		&line.ProductID,
		&line.Size,
		&line.Quantity,
		&line.CreatedAt,
		&line.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCartLineNotFound
		}

		span.RecordError(err)

		return nil, fmt.Errorf("error getting cart line: %w", err)
	}

	return &line, nil
}

func (r *cartRepo) GetQuantity(ctx context.Context, userID, productID int64, size string) (int32, error) {
	ctx, span := r.tracer.Start(ctx, "CartRepository.GetQuantity")
	defer span.End()

	query := `
		SELECT quantity
		FROM cart_items
		WHERE user_id = $1 AND product_id = $2 AND size = $3;
	`

	var quantity int32
	err := r.pool.QueryRow(ctx, query, userID, productID, size).Scan(&quantity)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		span.RecordError(err)

		return 0, fmt.Errorf("error getting cart quantity: %w", err)
	}

	return quantity, nil
}

// UpsertLine inserts a new line or merges into the existing one for the same
// (user, product, size) tuple, clamped at the line maximum. The unique key
// makes the merge atomic under concurrent adds.
func (r *cartRepo) UpsertLine(ctx context.Context, userID, productID int64, size string, quantity int32) (*domain.CartLine, error) {
	ctx, span := r.tracer.Start(ctx, "CartRepository.UpsertLine")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("user_id", userID),
		attribute.Int64("product_id", productID),
		attribute.Int("quantity", int(quantity)),
	)

	query := `
		INSERT INTO cart_items (user_id, product_id, size, quantity)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, product_id, size)
		DO UPDATE SET
			quantity = LEAST($5, cart_items.quantity + EXCLUDED.quantity),
			updated_at = NOW()
		RETURNING id, user_id, product_id, size, quantity, created_at, updated_at;
	`

	var line domain.CartLine
	if err := r.pool.QueryRow(ctx, query, userID, productID, size, quantity, domain.MaxLineQuantity).Scan(
		&line.ID,
		&line.UserID,
		&line.ProductID,
		&line.Size,
		&line.Quantity,
		&line.CreatedAt,
		&line.UpdatedAt,
	); err != nil {
		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Failed to upsert cart line",
			zap.Int64("user_id", userID),
			zap.Int64("product_id", productID),
			zap.Error(err),
		)

		return nil, fmt.Errorf("error upserting cart line: %w", err)
	}

	return &line, nil
}

func (r *cartRepo) UpdateQuantity(ctx context.Context, userID, lineID int64, quantity int32) error {
	ctx, span := r.tracer.Start(ctx, "CartRepository.UpdateQuantity")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("line_id", lineID),
		attribute.Int("quantity", int(quantity)),
	)

	query := `
		UPDATE cart_items
		SET quantity = $3, updated_at = NOW()
		WHERE id = $1 AND user_id = $2;
	`

	commandTag, err := r.pool.Exec(ctx, query, lineID, userID, quantity)
	if err != nil {
		span.RecordError(err)

		return fmt.Errorf("error updating cart line: %w", err)
	}

	if commandTag.RowsAffected() == 0 {
		return ErrCartLineNotFound
	}

	return nil
}

// DeleteLine is idempotent: removing an absent line is a no-op, not an error.
func (r *cartRepo) DeleteLine(ctx context.Context, userID, lineID int64) error {
	ctx, span := r.tracer.Start(ctx, "CartRepository.DeleteLine")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("line_id", lineID),
	)

	query := `
		DELETE FROM cart_items
		WHERE id = $1 AND user_id = $2;
	`

	if _, err := r.pool.Exec(ctx, query, lineID, userID); err != nil {
		span.RecordError(err)

		return fmt.Errorf("error deleting cart line: %w", err)
	}

	return nil
}

func (r *cartRepo) Clear(ctx context.Context, userID int64) error {
	ctx, span := r.tracer.Start(ctx, "CartRepository.Clear")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("user_id", userID),
	)

	query := `
		DELETE FROM cart_items
		WHERE user_id = $1;
	`

	if _, err := r.pool.Exec(ctx, query, userID); err != nil {
		span.RecordError(err)

		return fmt.Errorf("error clearing cart: %w", err)
	}

	return nil
}

// ListForCheckout re-reads the cart joined with product rows inside the
// commit transaction. Validation and snapshots use these rows, not anything
// cached from earlier in the request.
func (r *cartRepo) ListForCheckout(ctx context.Context, tx pgx.Tx, userID int64) ([]domain.CheckoutLine, error) {
	ctx, span := r.tracer.Start(ctx, "CartRepository.ListForCheckout")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("user_id", userID),
	)

	query := `
		SELECT ci.id, ci.product_id, p.name, p.sku, p.image_url, ci.size, ci.quantity,
			p.price, pv.price, p.in_stock, p.stock_count
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id AND p.deleted_at IS NULL
		LEFT JOIN product_variants pv ON pv.product_id = ci.product_id AND pv.size = ci.size
		WHERE ci.user_id = $1
		ORDER BY ci.created_at DESC;
	`

	rows, err := tx.Query(ctx, query, userID)
	if err != nil {
		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Failed to query checkout lines",
			zap.Int64("user_id", userID),
			zap.Error(err),
		)

		return nil, fmt.Errorf("error selecting checkout lines: %w", err)
	}
	defer rows.Close()

	var lines []domain.CheckoutLine
	for rows.Next() {
		var line domain.CheckoutLine
		if err := rows.Scan(
			&line.LineID,
			&line.ProductID,
			&line.Name,
			&line.SKU,
			&line.ImageUrl,
			&line.Size,
			&line.Quantity,
			&line.BasePrice,
			&line.VariantPrice,
			&line.InStock,
			&line.StockCount,
		); err != nil {
			span.RecordError(err)

			return nil, fmt.Errorf("error scanning checkout line: %w", err)
		}

		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)

		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return lines, nil
}

func (r *cartRepo) ClearTx(ctx context.Context, tx pgx.Tx, userID int64) error {
	ctx, span := r.tracer.Start(ctx, "CartRepository.ClearTx")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("user_id", userID),
	)

	query := `
		DELETE FROM cart_items
		WHERE user_id = $1;
	`

	if _, err := tx.Exec(ctx, query, userID); err != nil {
		span.RecordError(err)

		return fmt.Errorf("error clearing cart: %w", err)
	}

	return nil
}
