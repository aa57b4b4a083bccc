package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sakashimaa/go-storefront/internal/domain"
	"github.com/sakashimaa/go-storefront/pkg/mylogger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type OrderRepository interface {
	CreateOrder(ctx context.Context, tx pgx.Tx, order *domain.Order) error
	GetByID(ctx context.Context, userID, orderID int64) (*domain.Order, error)
	ListByUser(ctx context.Context, userID, limit, offset int64) ([]domain.Order, int64, error)
}

type orderRepo struct {
	pool   *pgxpool.Pool
	tracer trace.Tracer
	logger *zap.Logger
}

func NewOrderRepository(pool *pgxpool.Pool, logger *zap.Logger) OrderRepository {
	return &orderRepo{
		pool:   pool,
		logger: logger,
		tracer: otel.Tracer("contract/order_repo"),
	}
}

// CreateOrder inserts the order row and all line snapshots. The insert runs
// under a savepoint: a duplicate order number rolls back only this attempt
// and surfaces as ErrDuplicateOrderNumber, leaving the caller's transaction
// usable so it can regenerate the number and retry.
func (r *orderRepo) CreateOrder(ctx context.Context, tx pgx.Tx, order *domain.Order) error {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.CreateOrder")
	defer span.End()

	span.SetAttributes(
		attribute.String("order_number", order.OrderNumber),
		attribute.Int("items_count", len(order.Items)),
	)

	shippingAddr, err := json.Marshal(order.ShippingAddress)
	if err != nil {
		return fmt.Errorf("error marshaling shipping address: %w", err)
	}

	var billingAddr []byte
	if order.BillingAddress != nil {
		billingAddr, err = json.Marshal(order.BillingAddress)
		if err != nil {
			return fmt.Errorf("error marshaling billing address: %w", err)
		}
	}

	// pgx renders a nested Begin as SAVEPOINT.
	sp, err := tx.Begin(ctx)
	if err != nil {
		span.RecordError(err)

		return fmt.Errorf("failed to open savepoint: %w", err)
	}

	queryOrder := `
		INSERT INTO orders (order_number, user_id, status, subtotal, tax, shipping, total,
			shipping_address, billing_address, payment_method, customer_notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
		RETURNING id, created_at, updated_at;
	`

	if err := sp.QueryRow(
		ctx,
		queryOrder,
		order.OrderNumber,
		order.UserID,
		string(order.Status),
		order.Subtotal,
		order.Tax,
		order.Shipping,
		order.Total,
		shippingAddr,
		billingAddr,
		order.PaymentMethod,
		order.CustomerNotes,
	).Scan(
		&order.ID,
		&order.CreatedAt,
		&order.UpdatedAt,
	); err != nil {
		if rbErr := sp.Rollback(ctx); rbErr != nil {
			mylogger.Warn(
				ctx,
				r.logger,
				"Error rolling back savepoint",
				zap.Error(rbErr),
			)
		}

		var pgError *pgconn.PgError
		if errors.As(err, &pgError) && pgError.Code == "23505" {
			mylogger.Warn(
				ctx,
				r.logger,
				"Order number collision",
				zap.String("order_number", order.OrderNumber),
			)

			return ErrDuplicateOrderNumber
		}

		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Failed to insert order",
			zap.Error(err),
		)

		return fmt.Errorf("failed to insert order: %w", err)
	}

	queryItem := `
		INSERT INTO order_items (order_id, product_id, name, sku, image_url, size, price, quantity, subtotal)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id;
	`

	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID

		if err := sp.QueryRow(
			ctx,
			queryItem,
			order.ID,
			item.ProductID,
			item.Name,
			item.SKU,
			item.ImageUrl,
			item.Size,
			item.Price,
			item.Quantity,
			item.Subtotal,
		).Scan(&item.ID); err != nil {
			if rbErr := sp.Rollback(ctx); rbErr != nil {
				mylogger.Warn(
					ctx,
					r.logger,
					"Error rolling back savepoint",
					zap.Error(rbErr),
				)
			}

			span.RecordError(err)

			mylogger.Error(
				ctx,
				r.logger,
				"Failed to insert order item",
				zap.Int64("product_id", item.ProductID),
				zap.Error(err),
			)

			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}

	if err := sp.Commit(ctx); err != nil {
		span.RecordError(err)

		return fmt.Errorf("failed to release savepoint: %w", err)
	}

	return nil
}

func (r *orderRepo) GetByID(ctx context.Context, userID, orderID int64) (*domain.Order, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.GetByID")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("order_id", orderID),
	)

	query := `
		SELECT id, order_number, user_id, status, subtotal, tax, shipping, total,
			shipping_address, billing_address, payment_method, customer_notes, created_at, updated_at
		FROM orders
		WHERE id = $1 AND user_id = $2;
	`

	var order domain.Order
	var status string
	var shippingAddr, billingAddr []byte

	if err := r.pool.QueryRow(ctx, query, orderID, userID).Scan(
		&order.ID,
		&order.OrderNumber,
		&order.UserID,
		&status,
		&order.Subtotal,
		&order.Tax,
		&order.Shipping,
		&order.Total,
		&shippingAddr,
		&billingAddr,
		&order.PaymentMethod,
		&order.CustomerNotes,
		&order.CreatedAt,
		&order.UpdatedAt,
	); err != nil {
		// Another user's order is indistinguishable from an absent one.
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}

		span.RecordError(err)

		return nil, fmt.Errorf("error getting order: %w", err)
	}

	order.Status = domain.OrderStatus(status)

	if err := json.Unmarshal(shippingAddr, &order.ShippingAddress); err != nil {
		return nil, fmt.Errorf("error unmarshaling shipping address: %w", err)
	}

	if len(billingAddr) > 0 {
		order.BillingAddress = &domain.Address{}
		if err := json.Unmarshal(billingAddr, order.BillingAddress); err != nil {
			return nil, fmt.Errorf("error unmarshaling billing address: %w", err)
		}
	}

	itemsQuery := `
		SELECT id, order_id, product_id, name, sku, image_url, size, price, quantity, subtotal
		FROM order_items
		WHERE order_id = $1
		ORDER BY id;
	`

	rows, err := r.pool.Query(ctx, itemsQuery, orderID)
	if err != nil {
		span.RecordError(err)

		return nil, fmt.Errorf("error querying order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.OrderLine
		if err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.Name,
			&item.SKU,
			&item.ImageUrl,
			&item.Size,
			&item.Price,
			&item.Quantity,
			&item.Subtotal,
		); err != nil {
			span.RecordError(err)

			return nil, fmt.Errorf("error scanning order item: %w", err)
		}

		order.Items = append(order.Items, item)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)

		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return &order, nil
}

func (r *orderRepo) ListByUser(ctx context.Context, userID, limit, offset int64) ([]domain.Order, int64, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.ListByUser")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("user_id", userID),
		attribute.Int64("limit", limit),
		attribute.Int64("offset", offset),
	)

	query := `
		SELECT id, order_number, user_id, status, subtotal, tax, shipping, total, created_at, updated_at
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3;
	`

	rows, err := r.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		span.RecordError(err)

		mylogger.Error(
			ctx,
			r.logger,
			"Error listing orders",
			zap.Int64("user_id", userID),
			zap.Error(err),
		)

		return nil, 0, fmt.Errorf("error selecting orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		var order domain.Order
		var status string
		if err := rows.Scan(
			&order.ID,
			&order.OrderNumber,
			&order.UserID,
			&status,
			&order.Subtotal,
			&order.Tax,
			&order.Shipping,
			&order.Total,
			&order.CreatedAt,
			&order.UpdatedAt,
		); err != nil {
			span.RecordError(err)

			return nil, 0, fmt.Errorf("error scanning order: %w", err)
		}

		order.Status = domain.OrderStatus(status)
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)

		return nil, 0, fmt.Errorf("rows iteration error: %w", err)
	}

	var totalCount int64
	countQuery := `SELECT COUNT(*) FROM orders WHERE user_id = $1;`
	if err := r.pool.QueryRow(ctx, countQuery, userID).Scan(&totalCount); err != nil {
		span.RecordError(err)

		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	return orders, totalCount, nil
}
