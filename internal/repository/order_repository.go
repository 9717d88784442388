package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/mscinema/booking-service/internal/model"
)

// OrderRepo provides data access to the orders table.  An order is
// created PENDING at checkout and resolved by the payment-return
// reconciliation, keyed by reference number (which doubles as the
// gateway order ID).
type OrderRepo struct {
	db *sqlx.DB
}

// NewOrderRepo returns a new OrderRepo bound to the provided database.
func NewOrderRepo(db *sqlx.DB) *OrderRepo { return &OrderRepo{db: db} }

// Create inserts a new order.  PaymentStatus and Status default to
// PENDING when unset so callers only fill the business fields.
func (r *OrderRepo) Create(ctx context.Context, o *model.Order) error {
	if o.PaymentStatus == "" {
		o.PaymentStatus = model.PaymentPending
	}
	if o.Status == "" {
		o.Status = model.OrderPending
	}
	const q = `INSERT INTO orders
		(order_id, reference_no, customer_name, customer_email, customer_phone,
		 movie_id, cinema_id, show_id, seats, amount, payment_status, status, transaction_no)
		VALUES (:order_id, :reference_no, :customer_name, :customer_email, :customer_phone,
		 :movie_id, :cinema_id, :show_id, :seats, :amount, :payment_status, :status, :transaction_no)`
	res, err := r.db.NamedExecContext(ctx, q, o)
	if err != nil {
		return err
	}
	if id, err := res.LastInsertId(); err == nil {
		o.ID = uint64(id)
	}
	return nil
}

// GetByReference loads one order by reference number.
func (r *OrderRepo) GetByReference(ctx context.Context, referenceNo string) (*model.Order, error) {
	var o model.Order
	const q = `SELECT id, order_id, reference_no, customer_name, customer_email, customer_phone,
		movie_id, cinema_id, show_id, seats, amount, payment_status, status, transaction_no,
		created_at, updated_at
		FROM orders WHERE reference_no = ?`
	if err := r.db.GetContext(ctx, &o, q, referenceNo); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &o, nil
}

// MarkPaid records a successful payment: PAID/CONFIRMED plus the
// gateway transaction number.
func (r *OrderRepo) MarkPaid(ctx context.Context, referenceNo, transactionNo string) error {
	return r.setOutcome(ctx, referenceNo, transactionNo, model.PaymentPaid, model.OrderConfirmed)
}

// MarkFailed records a failed payment: FAILED/CANCELLED.
func (r *OrderRepo) MarkFailed(ctx context.Context, referenceNo, transactionNo string) error {
	return r.setOutcome(ctx, referenceNo, transactionNo, model.PaymentFailed, model.OrderCancelled)
}

func (r *OrderRepo) setOutcome(ctx context.Context, referenceNo, transactionNo string, pay model.PaymentStatus, status model.OrderStatus) error {
	const q = `UPDATE orders
		SET payment_status = ?, status = ?, transaction_no = ?, updated_at = UTC_TIMESTAMP()
		WHERE reference_no = ?`
	res, err := r.db.ExecContext(ctx, q, pay, status, transactionNo, referenceNo)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrOrderNotFound
	}
	return nil
}
