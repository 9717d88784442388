package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/mscinema/booking-service/internal/model"
)

// PaymentLogRepo records every gateway callback, valid or not, so the
// back office can audit disputes and investigate half-way bookings.
type PaymentLogRepo struct {
	db *sqlx.DB
}

// NewPaymentLogRepo returns a new PaymentLogRepo bound to the provided
// database.
func NewPaymentLogRepo(db *sqlx.DB) *PaymentLogRepo { return &PaymentLogRepo{db: db} }

// Insert appends one callback record.
func (r *PaymentLogRepo) Insert(ctx context.Context, l model.PaymentLog) error {
	const q = `INSERT INTO payment_logs
		(order_id, tran_id, status, amount, currency, channel, error_code, error_desc, skey_valid, pay_date)
		VALUES (:order_id, :tran_id, :status, :amount, :currency, :channel, :error_code, :error_desc, :skey_valid, :pay_date)`
	_, err := r.db.NamedExecContext(ctx, q, l)
	return err
}

// ListByOrder returns all callbacks recorded for one order, newest
// first.
func (r *PaymentLogRepo) ListByOrder(ctx context.Context, orderID string) ([]model.PaymentLog, error) {
	var logs []model.PaymentLog
	const q = `SELECT id, order_id, tran_id, status, amount, currency, channel,
		error_code, error_desc, skey_valid, pay_date, created_at
		FROM payment_logs WHERE order_id = ? ORDER BY id DESC`
	if err := r.db.SelectContext(ctx, &logs, q, orderID); err != nil {
		return nil, err
	}
	return logs, nil
}
