package model

import "time"

// PaymentStatus tracks the gateway outcome recorded on an order.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentPaid    PaymentStatus = "PAID"
	PaymentFailed  PaymentStatus = "FAILED"
)

// OrderStatus tracks the booking outcome recorded on an order.
type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderConfirmed OrderStatus = "CONFIRMED"
	OrderCancelled OrderStatus = "CANCELLED"
)

// Order is the locally persisted record of a payment attempt.  It is
// created when checkout is initiated (PENDING/PENDING) and updated by
// the payment-return reconciliation keyed by ReferenceNo.  Show fields
// are denormalized snapshots so the back office can render an order
// without calling the external API.
type Order struct {
	ID            uint64        `db:"id"`
	OrderID       string        `db:"order_id"`
	ReferenceNo   string        `db:"reference_no"`
	CustomerName  string        `db:"customer_name"`
	CustomerEmail string        `db:"customer_email"`
	CustomerPhone string        `db:"customer_phone"`
	MovieID       string        `db:"movie_id"`
	CinemaID      string        `db:"cinema_id"`
	ShowID        string        `db:"show_id"`
	Seats         string        `db:"seats"`
	Amount        float64       `db:"amount"`
	PaymentStatus PaymentStatus `db:"payment_status"`
	Status        OrderStatus   `db:"status"`
	TransactionNo string        `db:"transaction_no"`
	CreatedAt     time.Time     `db:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at"`
}

// PaymentLog is a raw record of one gateway return callback.  Every
// callback is logged regardless of signature validity so the back
// office can audit disputes.
type PaymentLog struct {
	ID        uint64    `db:"id"`
	OrderID   string    `db:"order_id"`
	TranID    string    `db:"tran_id"`
	Status    string    `db:"status"`
	Amount    string    `db:"amount"`
	Currency  string    `db:"currency"`
	Channel   string    `db:"channel"`
	ErrorCode string    `db:"error_code"`
	ErrorDesc string    `db:"error_desc"`
	SKeyValid bool      `db:"skey_valid"`
	PayDate   string    `db:"pay_date"`
	CreatedAt time.Time `db:"created_at"`
}
