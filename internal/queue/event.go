package queue

// PaymentReconciledEvent is published after every verified gateway
// callback has been reconciled.  It carries enough for downstream
// consumers (audit log writer, notifications, analytics) to act
// without querying the orders database.
type PaymentReconciledEvent struct {
	OrderID       string `json:"order_id"`
	ReferenceNo   string `json:"reference_no"`
	TransactionNo string `json:"transaction_no"`
	StatusCode    string `json:"status_code"`
	Outcome       string `json:"outcome"` // PAID or FAILED
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	Channel       string `json:"channel"`
	ErrorCode     string `json:"error_code,omitempty"`
	ErrorDesc     string `json:"error_desc,omitempty"`
	CinemaID      string `json:"cinema_id,omitempty"`
	ShowID        string `json:"show_id,omitempty"`
	ReconciledAt  string `json:"reconciled_at"`
}
