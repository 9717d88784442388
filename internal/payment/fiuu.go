// Package payment bridges the Fiuu (MOLPay) seamless-payment gateway:
// it builds the signed parameter set the gateway widget consumes,
// verifies return-callback signatures and reconciles payment outcomes
// with the external booking state and the local order record.
package payment

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
)

// GatewayConfig carries the merchant account settings.  VerifyKey signs
// both the outgoing vcode and the returning skey.
type GatewayConfig struct {
	MerchantID string
	VerifyKey  string
	ReturnURL  string
	SuccessURL string
	FailedURL  string
	Currency   string
}

// CheckoutParams is the data-mps* attribute set handed to the seamless
// widget.  Field names match the attribute suffixes the gateway script
// expects.
type CheckoutParams struct {
	MerchantID string `json:"mpsmerchantid"`
	Channel    string `json:"mpschannel"`
	Amount     string `json:"mpsamount"`
	OrderID    string `json:"mpsorderid"`
	BillName   string `json:"mpsbill_name"`
	BillEmail  string `json:"mpsbill_email"`
	BillMobile string `json:"mpsbill_mobile"`
	BillDesc   string `json:"mpsbill_desc"`
	Currency   string `json:"mpscurrency"`
	VCode      string `json:"mpsvcode"`
	ReturnURL  string `json:"mpsreturnurl"`
}

// FormatAmount renders an amount the way the gateway expects: two
// decimal places, no separators.
func FormatAmount(amount float64) string {
	return fmt.Sprintf("%.2f", amount)
}

// BuildCheckoutParams assembles the signed widget parameters for one
// order.  The vcode is md5(amount + merchantID + orderID + verifyKey).
func (g GatewayConfig) BuildCheckoutParams(orderID, channel, amount, name, email, mobile, desc string) CheckoutParams {
	currency := g.Currency
	if currency == "" {
		currency = "MYR"
	}
	return CheckoutParams{
		MerchantID: g.MerchantID,
		Channel:    channel,
		Amount:     amount,
		OrderID:    orderID,
		BillName:   name,
		BillEmail:  email,
		BillMobile: mobile,
		BillDesc:   desc,
		Currency:   currency,
		VCode:      md5hex(amount + g.MerchantID + orderID + g.VerifyKey),
		ReturnURL:  g.ReturnURL,
	}
}

// ReturnFields is the callback payload the gateway posts (or redirects
// with) after a payment attempt.  Extra booking fields may ride along
// depending on how the transaction was initiated; they feed the
// booking-detail fallback chain during reconciliation.
type ReturnFields struct {
	Amount    string
	OrderID   string
	TranID    string
	Domain    string
	Status    string
	AppCode   string
	PayDate   string
	Currency  string
	SKey      string
	ErrorCode string
	ErrorDesc string
	Channel   string

	// Optional booking details embedded in the payload.
	CinemaID    string
	ShowID      string
	ReferenceNo string
	ReturnURL   string
}

// VerifySKey checks the two-stage MD5 signature of a return callback:
//
//	key0 = md5(tranID + orderID + status + domain + amount + currency)
//	key1 = md5(paydate + domain + key0 + appcode + verifyKey)
//
// The provided skey must equal key1, compared case-insensitively.
func (g GatewayConfig) VerifySKey(f ReturnFields) bool {
	key0 := md5hex(f.TranID + f.OrderID + f.Status + f.Domain + f.Amount + f.Currency)
	key1 := md5hex(f.PayDate + f.Domain + key0 + f.AppCode + g.VerifyKey)
	return f.SKey != "" && strings.EqualFold(f.SKey, key1)
}

// SignReturn computes the skey the gateway would attach to the given
// fields.  Exposed for tests and for the sandbox simulator.
func (g GatewayConfig) SignReturn(f ReturnFields) string {
	key0 := md5hex(f.TranID + f.OrderID + f.Status + f.Domain + f.Amount + f.Currency)
	return md5hex(f.PayDate + f.Domain + key0 + f.AppCode + g.VerifyKey)
}

func md5hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
