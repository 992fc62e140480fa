package domain

import "context"

// Invoice is a payment request issued by the wallet service. PaymentHash is
// the durable correlation key between the created invoice and its eventual
// settlement signal; Preimage and SettledAt stay empty until the wallet
// reports settlement.
type Invoice struct {
	Invoice     string `json:"invoice"`
	PaymentHash string `json:"payment_hash"`
	Preimage    string `json:"preimage,omitempty"`
	AmountMsat  int64  `json:"amount"`
	Description string `json:"description,omitempty"`
	CreatedAt   int64  `json:"created_at"`
	ExpiresAt   int64  `json:"expires_at,omitempty"`
	SettledAt   int64  `json:"settled_at,omitempty"`
	State       string `json:"state,omitempty"`
}

// Transaction is one entry of a list_transactions response. Some wallet
// services omit PaymentHash here, so matching falls back to the invoice
// string itself.
type Transaction struct {
	Type        string `json:"type"`
	Invoice     string `json:"invoice,omitempty"`
	Description string `json:"description,omitempty"`
	PaymentHash string `json:"payment_hash,omitempty"`
	Preimage    string `json:"preimage,omitempty"`
	AmountMsat  int64  `json:"amount"`
	CreatedAt   int64  `json:"created_at"`
	SettledAt   int64  `json:"settled_at,omitempty"`
	State       string `json:"state,omitempty"`
}

// WalletClient is the protocol surface the settlement layer polls against.
// ListTransactions may be unsupported by a given wallet service; callers
// treat its failure as capability absent, not as a hard error.
type WalletClient interface {
	MakeInvoice(ctx context.Context, amountMsat int64, description string) (Invoice, error)
	LookupInvoice(ctx context.Context, paymentHash string) (Invoice, error)
	ListTransactions(ctx context.Context, from int64, limit int, txType string) ([]Transaction, error)
}
