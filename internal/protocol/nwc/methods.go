package nwc

import (
	"context"
	"encoding/json"

	"github.com/deekay/bitcaptcha/internal/domain"
)

type makeInvoiceParams struct {
	Amount      int64  `json:"amount"`
	Description string `json:"description,omitempty"`
}

type lookupInvoiceParams struct {
	PaymentHash string `json:"payment_hash"`
}

type listTransactionsParams struct {
	From  int64  `json:"from,omitempty"`
	Limit int    `json:"limit,omitempty"`
	Type  string `json:"type,omitempty"`
}

type listTransactionsResult struct {
	Transactions []domain.Transaction `json:"transactions"`
}

// Info is the wallet's self-description from get_info.
type Info struct {
	Alias   string   `json:"alias,omitempty"`
	PubKey  string   `json:"pubkey,omitempty"`
	Network string   `json:"network,omitempty"`
	Methods []string `json:"methods,omitempty"`
}

// MakeInvoice asks the wallet to issue an invoice for amountMsat
// millisatoshis.
func (c *Client) MakeInvoice(ctx context.Context, amountMsat int64, description string) (domain.Invoice, error) {
	raw, err := c.SendRequest(ctx, "make_invoice", makeInvoiceParams{
		Amount:      amountMsat,
		Description: description,
	}, 0)
	if err != nil {
		return domain.Invoice{}, err
	}
	var inv domain.Invoice
	if err := json.Unmarshal(raw, &inv); err != nil {
		return domain.Invoice{}, domain.Wrap(domain.ErrProtocol, "malformed make_invoice result", err)
	}
	if inv.Invoice == "" || inv.PaymentHash == "" {
		return domain.Invoice{}, domain.E(domain.ErrProtocol, "make_invoice result missing invoice or payment hash")
	}
	return inv, nil
}

// LookupInvoice fetches the wallet's current view of an invoice by payment
// hash, including the optional settlement time and proof value.
func (c *Client) LookupInvoice(ctx context.Context, paymentHash string) (domain.Invoice, error) {
	raw, err := c.SendRequest(ctx, "lookup_invoice", lookupInvoiceParams{PaymentHash: paymentHash}, 0)
	if err != nil {
		return domain.Invoice{}, err
	}
	var inv domain.Invoice
	if err := json.Unmarshal(raw, &inv); err != nil {
		return domain.Invoice{}, domain.Wrap(domain.ErrProtocol, "malformed lookup_invoice result", err)
	}
	return inv, nil
}

// ListTransactions returns recent transactions since from. Not every wallet
// service implements this; callers must treat failure as capability absent
// rather than a hard error.
func (c *Client) ListTransactions(ctx context.Context, from int64, limit int, txType string) ([]domain.Transaction, error) {
	raw, err := c.SendRequest(ctx, "list_transactions", listTransactionsParams{
		From:  from,
		Limit: limit,
		Type:  txType,
	}, 0)
	if err != nil {
		return nil, err
	}
	var res listTransactionsResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, domain.Wrap(domain.ErrProtocol, "malformed list_transactions result", err)
	}
	return res.Transactions, nil
}

// GetInfo probes the wallet's advertised capabilities.
func (c *Client) GetInfo(ctx context.Context) (Info, error) {
	raw, err := c.SendRequest(ctx, "get_info", struct{}{}, 0)
	if err != nil {
		return Info{}, err
	}
	var info Info
	if err := json.Unmarshal(raw, &info); err != nil {
		return Info{}, domain.Wrap(domain.ErrProtocol, "malformed get_info result", err)
	}
	return info, nil
}

// Compile-time assertion that Client satisfies the wallet surface the
// settlement layer polls against.
var _ domain.WalletClient = (*Client)(nil)
