package app

import (
	"github.com/deekay/bitcaptcha/internal/domain"
	"github.com/deekay/bitcaptcha/internal/protocol/nwc"
	"github.com/deekay/bitcaptcha/internal/relay"
	"github.com/deekay/bitcaptcha/internal/services/gate"
	"github.com/deekay/bitcaptcha/internal/services/settlement"
	"github.com/deekay/bitcaptcha/internal/store"
)

// Wire bundles all stores, services, and clients for the CLI.
type Wire struct {
	Wallet      *nwc.Client
	Gate        *gate.Service
	Receipts    domain.ReceiptStore
	Credentials domain.CredentialStore
}

// NewWire constructs the dependency graph from cfg. The connection string
// is parsed here; the relay connection itself is opened lazily on the
// first request.
func NewWire(cfg Config, executor gate.PaymentExecutor) (*Wire, error) {
	params, err := nwc.ParseConnectionString(cfg.URI)
	if err != nil {
		return nil, err
	}

	transport := relay.New(params.RelayURL)
	wallet, err := nwc.New(transport, params)
	if err != nil {
		return nil, err
	}

	receipts := store.NewReceiptFileStore(cfg.Home)
	credentials := store.NewCredentialFileStore(cfg.Home)

	g := gate.New(wallet, receipts, executor, gate.Config{
		AmountMsat:  cfg.AmountMsat,
		Description: cfg.Description,
		Settlement:  settlement.Config{},
	})

	return &Wire{
		Wallet:      wallet,
		Gate:        g,
		Receipts:    receipts,
		Credentials: credentials,
	}, nil
}
