package gate

import (
	"context"
	"sync"

	"github.com/op/go-logging"

	"github.com/deekay/bitcaptcha/internal/domain"
	"github.com/deekay/bitcaptcha/internal/payment"
	"github.com/deekay/bitcaptcha/internal/services/settlement"
)

var log = logging.MustGetLogger("bitcaptcha")

// PaymentExecutor is an opaque one-click payer supplied by the caller. It
// returns the proof value if it can prove settlement itself, or an empty
// string when payment was merely initiated (settlement is then observed
// through the wallet).
type PaymentExecutor func(ctx context.Context, inv domain.Invoice) (preimage string, err error)

// Config carries the session parameters.
type Config struct {
	AmountMsat  int64
	Description string
	Settlement  settlement.Config
}

// Service runs one payment gate session at a time.
type Service struct {
	wallet   domain.WalletClient
	receipts domain.ReceiptStore // optional
	machine  *payment.Machine
	cfg      Config

	executor   PaymentExecutor // optional
	onVerified func(domain.VerificationToken)
	onStall    func(misses int)

	mu    sync.Mutex
	recon *settlement.Service
}

// New builds a gate over the given wallet. receipts and executor may be nil.
func New(wallet domain.WalletClient, receipts domain.ReceiptStore, executor PaymentExecutor, cfg Config) *Service {
	return &Service{
		wallet:   wallet,
		receipts: receipts,
		machine:  payment.NewMachine(),
		cfg:      cfg,
		executor: executor,
	}
}

// Machine exposes the state machine so callers can observe transitions.
func (s *Service) Machine() *payment.Machine { return s.machine }

// OnVerified registers a hook invoked with the verification token when the
// session reaches the verified state.
func (s *Service) OnVerified(f func(domain.VerificationToken)) {
	s.mu.Lock()
	s.onVerified = f
	s.mu.Unlock()
}

// OnStall registers a hook invoked when settlement detection has missed
// several times in a row, so the UI can offer ConfirmPaid or SubmitProof.
func (s *Service) OnStall(f func(misses int)) {
	s.mu.Lock()
	s.onStall = f
	s.mu.Unlock()
}

// Start runs a full session: request an invoice, surface it through the
// state machine, watch for settlement, and finish in verified or failed.
// It blocks until the session concludes.
func (s *Service) Start(ctx context.Context) (domain.VerificationToken, error) {
	if err := s.machine.Transition(payment.StateCreatingInvoice, payment.Data{
		AmountMsat: s.cfg.AmountMsat,
	}); err != nil {
		return domain.VerificationToken{}, err
	}

	inv, err := s.wallet.MakeInvoice(ctx, s.cfg.AmountMsat, s.cfg.Description)
	if err != nil {
		s.fail(err)
		return domain.VerificationToken{}, err
	}
	if err := s.machine.Transition(payment.StateAwaitingPayment, payment.Data{
		Invoice:     inv.Invoice,
		PaymentHash: inv.PaymentHash,
	}); err != nil {
		return domain.VerificationToken{}, err
	}

	recon := settlement.New(s.wallet, s.cfg.Settlement)
	s.mu.Lock()
	s.recon = recon
	stall := s.onStall
	s.mu.Unlock()
	if stall != nil {
		recon.OnStall(stall)
	}

	if s.executor != nil {
		recon.Arm(inv.PaymentHash)
		s.runExecutor(ctx, recon, inv)
	}

	tok, err := recon.Await(ctx, inv)
	if err != nil {
		s.fail(err)
		return domain.VerificationToken{}, err
	}

	if err := s.machine.Transition(payment.StateVerified, payment.Data{
		Preimage:  tok.Preimage,
		SettledAt: tok.SettledAt,
	}); err != nil {
		return domain.VerificationToken{}, err
	}
	if s.receipts != nil {
		if err := s.receipts.SaveReceipt(tok); err != nil {
			log.Warningf("could not persist receipt for %s: %v", tok.PaymentHash, err)
		}
	}
	s.mu.Lock()
	hook := s.onVerified
	s.mu.Unlock()
	if hook != nil {
		hook(tok)
	}
	return tok, nil
}

// runExecutor hands the invoice to the one-click payer in the background.
// A returned proof short-circuits polling; an empty result drops the
// session back to plain waiting.
func (s *Service) runExecutor(ctx context.Context, recon *settlement.Service, inv domain.Invoice) {
	if err := s.machine.Transition(payment.StateExternalPrompt, payment.Data{}); err != nil {
		log.Debugf("external prompt skipped: %v", err)
		return
	}
	go func() {
		preimage, err := s.executor(ctx, inv)
		if err != nil {
			log.Infof("payment executor: %v", err)
		}
		if preimage != "" {
			if err := recon.SubmitPreimage(preimage); err == nil {
				return
			}
			log.Warning("payment executor returned an unusable proof")
		}
		// The session may already be settled; losing that race is fine.
		if s.machine.State() == payment.StateExternalPrompt {
			if err := s.machine.Transition(payment.StateAwaitingPayment, payment.Data{}); err != nil {
				log.Debugf("prompt rollback skipped: %v", err)
			}
		}
	}()
}

// Retry re-arms a failed session. Legal only from the failed state.
func (s *Service) Retry() error {
	return s.machine.Transition(payment.StateIdle, payment.Data{})
}

// ConfirmPaid tells the watcher the user claims to have paid, triggering an
// accelerated verification burst.
func (s *Service) ConfirmPaid() error {
	s.mu.Lock()
	recon := s.recon
	s.mu.Unlock()
	if recon == nil {
		return domain.E(domain.ErrState, "no session in progress")
	}
	recon.Nudge()
	return nil
}

// SubmitProof checks a manually supplied proof value against the watched
// payment hash; a valid one settles the session immediately.
func (s *Service) SubmitProof(preimage string) error {
	s.mu.Lock()
	recon := s.recon
	s.mu.Unlock()
	if recon == nil {
		return domain.E(domain.ErrState, "no session in progress")
	}
	return recon.SubmitPreimage(preimage)
}

// Cancel stops the settlement watcher, if any. The session then concludes
// as failed.
func (s *Service) Cancel() {
	s.mu.Lock()
	recon := s.recon
	s.mu.Unlock()
	if recon != nil {
		recon.Cancel()
	}
}

func (s *Service) fail(cause error) {
	if err := s.machine.Transition(payment.StateFailed, payment.Data{
		ErrMessage: cause.Error(),
	}); err != nil {
		log.Errorf("could not record failure: %v", err)
	}
}
