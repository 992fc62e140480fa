package settlement

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/op/go-logging"

	"github.com/deekay/bitcaptcha/internal/domain"
)

var log = logging.MustGetLogger("bitcaptcha")

const (
	// DefaultInterval is the pause between poll iterations.
	DefaultInterval = 4 * time.Second
	// DefaultMaxChecks caps the poll loop at roughly a five minute budget.
	DefaultMaxChecks = 75
	// DefaultMissThreshold is how many misses pass before OnStall fires.
	DefaultMissThreshold = 4

	// A nudge switches to DefaultBurstChecks rapid re-checks before
	// resuming the normal cadence.
	DefaultBurstInterval = 3 * time.Second
	DefaultBurstChecks   = 5

	listLimit = 50
)

// Config tunes the poll loop. Zero values take the defaults above.
type Config struct {
	Interval      time.Duration
	MaxChecks     int
	MissThreshold int
	BurstInterval time.Duration
	BurstChecks   int
}

// Service reconciles one invoice at a time against the wallet's view.
type Service struct {
	wallet domain.WalletClient
	cfg    Config

	nudge  chan struct{}
	proofs chan string

	cancelOnce sync.Once
	cancelled  chan struct{}

	mu              sync.Mutex
	watchingHash    string
	listUnsupported bool
	onStall         func(misses int)
}

// New builds a reconciler over the given wallet client.
func New(wallet domain.WalletClient, cfg Config) *Service {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.MaxChecks <= 0 {
		cfg.MaxChecks = DefaultMaxChecks
	}
	if cfg.MissThreshold <= 0 {
		cfg.MissThreshold = DefaultMissThreshold
	}
	if cfg.BurstInterval <= 0 {
		cfg.BurstInterval = DefaultBurstInterval
	}
	if cfg.BurstChecks <= 0 {
		cfg.BurstChecks = DefaultBurstChecks
	}
	return &Service{
		wallet:    wallet,
		cfg:       cfg,
		nudge:     make(chan struct{}, 1),
		proofs:    make(chan string, 1),
		cancelled: make(chan struct{}),
	}
}

// OnStall registers a callback fired once, after MissThreshold consecutive
// misses, so the caller can surface the Nudge/SubmitPreimage affordances.
func (s *Service) OnStall(f func(misses int)) {
	s.mu.Lock()
	s.onStall = f
	s.mu.Unlock()
}

// Nudge triggers an accelerated verification burst: several rapid re-checks
// over roughly fifteen seconds, after which the normal cadence resumes.
func (s *Service) Nudge() {
	select {
	case s.nudge <- struct{}{}:
	default:
	}
}

// Arm records the payment hash about to be watched, so proofs submitted
// before Await starts are not rejected. Await arms itself; calling this is
// only needed when a proof source runs ahead of the poll loop.
func (s *Service) Arm(paymentHash string) {
	s.mu.Lock()
	s.watchingHash = paymentHash
	s.mu.Unlock()
}

// SubmitPreimage checks a caller-supplied proof value against the payment
// hash currently being watched. A valid proof short-circuits all further
// polling; an invalid one is rejected immediately.
func (s *Service) SubmitPreimage(preimage string) error {
	s.mu.Lock()
	hash := s.watchingHash
	s.mu.Unlock()
	if hash == "" {
		return domain.E(domain.ErrState, "no verification in progress")
	}
	if !domain.VerifyPreimage(preimage, hash) {
		return domain.E(domain.ErrVerification, "preimage does not hash to payment hash")
	}
	select {
	case s.proofs <- preimage:
	default:
	}
	return nil
}

// Cancel stops the poll loop between iterations. Idempotent.
func (s *Service) Cancel() {
	s.cancelOnce.Do(func() { close(s.cancelled) })
}

// Await polls until the invoice settles, the iteration cap is reached, or
// the loop is cancelled. Individual iteration failures are swallowed and
// retried; only exhaustion or cancellation surface as errors.
func (s *Service) Await(ctx context.Context, inv domain.Invoice) (domain.VerificationToken, error) {
	s.mu.Lock()
	s.watchingHash = inv.PaymentHash
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.watchingHash = ""
		s.mu.Unlock()
	}()

	misses := 0
	burstLeft := 0
	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for i := 0; i < s.cfg.MaxChecks; i++ {
		if tok, ok := s.checkOnce(ctx, inv); ok {
			return tok, nil
		}
		misses++
		if misses == s.cfg.MissThreshold {
			s.mu.Lock()
			stall := s.onStall
			s.mu.Unlock()
			if stall != nil {
				stall(misses)
			}
		}

		delay := s.cfg.Interval
		if burstLeft > 0 {
			delay = s.cfg.BurstInterval
			burstLeft--
		}
		timer.Reset(delay)

		select {
		case <-timer.C:
		case <-s.nudge:
			stopTimer(timer)
			burstLeft = s.cfg.BurstChecks
		case preimage := <-s.proofs:
			stopTimer(timer)
			tok, err := domain.NewProvedToken(inv.PaymentHash, preimage, time.Now().Unix())
			if err == nil {
				return tok, nil
			}
		case <-s.cancelled:
			stopTimer(timer)
			return domain.VerificationToken{}, domain.E(domain.ErrTimeout, "verification cancelled")
		case <-ctx.Done():
			stopTimer(timer)
			return domain.VerificationToken{}, domain.Wrap(domain.ErrTimeout, "verification cancelled", ctx.Err())
		}
	}
	return domain.VerificationToken{}, domain.Ef(domain.ErrTimeout,
		"no settlement signal after %d checks", s.cfg.MaxChecks)
}

// checkOnce runs one tiered detection pass. Errors are logged, never
// surfaced; a failed transaction listing marks the capability unsupported
// for the remainder of the session.
func (s *Service) checkOnce(ctx context.Context, inv domain.Invoice) (domain.VerificationToken, bool) {
	rec, err := s.wallet.LookupInvoice(ctx, inv.PaymentHash)
	if err != nil {
		log.Debugf("lookup_invoice: %v", err)
	} else if tok, ok := classify(inv.PaymentHash, rec.Preimage, rec.SettledAt, rec.State); ok {
		return tok, true
	}

	s.mu.Lock()
	skipList := s.listUnsupported
	s.mu.Unlock()
	if skipList {
		return domain.VerificationToken{}, false
	}

	txs, err := s.wallet.ListTransactions(ctx, inv.CreatedAt, listLimit, "incoming")
	if err != nil {
		log.Infof("list_transactions unavailable, disabling fallback: %v", err)
		s.mu.Lock()
		s.listUnsupported = true
		s.mu.Unlock()
		return domain.VerificationToken{}, false
	}
	for _, tx := range txs {
		// Some wallets omit the payment hash in listings; the invoice string
		// itself is the fallback match key.
		if !matches(tx, inv) {
			continue
		}
		if tok, ok := classify(inv.PaymentHash, tx.Preimage, tx.SettledAt, tx.State); ok {
			return tok, true
		}
	}
	return domain.VerificationToken{}, false
}

func matches(tx domain.Transaction, inv domain.Invoice) bool {
	if tx.PaymentHash != "" && strings.EqualFold(tx.PaymentHash, inv.PaymentHash) {
		return true
	}
	return tx.Invoice != "" && tx.Invoice == inv.Invoice
}

// classify applies the tiered detection rule to one record. Proved beats
// trusted; a preimage that fails verification is treated as absent.
func classify(hash, preimage string, settledAt int64, state string) (domain.VerificationToken, bool) {
	if !domain.ZeroPreimage(preimage) {
		if tok, err := domain.NewProvedToken(hash, preimage, settledOr(settledAt)); err == nil {
			return tok, true
		}
		log.Warningf("wallet returned a preimage that does not match %s", hash)
	}
	if settledAt > 0 || strings.EqualFold(state, "settled") {
		return domain.NewTrustedToken(hash, settledOr(settledAt)), true
	}
	return domain.VerificationToken{}, false
}

func settledOr(settledAt int64) int64 {
	if settledAt > 0 {
		return settledAt
	}
	return time.Now().Unix()
}

func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}
