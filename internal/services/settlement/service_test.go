package settlement

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/deekay/bitcaptcha/internal/domain"
)

// testPair returns a matching (preimage, paymentHash) hex pair.
func testPair(t *testing.T) (string, string) {
	t.Helper()
	preimage := "00ff00ff00ff00ff00ff00ff00ff00ff00ff00ff00ff00ff00ff00ff00ff00aa"
	raw, err := hex.DecodeString(preimage)
	require.NoError(t, err)
	sum := sha256.Sum256(raw)
	return preimage, hex.EncodeToString(sum[:])
}

// fakeWallet scripts lookup and listing responses per call number.
type fakeWallet struct {
	lookupCalls atomic.Int64
	listCalls   atomic.Int64
	inFlight    atomic.Int64
	overlapped  atomic.Bool

	lookup func(call int64) (domain.Invoice, error)
	list   func(call int64) ([]domain.Transaction, error)
}

func (f *fakeWallet) MakeInvoice(ctx context.Context, amountMsat int64, description string) (domain.Invoice, error) {
	return domain.Invoice{}, domain.E(domain.ErrProtocol, "not scripted")
}

func (f *fakeWallet) LookupInvoice(ctx context.Context, paymentHash string) (domain.Invoice, error) {
	if f.inFlight.Add(1) > 1 {
		f.overlapped.Store(true)
	}
	defer f.inFlight.Add(-1)
	time.Sleep(time.Millisecond)
	call := f.lookupCalls.Add(1)
	if f.lookup == nil {
		return domain.Invoice{PaymentHash: paymentHash}, nil
	}
	return f.lookup(call)
}

func (f *fakeWallet) ListTransactions(ctx context.Context, from int64, limit int, txType string) ([]domain.Transaction, error) {
	if f.inFlight.Add(1) > 1 {
		f.overlapped.Store(true)
	}
	defer f.inFlight.Add(-1)
	call := f.listCalls.Add(1)
	if f.list == nil {
		return nil, nil
	}
	return f.list(call)
}

func fastConfig() Config {
	return Config{
		Interval:      time.Millisecond,
		MaxChecks:     10,
		MissThreshold: 3,
		BurstInterval: time.Millisecond,
		BurstChecks:   5,
	}
}

func TestAwaitProvedSettlement(t *testing.T) {
	preimage, hash := testPair(t)
	inv := domain.Invoice{Invoice: "lnbc21n1...", PaymentHash: hash}

	w := &fakeWallet{
		lookup: func(call int64) (domain.Invoice, error) {
			if call == 1 {
				// All-zero preimage means unsettled, not proof.
				return domain.Invoice{PaymentHash: hash, Preimage: "0000000000000000000000000000000000000000000000000000000000000000"}, nil
			}
			return domain.Invoice{PaymentHash: hash, Preimage: preimage, SettledAt: 1700000100}, nil
		},
	}
	s := New(w, fastConfig())

	tok, err := s.Await(context.Background(), inv)
	require.NoError(t, err)
	require.True(t, tok.Proved())
	require.Equal(t, hash, tok.PaymentHash)
	require.Equal(t, preimage, tok.Preimage)
	require.EqualValues(t, 2, w.lookupCalls.Load())
}

func TestAwaitTrustedSettlement(t *testing.T) {
	_, hash := testPair(t)
	inv := domain.Invoice{PaymentHash: hash}

	w := &fakeWallet{
		lookup: func(call int64) (domain.Invoice, error) {
			return domain.Invoice{PaymentHash: hash, SettledAt: 1700000042}, nil
		},
	}
	s := New(w, fastConfig())

	tok, err := s.Await(context.Background(), inv)
	require.NoError(t, err)
	require.False(t, tok.Proved(), "trusted settlement must carry an empty proof field")
	require.EqualValues(t, 1700000042, tok.SettledAt)
}

func TestAwaitTrustedViaStatusField(t *testing.T) {
	_, hash := testPair(t)
	w := &fakeWallet{
		lookup: func(call int64) (domain.Invoice, error) {
			return domain.Invoice{PaymentHash: hash, State: "SETTLED"}, nil
		},
	}
	s := New(w, fastConfig())

	tok, err := s.Await(context.Background(), domain.Invoice{PaymentHash: hash})
	require.NoError(t, err)
	require.False(t, tok.Proved())
	require.NotZero(t, tok.SettledAt)
}

func TestAwaitRejectsMismatchedPreimage(t *testing.T) {
	_, hash := testPair(t)
	w := &fakeWallet{
		lookup: func(call int64) (domain.Invoice, error) {
			// A wrong preimage must never produce a proved token.
			return domain.Invoice{PaymentHash: hash, Preimage: "11ff00ff00ff00ff00ff00ff00ff00ff00ff00ff00ff00ff00ff00ff00ff00aa"}, nil
		},
	}
	s := New(w, fastConfig())

	_, err := s.Await(context.Background(), domain.Invoice{PaymentHash: hash})
	require.True(t, domain.IsCode(err, domain.ErrTimeout), "got %v", err)
}

func TestAwaitListFallbackMatchesByInvoiceString(t *testing.T) {
	preimage, hash := testPair(t)
	inv := domain.Invoice{Invoice: "lnbc-fallback", PaymentHash: hash}

	w := &fakeWallet{
		lookup: func(call int64) (domain.Invoice, error) {
			return domain.Invoice{}, domain.E(domain.ErrProtocol, "lookup broken")
		},
		list: func(call int64) ([]domain.Transaction, error) {
			// The wallet omits the payment hash; only the invoice string
			// identifies the record.
			return []domain.Transaction{
				{Type: "incoming", Invoice: "lnbc-other", Preimage: "aa"},
				{Type: "incoming", Invoice: "lnbc-fallback", Preimage: preimage, SettledAt: 1700000200},
			}, nil
		},
	}
	s := New(w, fastConfig())

	tok, err := s.Await(context.Background(), inv)
	require.NoError(t, err)
	require.True(t, tok.Proved())
	require.EqualValues(t, 1700000200, tok.SettledAt)
}

func TestAwaitExhaustionAndListCapabilityLatch(t *testing.T) {
	_, hash := testPair(t)
	w := &fakeWallet{
		lookup: func(call int64) (domain.Invoice, error) {
			return domain.Invoice{PaymentHash: hash}, nil // never settled
		},
		list: func(call int64) ([]domain.Transaction, error) {
			return nil, domain.E(domain.ErrUnsupported, "wallet error NOT_IMPLEMENTED")
		},
	}
	cfg := fastConfig()
	s := New(w, cfg)

	_, err := s.Await(context.Background(), domain.Invoice{PaymentHash: hash})
	require.True(t, domain.IsCode(err, domain.ErrTimeout), "got %v", err)
	require.EqualValues(t, cfg.MaxChecks, w.lookupCalls.Load(), "must fail exactly at the iteration cap")
	require.EqualValues(t, 1, w.listCalls.Load(), "listing must never be retried once unsupported")
	require.False(t, w.overlapped.Load(), "iterations must not overlap")
}

func TestSubmitPreimageShortCircuits(t *testing.T) {
	preimage, hash := testPair(t)
	w := &fakeWallet{
		lookup: func(call int64) (domain.Invoice, error) {
			return domain.Invoice{PaymentHash: hash}, nil
		},
	}
	cfg := fastConfig()
	cfg.Interval = time.Hour // only the submitted proof can finish the loop
	cfg.MaxChecks = 5
	s := New(w, cfg)

	done := make(chan struct{})
	var tok domain.VerificationToken
	var err error
	go func() {
		tok, err = s.Await(context.Background(), domain.Invoice{PaymentHash: hash})
		close(done)
	}()

	// Wait for the loop to be watching, then reject a bad proof and accept
	// the right one.
	require.Eventually(t, func() bool {
		return w.lookupCalls.Load() > 0
	}, time.Second, time.Millisecond)

	badErr := s.SubmitPreimage("00")
	require.True(t, domain.IsCode(badErr, domain.ErrVerification), "got %v", badErr)

	require.NoError(t, s.SubmitPreimage(preimage))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("valid submitted proof did not short-circuit polling")
	}
	require.NoError(t, err)
	require.True(t, tok.Proved())
	require.Equal(t, preimage, tok.Preimage)
}

func TestSubmitPreimageWithoutAwaitFails(t *testing.T) {
	s := New(&fakeWallet{}, fastConfig())
	err := s.SubmitPreimage("00ff")
	require.True(t, domain.IsCode(err, domain.ErrState), "got %v", err)
}

func TestNudgeAcceleratesPolling(t *testing.T) {
	_, hash := testPair(t)
	w := &fakeWallet{
		lookup: func(call int64) (domain.Invoice, error) {
			if call >= 3 {
				return domain.Invoice{PaymentHash: hash, SettledAt: 1700000300}, nil
			}
			return domain.Invoice{PaymentHash: hash}, nil
		},
	}
	cfg := fastConfig()
	cfg.Interval = time.Hour // without the nudge the second check never comes
	cfg.BurstInterval = time.Millisecond
	s := New(w, cfg)

	done := make(chan error, 1)
	go func() {
		_, err := s.Await(context.Background(), domain.Invoice{PaymentHash: hash})
		done <- err
	}()

	require.Eventually(t, func() bool { return w.lookupCalls.Load() >= 1 }, time.Second, time.Millisecond)
	s.Nudge()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("nudge did not accelerate the poll loop")
	}
}

func TestOnStallFiresAtThreshold(t *testing.T) {
	_, hash := testPair(t)
	w := &fakeWallet{
		lookup: func(call int64) (domain.Invoice, error) {
			return domain.Invoice{PaymentHash: hash}, nil
		},
	}
	cfg := fastConfig()
	s := New(w, cfg)

	var stalls atomic.Int64
	s.OnStall(func(misses int) {
		stalls.Add(1)
		require.Equal(t, cfg.MissThreshold, misses)
	})

	_, err := s.Await(context.Background(), domain.Invoice{PaymentHash: hash})
	require.Error(t, err)
	require.EqualValues(t, 1, stalls.Load(), "OnStall must fire exactly once")
}

func TestCancelStopsLoopIdempotently(t *testing.T) {
	_, hash := testPair(t)
	w := &fakeWallet{
		lookup: func(call int64) (domain.Invoice, error) {
			return domain.Invoice{PaymentHash: hash}, nil
		},
	}
	cfg := fastConfig()
	cfg.Interval = time.Hour
	s := New(w, cfg)

	done := make(chan error, 1)
	go func() {
		_, err := s.Await(context.Background(), domain.Invoice{PaymentHash: hash})
		done <- err
	}()
	require.Eventually(t, func() bool { return w.lookupCalls.Load() >= 1 }, time.Second, time.Millisecond)

	s.Cancel()
	s.Cancel() // must not panic

	select {
	case err := <-done:
		require.True(t, domain.IsCode(err, domain.ErrTimeout), "got %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("cancel did not stop the loop")
	}
}
