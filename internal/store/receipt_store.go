package store

import (
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/deekay/bitcaptcha/internal/domain"
)

const receiptsFile = "receipts.json" // map[payment hash]receipt

// receipt is the on-disk form of a verification token.
type receipt struct {
	PaymentHash string `json:"payment_hash"`
	Preimage    string `json:"preimage,omitempty"`
	SettledAt   int64  `json:"settled_at"`
	StoredAt    int64  `json:"stored_at"`
}

// ReceiptFileStore persists verification tokens to disk, keyed by the
// lowercased payment hash.
type ReceiptFileStore struct {
	dir string
	mu  sync.Mutex
}

// NewReceiptFileStore returns a ReceiptFileStore rooted at dir.
func NewReceiptFileStore(dir string) *ReceiptFileStore {
	return &ReceiptFileStore{dir: dir}
}

// SaveReceipt records a settled payment. An existing trusted receipt is
// upgraded if the new token carries a proof.
func (s *ReceiptFileStore) SaveReceipt(tok domain.VerificationToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, receiptsFile)
	m := make(map[string]receipt)
	if err := readJSON(path, &m); err != nil {
		return err
	}

	key := strings.ToLower(tok.PaymentHash)
	if prev, ok := m[key]; ok && prev.Preimage != "" && tok.Preimage == "" {
		return nil // never downgrade a proved receipt
	}
	m[key] = receipt{
		PaymentHash: key,
		Preimage:    tok.Preimage,
		SettledAt:   tok.SettledAt,
		StoredAt:    time.Now().Unix(),
	}
	return writeJSON(path, m, 0o600)
}

// LoadReceipt looks up a receipt by payment hash.
func (s *ReceiptFileStore) LoadReceipt(paymentHash string) (domain.VerificationToken, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := make(map[string]receipt)
	if err := readJSON(filepath.Join(s.dir, receiptsFile), &m); err != nil {
		return domain.VerificationToken{}, false, err
	}
	r, ok := m[strings.ToLower(paymentHash)]
	if !ok {
		return domain.VerificationToken{}, false, nil
	}
	return r.token(), true, nil
}

// ListReceipts returns all stored receipts, newest settlement first.
func (s *ReceiptFileStore) ListReceipts() ([]domain.VerificationToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := make(map[string]receipt)
	if err := readJSON(filepath.Join(s.dir, receiptsFile), &m); err != nil {
		return nil, err
	}
	out := make([]domain.VerificationToken, 0, len(m))
	for _, r := range m {
		out = append(out, r.token())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SettledAt > out[j].SettledAt })
	return out, nil
}

func (r receipt) token() domain.VerificationToken {
	return domain.VerificationToken{
		PaymentHash: r.PaymentHash,
		Preimage:    r.Preimage,
		SettledAt:   r.SettledAt,
	}
}

// Compile-time assertion that ReceiptFileStore implements domain.ReceiptStore.
var _ domain.ReceiptStore = (*ReceiptFileStore)(nil)
