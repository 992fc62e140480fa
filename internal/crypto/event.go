package crypto

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/deekay/bitcaptcha/internal/domain"
)

// EventID returns the hex SHA-256 of the canonical serialization
// [0, pubkey, created_at, kind, tags, content]. Tag order is preserved;
// identical fields always hash to the identical identity.
func EventID(ev *domain.Event) (string, error) {
	tags := ev.Tags
	if tags == nil {
		tags = [][]string{}
	}
	buf := new(bytes.Buffer)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	err := enc.Encode([]any{0, ev.PubKey, ev.CreatedAt, ev.Kind, tags, ev.Content})
	if err != nil {
		return "", domain.Wrap(domain.ErrCrypto, "canonical serialization", err)
	}
	sum := sha256.Sum256(bytes.TrimRight(buf.Bytes(), "\n"))
	return hex.EncodeToString(sum[:]), nil
}

// SignEvent fills in PubKey, ID and Sig from the secret key. The signature
// is BIP-340 Schnorr over the identity bytes.
func SignEvent(ev *domain.Event, sec domain.SecretKey) error {
	priv := secp256k1.PrivKeyFromBytes(sec[:])
	defer priv.Zero()

	ev.PubKey = hex.EncodeToString(schnorr.SerializePubKey(priv.PubKey()))
	id, err := EventID(ev)
	if err != nil {
		return err
	}
	ev.ID = id

	idBytes, err := hex.DecodeString(id)
	if err != nil {
		return domain.Wrap(domain.ErrCrypto, "event id", err)
	}
	sig, err := schnorr.Sign(priv, idBytes)
	if err != nil {
		return domain.Wrap(domain.ErrCrypto, "sign event", err)
	}
	ev.Sig = hex.EncodeToString(sig.Serialize())
	return nil
}

// VerifyEvent checks that ID matches the canonical serialization and that
// Sig is a valid signature over it by ev.PubKey.
func VerifyEvent(ev *domain.Event) (bool, error) {
	id, err := EventID(ev)
	if err != nil {
		return false, err
	}
	if id != ev.ID {
		return false, nil
	}

	pubBytes, err := hex.DecodeString(ev.PubKey)
	if err != nil || len(pubBytes) != 32 {
		return false, domain.E(domain.ErrCrypto, "invalid event pubkey")
	}
	pub, err := schnorr.ParsePubKey(pubBytes)
	if err != nil {
		return false, domain.Wrap(domain.ErrCrypto, "invalid event pubkey", err)
	}

	sigBytes, err := hex.DecodeString(ev.Sig)
	if err != nil {
		return false, domain.Wrap(domain.ErrCrypto, "invalid signature encoding", err)
	}
	sig, err := schnorr.ParseSignature(sigBytes)
	if err != nil {
		return false, domain.Wrap(domain.ErrCrypto, "invalid signature encoding", err)
	}

	idBytes, err := hex.DecodeString(id)
	if err != nil {
		return false, domain.Wrap(domain.ErrCrypto, "event id", err)
	}
	return sig.Verify(idBytes, pub), nil
}
