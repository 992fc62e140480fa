package crypto

import (
	"encoding/hex"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/deekay/bitcaptcha/internal/domain"
	"github.com/deekay/bitcaptcha/internal/util/memzero"
)

// ParseSecretKey decodes a 64-char hex secret key, case-insensitively.
func ParseSecretKey(h string) (domain.SecretKey, error) {
	var k domain.SecretKey
	if err := parse32(h, k[:]); err != nil {
		return k, domain.Wrap(domain.ErrCrypto, "secret key must be 32 bytes of hex", err)
	}
	return k, nil
}

// ParsePublicKey decodes a 64-char hex x-only public key, case-insensitively.
func ParsePublicKey(h string) (domain.PublicKey, error) {
	var p domain.PublicKey
	if err := parse32(h, p[:]); err != nil {
		return p, domain.Wrap(domain.ErrCrypto, "public key must be 32 bytes of hex", err)
	}
	return p, nil
}

func parse32(h string, out []byte) error {
	raw, err := hex.DecodeString(strings.ToLower(h))
	if err != nil {
		return err
	}
	if len(raw) != 32 {
		return domain.Ef(domain.ErrCrypto, "got %d bytes, want 32", len(raw))
	}
	copy(out, raw)
	return nil
}

// GenerateSecretKey returns a fresh secp256k1 secret key from system entropy.
func GenerateSecretKey() (domain.SecretKey, error) {
	var k domain.SecretKey
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return k, domain.Wrap(domain.ErrCrypto, "generate secret key", err)
	}
	copy(k[:], priv.Serialize())
	priv.Zero()
	return k, nil
}

// DerivePublicKey returns the x-only public key for sec.
func DerivePublicKey(sec domain.SecretKey) domain.PublicKey {
	priv := secp256k1.PrivKeyFromBytes(sec[:])
	defer priv.Zero()
	var p domain.PublicKey
	copy(p[:], schnorr.SerializePubKey(priv.PubKey()))
	return p
}

// sharedX computes the x coordinate of the ECDH shared point between sec and
// the x-only pub. The wallet connect scheme fixes the pubkey parity to even.
func sharedX(sec domain.SecretKey, pub domain.PublicKey) ([]byte, error) {
	priv := secp256k1.PrivKeyFromBytes(sec[:])
	defer priv.Zero()

	compressed := make([]byte, 0, 33)
	compressed = append(compressed, secp256k1.PubKeyFormatCompressedEven)
	compressed = append(compressed, pub[:]...)
	pk, err := secp256k1.ParsePubKey(compressed)
	if err != nil {
		return nil, domain.Wrap(domain.ErrCrypto, "invalid public key point", err)
	}
	return secp256k1.GenerateSharedSecret(priv, pk), nil
}

// wipe is a small alias so callers inside the package read naturally.
func wipe(b []byte) { memzero.Zero(b) }
