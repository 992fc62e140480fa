package crypto

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"io"
	"math/bits"
	"strings"

	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/hkdf"

	"github.com/deekay/bitcaptcha/internal/domain"
)

const (
	// cipherVersion is the only payload version this module speaks.
	cipherVersion byte = 2

	maxPlaintext = 65535

	// Valid payload sizes. Anything outside is rejected before any key
	// derivation happens.
	minEncoded = 132
	maxEncoded = 87472
	minDecoded = 99
	maxDecoded = 65603
)

// conversationSalt is the fixed protocol tag mixed into HKDF-extract.
var conversationSalt = []byte("nip44-v2")

// messageKeys is the per-message triple derived from the conversation key and
// a 32-byte nonce. Never reused across messages.
type messageKeys struct {
	cipherKey   [32]byte
	cipherNonce [12]byte
	macKey      [32]byte
}

// DeriveConversationKey derives the symmetric conversation key from our
// secret key and the wallet's public key. Deriving from either side with the
// other's public key yields the identical value.
func DeriveConversationKey(sec domain.SecretKey, pub domain.PublicKey) (domain.ConversationKey, error) {
	var ck domain.ConversationKey
	shared, err := sharedX(sec, pub)
	if err != nil {
		return ck, err
	}
	prk := hkdf.Extract(sha256.New, shared, conversationSalt)
	copy(ck[:], prk)
	wipe(shared)
	wipe(prk)
	return ck, nil
}

func deriveMessageKeys(conv domain.ConversationKey, nonce []byte) (messageKeys, error) {
	var mk messageKeys
	if len(nonce) != 32 {
		return mk, domain.Ef(domain.ErrCrypto, "message nonce must be 32 bytes, got %d", len(nonce))
	}
	buf := make([]byte, 76)
	if _, err := io.ReadFull(hkdf.Expand(sha256.New, conv[:], nonce), buf); err != nil {
		return mk, domain.Wrap(domain.ErrCrypto, "key expansion", err)
	}
	copy(mk.cipherKey[:], buf[0:32])
	copy(mk.cipherNonce[:], buf[32:44])
	copy(mk.macKey[:], buf[44:76])
	wipe(buf)
	return mk, nil
}

// paddedLen is the bucket function: lengths up to 32 pad to 32, larger ones
// to a multiple of a chunk that grows with the next power of two.
func paddedLen(n int) int {
	if n <= 32 {
		return 32
	}
	next := 1 << bits.Len(uint(n-1))
	chunk := 32
	if next > 256 {
		chunk = next / 8
	}
	return chunk * ((n-1)/chunk + 1)
}

// pad prepends a big-endian length prefix and zero-pads to the bucket size.
func pad(plaintext []byte) ([]byte, error) {
	n := len(plaintext)
	if n < 1 || n > maxPlaintext {
		return nil, domain.Ef(domain.ErrCrypto, "invalid plaintext length %d", n)
	}
	out := make([]byte, 2+paddedLen(n))
	binary.BigEndian.PutUint16(out, uint16(n))
	copy(out[2:], plaintext)
	return out, nil
}

// unpad validates the length prefix against the bucket rule and recovers the
// original plaintext.
func unpad(padded []byte) ([]byte, error) {
	if len(padded) < 2 {
		return nil, domain.E(domain.ErrCrypto, "invalid padding")
	}
	n := int(binary.BigEndian.Uint16(padded))
	if n == 0 || 2+n > len(padded) || len(padded) != 2+paddedLen(n) {
		return nil, domain.E(domain.ErrCrypto, "invalid padding")
	}
	return padded[2 : 2+n], nil
}

// Encrypt encrypts plaintext under the conversation key with a random
// 32-byte message nonce and returns the base64 payload
// version(1) || nonce(32) || ciphertext || mac(32).
func Encrypt(plaintext []byte, conv domain.ConversationKey) (string, error) {
	var nonce [32]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", domain.Wrap(domain.ErrCrypto, "message nonce", err)
	}
	return EncryptWithNonce(plaintext, conv, nonce)
}

// EncryptWithNonce is Encrypt with a caller-supplied nonce; it exists for
// deterministic test vectors and must not be used with a repeated nonce.
func EncryptWithNonce(plaintext []byte, conv domain.ConversationKey, nonce [32]byte) (string, error) {
	mk, err := deriveMessageKeys(conv, nonce[:])
	if err != nil {
		return "", err
	}
	padded, err := pad(plaintext)
	if err != nil {
		return "", err
	}

	stream, err := chacha20.NewUnauthenticatedCipher(mk.cipherKey[:], mk.cipherNonce[:])
	if err != nil {
		return "", domain.Wrap(domain.ErrCrypto, "cipher init", err)
	}
	ciphertext := make([]byte, len(padded))
	stream.XORKeyStream(ciphertext, padded)
	wipe(padded)

	mac := authTag(mk.macKey[:], nonce[:], ciphertext)

	payload := make([]byte, 0, 1+len(nonce)+len(ciphertext)+len(mac))
	payload = append(payload, cipherVersion)
	payload = append(payload, nonce[:]...)
	payload = append(payload, ciphertext...)
	payload = append(payload, mac...)
	return base64.StdEncoding.EncodeToString(payload), nil
}

// Decrypt authenticates and decrypts a base64 payload produced by Encrypt.
// Authentication uses a constant-time tag comparison; any mismatch fails the
// same way regardless of how many bytes differ.
func Decrypt(payload string, conv domain.ConversationKey) ([]byte, error) {
	if payload == "" || strings.HasPrefix(payload, "#") {
		return nil, domain.E(domain.ErrCrypto, "unknown payload version")
	}
	if len(payload) < minEncoded || len(payload) > maxEncoded {
		return nil, domain.Ef(domain.ErrCrypto, "invalid payload length %d", len(payload))
	}
	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, domain.Wrap(domain.ErrCrypto, "invalid base64", err)
	}
	if len(decoded) < minDecoded || len(decoded) > maxDecoded {
		return nil, domain.Ef(domain.ErrCrypto, "invalid payload size %d", len(decoded))
	}
	if decoded[0] != cipherVersion {
		return nil, domain.E(domain.ErrCrypto, "unknown payload version")
	}

	nonce := decoded[1:33]
	ciphertext := decoded[33 : len(decoded)-32]
	tag := decoded[len(decoded)-32:]

	mk, err := deriveMessageKeys(conv, nonce)
	if err != nil {
		return nil, err
	}
	if !hmac.Equal(tag, authTag(mk.macKey[:], nonce, ciphertext)) {
		return nil, domain.E(domain.ErrCrypto, "invalid authentication tag")
	}

	stream, err := chacha20.NewUnauthenticatedCipher(mk.cipherKey[:], mk.cipherNonce[:])
	if err != nil {
		return nil, domain.Wrap(domain.ErrCrypto, "cipher init", err)
	}
	padded := make([]byte, len(ciphertext))
	stream.XORKeyStream(padded, ciphertext)
	return unpad(padded)
}

// authTag computes HMAC-SHA256(macKey, nonce || ciphertext).
func authTag(macKey, nonce, ciphertext []byte) []byte {
	mac := hmac.New(sha256.New, macKey)
	mac.Write(nonce)
	mac.Write(ciphertext)
	return mac.Sum(nil)
}
