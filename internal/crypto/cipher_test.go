package crypto

import (
	"bytes"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/deekay/bitcaptcha/internal/domain"
)

// testConversationKey derives a conversation key from two fresh key pairs and
// checks that both sides agree on it.
func testConversationKey(t *testing.T) domain.ConversationKey {
	t.Helper()
	secA, err := GenerateSecretKey()
	if err != nil {
		t.Fatalf("GenerateSecretKey: %v", err)
	}
	secB, err := GenerateSecretKey()
	if err != nil {
		t.Fatalf("GenerateSecretKey: %v", err)
	}
	a, err := DeriveConversationKey(secA, DerivePublicKey(secB))
	if err != nil {
		t.Fatalf("DeriveConversationKey: %v", err)
	}
	b, err := DeriveConversationKey(secB, DerivePublicKey(secA))
	if err != nil {
		t.Fatalf("DeriveConversationKey: %v", err)
	}
	if a != b {
		t.Fatalf("conversation key is not symmetric: %x vs %x", a, b)
	}
	return a
}

func TestPaddedLenBuckets(t *testing.T) {
	cases := map[int]int{
		1:     32,
		16:    32,
		32:    32,
		33:    64,
		37:    64,
		64:    64,
		65:    96,
		100:   128,
		256:   256,
		257:   320,
		1000:  1024,
		65535: 65536,
	}
	for n, want := range cases {
		if got := paddedLen(n); got != want {
			t.Errorf("paddedLen(%d) = %d, want %d", n, got, want)
		}
	}
}

func TestPaddedLenMonotone(t *testing.T) {
	for n := 1; n <= 65535; n++ {
		if paddedLen(n) < n {
			t.Fatalf("paddedLen(%d) = %d shrinks its input", n, paddedLen(n))
		}
	}
}

func TestPadUnpadRoundTrip(t *testing.T) {
	for _, n := range []int{1, 32, 33, 64, 65, 65535} {
		plaintext := bytes.Repeat([]byte{0xab}, n)
		padded, err := pad(plaintext)
		if err != nil {
			t.Fatalf("pad(%d bytes): %v", n, err)
		}
		got, err := unpad(padded)
		if err != nil {
			t.Fatalf("unpad(%d bytes): %v", n, err)
		}
		if !bytes.Equal(got, plaintext) {
			t.Fatalf("round trip lost data at n=%d", n)
		}
	}
}

func TestPadRejectsBadLengths(t *testing.T) {
	if _, err := pad(nil); err == nil {
		t.Error("pad accepted empty plaintext")
	}
	if _, err := pad(make([]byte, 65536)); err == nil {
		t.Error("pad accepted oversized plaintext")
	}
}

func TestUnpadRejectsCorruptPrefix(t *testing.T) {
	padded, err := pad([]byte("hello"))
	if err != nil {
		t.Fatalf("pad: %v", err)
	}
	// Zero length prefix.
	bad := append([]byte{}, padded...)
	bad[0], bad[1] = 0, 0
	if _, err := unpad(bad); err == nil {
		t.Error("unpad accepted zero length prefix")
	}
	// Length larger than the buffer.
	bad = append([]byte{}, padded...)
	bad[0], bad[1] = 0xff, 0xff
	if _, err := unpad(bad); err == nil {
		t.Error("unpad accepted out-of-range length prefix")
	}
	// Buffer not matching the bucket size exactly.
	if _, err := unpad(append(padded, 0)); err == nil {
		t.Error("unpad accepted trailing bytes")
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	conv := testConversationKey(t)
	for _, plaintext := range []string{
		"a",
		"pay 21 sats to continue",
		"こんにちは、ビットコイン ⚡",
		strings.Repeat("x", 65535),
	} {
		payload, err := Encrypt([]byte(plaintext), conv)
		if err != nil {
			t.Fatalf("Encrypt: %v", err)
		}
		if len(payload) < minEncoded || len(payload) > maxEncoded {
			t.Fatalf("payload length %d outside bounds", len(payload))
		}
		got, err := Decrypt(payload, conv)
		if err != nil {
			t.Fatalf("Decrypt: %v", err)
		}
		if string(got) != plaintext {
			t.Fatalf("round trip mismatch: got %q", got)
		}
	}
}

func TestEncryptNonceChangesPayload(t *testing.T) {
	conv := testConversationKey(t)
	a, err := Encrypt([]byte("same plaintext"), conv)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	b, err := Encrypt([]byte("same plaintext"), conv)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if a == b {
		t.Error("two encryptions produced the identical payload")
	}
}

func TestDecryptRejectsMalformedPayloads(t *testing.T) {
	conv := testConversationKey(t)
	payload, err := Encrypt([]byte("probe"), conv)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	for name, bad := range map[string]string{
		"empty":          "",
		"future version": "#" + payload[1:],
		"truncated":      payload[:minEncoded-1],
		"oversized":      payload + strings.Repeat("A", maxEncoded),
	} {
		if _, err := Decrypt(bad, conv); err == nil {
			t.Errorf("%s payload was accepted", name)
		}
	}

	// Wrong version byte with otherwise valid structure.
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	raw[0] = 1
	if _, err := Decrypt(base64.StdEncoding.EncodeToString(raw), conv); err == nil {
		t.Error("version 1 payload was accepted")
	}
}

func TestDecryptRejectsTamperedCiphertext(t *testing.T) {
	conv := testConversationKey(t)
	payload, err := Encrypt([]byte("authenticated payload"), conv)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	// Flip one byte at every position past the version byte; every variant
	// must fail authentication.
	for i := 1; i < len(raw); i++ {
		tampered := append([]byte{}, raw...)
		tampered[i] ^= 0x01
		if _, err := Decrypt(base64.StdEncoding.EncodeToString(tampered), conv); err == nil {
			t.Fatalf("tamper at byte %d was accepted", i)
		}
	}
}

func TestDecryptWrongKeyFails(t *testing.T) {
	conv := testConversationKey(t)
	other := testConversationKey(t)
	payload, err := Encrypt([]byte("for one key only"), conv)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := Decrypt(payload, other); err == nil {
		t.Error("payload decrypted under the wrong conversation key")
	}
}

func TestMessageKeysRequire32ByteNonce(t *testing.T) {
	conv := testConversationKey(t)
	if _, err := deriveMessageKeys(conv, make([]byte, 31)); err == nil {
		t.Error("short nonce accepted")
	}
	if _, err := deriveMessageKeys(conv, make([]byte, 33)); err == nil {
		t.Error("long nonce accepted")
	}
}
