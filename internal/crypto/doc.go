// Package crypto implements the primitives bitcaptcha uses to talk to a
// wallet service over a public relay.
//
// Contents
//
//   - secp256k1 key parsing, generation and x-only public key derivation
//     (ParseSecretKey, ParsePublicKey, DerivePublicKey, GenerateSecretKey)
//   - The versioned payload encryption scheme: a per-connection conversation
//     key from ECDH + HKDF-extract, per-message keys from HKDF-expand, padded
//     ChaCha20 encryption authenticated with HMAC-SHA256
//     (DeriveConversationKey, Encrypt, Decrypt)
//   - Canonical event identities and BIP-340 Schnorr signatures over them
//     (EventID, SignEvent, VerifyEvent)
//
// # Notes
//
// Key material uses the fixed-size array types from internal/domain to avoid
// accidental reallocations. Intermediate secrets are wiped with
// internal/util/memzero where practical. The conversation key is symmetric:
// either side derives the identical value from its own secret and the other's
// public key.
package crypto
