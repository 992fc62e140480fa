package domain

import "encoding/hex"

// SecretKey is a 32-byte secp256k1 secret key.
type SecretKey [32]byte

func (k SecretKey) Slice() []byte { return k[:] }

// PublicKey is a 32-byte x-only secp256k1 public key.
type PublicKey [32]byte

func (p PublicKey) Slice() []byte { return p[:] }

// Hex returns the lowercase hex form used on the wire.
func (p PublicKey) Hex() string { return hex.EncodeToString(p[:]) }

// ConversationKey is the per-connection symmetric secret derived once from
// our secret key and the wallet service's public key. It is immutable for
// the life of a client and never recomputed per message.
type ConversationKey [32]byte

func (c ConversationKey) Slice() []byte { return c[:] }
