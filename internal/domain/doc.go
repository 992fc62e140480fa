// Package domain holds the shared types of bitcaptcha.
//
// Contents
//
//   - Fixed-size key types for secp256k1 material (SecretKey, PublicKey) and
//     the derived per-connection ConversationKey
//   - Event, the signed relay message exchanged with the wallet service
//   - Invoice and Transaction, the wallet-reported payment records
//   - VerificationToken, the settlement verdict with its proved/trusted
//     confidence split
//   - The coded error taxonomy used across all packages
//
// All functions that operate on these types (key derivation, encryption,
// signing) live in internal/crypto; this package stays dependency-free.
package domain
