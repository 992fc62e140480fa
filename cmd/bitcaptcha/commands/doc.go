// Package commands defines the bitcaptcha CLI and wires dependencies for
// subcommands.
//
// Commands
//
//   - connect   Validate and store a wallet connection string
//   - info      Query the connected wallet's capabilities
//   - invoice   Request a fresh invoice from the wallet
//   - gate      Run a full pay-to-proceed session
//   - receipts  List stored payment receipts
//   - verify    Check a proof value or stored receipt for a payment hash
//
// # Implementation
//
// The root command resolves the connection string (flag first, then the
// encrypted credential store) and builds the dependency graph before any
// subcommand runs, so handlers share one wallet client and relay
// connection.
package commands
