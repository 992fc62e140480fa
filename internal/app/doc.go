// Package app wires application dependencies for the CLI.
//
// It builds the concrete stores, the relay transport, the wallet protocol
// client and the high-level gate service from Config, exposing them via the
// Wire struct for commands to use.
package app
