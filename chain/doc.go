// Package chain connects the gateway to an Ethereum-compatible JSON-RPC node
// to report the chain head and to forward signed transactions.
package chain
