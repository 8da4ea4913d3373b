// Package main (cmd/httpserver) runs the metadata gateway.
//
// The gateway accepts signed metadata updates for the indexer's Software and
// Protocols tables, merges them idempotently into the configured store and
// serves paginated reads. When --rpc-addr is set it also exposes the chain head,
// aggregated stats and transaction broadcast.
//
// Signers are loaded from --signers at startup. A failed initial load is fatal.
// SIGHUP, or --signers-reload-interval, reloads the configuration; a rejected
// reload keeps the previous signers.
//
// Example usage:
//
//	metadata-gateway --listen-addr=0.0.0.0:8080 \
//	    --store=postgres://gateway:secret@db/metadata \
//	    --signers=s3://ops-config/metadata-signers.json?region=eu-west-1 \
//	    --redis-url=redis://redis:6379/0 \
//	    --rpc-addr=http://node:8545
package main
