// Package main (cmd/metadata_client) is the command line client for the
// metadata gateway.
//
// Every metadata request is signed with the configured signer key:
//
//	metadata-client generate-key --signer=release-bot --algorithm=ed25519 --out=bot.key
//	metadata-client push --signer=release-bot --algorithm=ed25519 --key-file=bot.key \
//	    --table=Software --file=releases.json
//	metadata-client get --signer=release-bot --algorithm=ed25519 --key-file=bot.key \
//	    --table=Software --offset=0 --limit=50
//
// generate-key prints the signer configuration entry to add to the gateway's
// signer config.
package main
