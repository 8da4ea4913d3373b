// Package metadatahandler serves signed reads and batch updates of the
// metadata tables, and provides a Client that signs requests the same way.
//
// Routes:
//
//	POST /metadata/{table}/update   body: [{"ShortHash":"abc123","version":"v1.2.0"}]
//	GET  /metadata/{table}?offset=0&limit=100
//
// Both routes require the X-Metadata-Signer, X-Metadata-Signature and
// X-Metadata-Timestamp headers. Table names are matched case-insensitively.
package metadatahandler
