// Package interfaces defines the core types and narrow interfaces of the
// metadata gateway, separating contracts from their implementations.
//
// # Data model
//
// Table: the closed set of metadata tables (Software, Protocols), each with a
// designated key field.
//
// MetadataRecord: one keyed set of fields in a table. On the wire a record is a
// flat JSON object whose key field carries the record key.
//
// AuthorizedSigner: a registered public key together with the tables it may
// mutate or read.
//
// SignedRequest: signer id, signature, timestamp and the exact body bytes of an
// inbound request.
//
// # Storage Interfaces
//
// MetadataStore: keyed persistence per table with scoped transactions
// (MetadataTx) used by the merger, plus an ordered paginated listing used by the
// query path.
//
// # Collaborators
//
// StateSnapshotProvider, StatsCache and NodeBroadcaster describe the pass-through
// services the gateway exposes next to the metadata pipeline. The metadata core
// does not depend on them.
//
// # Errors
//
// The error taxonomy (AuthError, MergeError and their sentinel kinds) lives in
// errors.go. Only the HTTP boundary translates kinds into status codes.
package interfaces
