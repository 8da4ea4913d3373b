// Package keyregistry maintains the set of signers allowed to read and write
// metadata tables.
//
// The signer set is an immutable snapshot published through an atomic pointer,
// so lookups on the request path never block on a reload. A reload builds and
// validates the complete replacement before swapping it in; an invalid
// configuration leaves the previous signers active.
//
// Configuration documents can be fetched from a local file, an S3 object, a
// Vault KV v2 secret or an IPFS CID. See SourceFor for the URI forms.
package keyregistry
