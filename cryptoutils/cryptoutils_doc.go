// Package cryptoutils provides the signature primitives of the metadata gateway.
//
// A request is authorized by a signature over its signing payload:
//
//	indexer-metadata/v1 \n <signer id> \n <unix seconds> \n <table> \n <sorted query> \n <canonical body>
//
// The canonical body is the request JSON with object keys sorted and all
// insignificant whitespace removed, so semantically identical bodies produce
// the same payload regardless of client serializer, while any change to a key,
// value or array order changes it.
//
// # Supported schemes
//
//   - secp256k1: Ethereum keys. keccak256(payload) is signed with a recoverable
//     65-byte signature; the registry may hold an address or a public key.
//   - ed25519: the payload is signed directly.
//   - p256: ECDSA P-256, ASN.1 signature over sha256(payload).
//
// # Key Functions
//
// # SigningPayload - builds the bytes to be signed
//
// # VerifySignature - verifies a signature against a normalized public key
//
// # ParsePublicKey - normalizes a configured public key
//
// NewSigner / SignHTTPRequest - client side signing
package cryptoutils
