package interfaces

import (
	"fmt"
	"strings"
)

// SignatureAlgorithm names a supported signature scheme.
type SignatureAlgorithm string

const (
	// Secp256k1 is Ethereum-style ECDSA over keccak256 with a recoverable
	// 65-byte signature.
	Secp256k1 SignatureAlgorithm = "secp256k1"

	// Ed25519 is EdDSA over the raw signing payload.
	Ed25519 SignatureAlgorithm = "ed25519"

	// P256 is ECDSA on NIST P-256 with an ASN.1 signature over sha256.
	P256 SignatureAlgorithm = "p256"
)

func ParseSignatureAlgorithm(s string) (SignatureAlgorithm, error) {
	switch alg := SignatureAlgorithm(strings.ToLower(strings.TrimSpace(s))); alg {
	case Secp256k1, Ed25519, P256:
		return alg, nil
	default:
		return "", fmt.Errorf("unsupported signature algorithm %q", s)
	}
}

// AuthorizedSigner is a registered signer. Instances are immutable once
// published in a registry snapshot.
type AuthorizedSigner struct {
	ID            string
	Algorithm     SignatureAlgorithm
	PublicKey     []byte
	AllowedTables map[Table]struct{}
}

// CanAccess reports whether the signer may read or write table.
func (s AuthorizedSigner) CanAccess(table Table) bool {
	_, ok := s.AllowedTables[table]
	return ok
}

// KeyRegistry resolves signer ids to registered signers.
type KeyRegistry interface {
	Lookup(signerID string) (AuthorizedSigner, bool)
}
