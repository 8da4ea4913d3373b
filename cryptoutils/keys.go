package cryptoutils

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ruteri/indexer-metadata-gateway/interfaces"
)

// ParsePublicKey decodes a configured public key and returns its normalized
// byte form for the given algorithm:
//   - secp256k1: a 20-byte address (from a 0x-address) or a 65-byte
//     uncompressed public key (from a 33 or 65 byte hex key)
//   - ed25519: the 32-byte key, hex or base64
//   - p256: the PKIX DER encoding of a PEM "PUBLIC KEY" block
func ParsePublicKey(alg interfaces.SignatureAlgorithm, encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, errors.New("empty public key")
	}

	switch alg {
	case interfaces.Secp256k1:
		return parseSecp256k1PublicKey(encoded)
	case interfaces.Ed25519:
		return parseEd25519PublicKey(encoded)
	case interfaces.P256:
		return parseP256PublicKey(encoded)
	default:
		return nil, fmt.Errorf("unsupported signature algorithm %q", alg)
	}
}

func parseSecp256k1PublicKey(encoded string) ([]byte, error) {
	if common.IsHexAddress(encoded) {
		return common.HexToAddress(encoded).Bytes(), nil
	}

	raw, err := hex.DecodeString(strings.TrimPrefix(encoded, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid hex public key: %w", err)
	}

	switch len(raw) {
	case 33:
		pub, err := crypto.DecompressPubkey(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid compressed public key: %w", err)
		}
		return crypto.FromECDSAPub(pub), nil
	case 65:
		if _, err := crypto.UnmarshalPubkey(raw); err != nil {
			return nil, fmt.Errorf("invalid public key: %w", err)
		}
		return raw, nil
	default:
		return nil, fmt.Errorf("invalid secp256k1 public key length %d", len(raw))
	}
}

func parseEd25519PublicKey(encoded string) ([]byte, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(encoded, "0x"))
	if err != nil {
		raw, err = base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, errors.New("ed25519 public key must be hex or base64")
		}
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("invalid ed25519 public key length %d", len(raw))
	}
	return raw, nil
}

func parseP256PublicKey(encoded string) ([]byte, error) {
	block, _ := pem.Decode([]byte(encoded))
	if block == nil {
		return nil, errors.New("failed to decode PEM block containing public key")
	}

	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}

	ecdsaPub, ok := pub.(*ecdsa.PublicKey)
	if !ok || ecdsaPub.Curve != elliptic.P256() {
		return nil, errors.New("public key is not an ECDSA P-256 key")
	}
	return block.Bytes, nil
}

// Secp256k1Address returns the Ethereum address a normalized secp256k1 key
// (address or uncompressed public key) stands for.
func Secp256k1Address(normalized []byte) (common.Address, error) {
	switch len(normalized) {
	case common.AddressLength:
		return common.BytesToAddress(normalized), nil
	case 65:
		pub, err := crypto.UnmarshalPubkey(normalized)
		if err != nil {
			return common.Address{}, err
		}
		return crypto.PubkeyToAddress(*pub), nil
	default:
		return common.Address{}, fmt.Errorf("invalid secp256k1 key length %d", len(normalized))
	}
}
