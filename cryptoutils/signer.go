package cryptoutils

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ruteri/indexer-metadata-gateway/interfaces"
)

// Signer produces signatures over signing payloads on behalf of one
// registered signer id.
type Signer interface {
	SignerID() string
	Algorithm() interfaces.SignatureAlgorithm
	Sign(payload []byte) ([]byte, error)
}

// Secp256k1Signer signs keccak256(payload) with an Ethereum key.
type Secp256k1Signer struct {
	ID  string
	Key *ecdsa.PrivateKey
}

func (s *Secp256k1Signer) SignerID() string { return s.ID }

func (s *Secp256k1Signer) Algorithm() interfaces.SignatureAlgorithm { return interfaces.Secp256k1 }

func (s *Secp256k1Signer) Sign(payload []byte) ([]byte, error) {
	return crypto.Sign(crypto.Keccak256(payload), s.Key)
}

// Ed25519Signer signs the raw payload.
type Ed25519Signer struct {
	ID  string
	Key ed25519.PrivateKey
}

func (s *Ed25519Signer) SignerID() string { return s.ID }

func (s *Ed25519Signer) Algorithm() interfaces.SignatureAlgorithm { return interfaces.Ed25519 }

func (s *Ed25519Signer) Sign(payload []byte) ([]byte, error) {
	return ed25519.Sign(s.Key, payload), nil
}

// P256Signer produces ASN.1 ECDSA signatures over sha256(payload).
type P256Signer struct {
	ID  string
	Key *ecdsa.PrivateKey
}

func (s *P256Signer) SignerID() string { return s.ID }

func (s *P256Signer) Algorithm() interfaces.SignatureAlgorithm { return interfaces.P256 }

func (s *P256Signer) Sign(payload []byte) ([]byte, error) {
	hash := sha256.Sum256(payload)
	return ecdsa.SignASN1(rand.Reader, s.Key, hash[:])
}

// NewSigner builds a signer from an encoded private key:
//   - secp256k1: hex private key (with or without 0x)
//   - ed25519: hex 32-byte seed or 64-byte private key
//   - p256: PEM "EC PRIVATE KEY"
func NewSigner(id string, alg interfaces.SignatureAlgorithm, encodedKey string) (Signer, error) {
	encodedKey = strings.TrimSpace(encodedKey)
	switch alg {
	case interfaces.Secp256k1:
		key, err := crypto.HexToECDSA(strings.TrimPrefix(encodedKey, "0x"))
		if err != nil {
			return nil, fmt.Errorf("invalid secp256k1 private key: %w", err)
		}
		return &Secp256k1Signer{ID: id, Key: key}, nil
	case interfaces.Ed25519:
		raw, err := hex.DecodeString(strings.TrimPrefix(encodedKey, "0x"))
		if err != nil {
			return nil, fmt.Errorf("invalid ed25519 private key: %w", err)
		}
		switch len(raw) {
		case ed25519.SeedSize:
			return &Ed25519Signer{ID: id, Key: ed25519.NewKeyFromSeed(raw)}, nil
		case ed25519.PrivateKeySize:
			return &Ed25519Signer{ID: id, Key: ed25519.PrivateKey(raw)}, nil
		default:
			return nil, fmt.Errorf("invalid ed25519 private key length %d", len(raw))
		}
	case interfaces.P256:
		key, err := ParseP256PrivateKey([]byte(encodedKey))
		if err != nil {
			return nil, err
		}
		return &P256Signer{ID: id, Key: key}, nil
	default:
		return nil, fmt.Errorf("unsupported signature algorithm %q", alg)
	}
}

// ParseP256PrivateKey parses an ECDSA private key from PEM format.
func ParseP256PrivateKey(privateKeyPEM []byte) (*ecdsa.PrivateKey, error) {
	block, _ := pem.Decode(privateKeyPEM)
	if block == nil {
		return nil, errors.New("failed to decode PEM block containing private key")
	}

	privateKey, err := x509.ParseECPrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ECDSA private key: %w", err)
	}
	if privateKey.Curve != elliptic.P256() {
		return nil, errors.New("private key is not on P-256")
	}

	return privateKey, nil
}

// PublicKeyString renders the signer's public key in the form the signer
// configuration expects for its algorithm.
func PublicKeyString(s Signer) (string, error) {
	switch k := s.(type) {
	case *Secp256k1Signer:
		return crypto.PubkeyToAddress(k.Key.PublicKey).Hex(), nil
	case *Ed25519Signer:
		return hex.EncodeToString(k.Key.Public().(ed25519.PublicKey)), nil
	case *P256Signer:
		der, err := x509.MarshalPKIXPublicKey(&k.Key.PublicKey)
		if err != nil {
			return "", fmt.Errorf("failed to marshal public key: %w", err)
		}
		return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})), nil
	default:
		return "", fmt.Errorf("unsupported signer type %T", s)
	}
}
