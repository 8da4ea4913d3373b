package cryptoutils

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/sha256"
	"crypto/subtle"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ruteri/indexer-metadata-gateway/interfaces"
)

var errSignatureMismatch = errors.New("signature does not match")

// DecodeSignature accepts either 0x-prefixed hex or standard base64.
func DecodeSignature(encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	if strings.HasPrefix(encoded, "0x") || strings.HasPrefix(encoded, "0X") {
		return hexutil.Decode("0x" + encoded[2:])
	}
	return base64.StdEncoding.DecodeString(encoded)
}

// EncodeSignature renders a signature the way clients send it.
func EncodeSignature(sig []byte) string {
	return base64.StdEncoding.EncodeToString(sig)
}

// VerifySignature checks sig over payload with a normalized public key (see
// ParsePublicKey). It returns nil only for a valid signature.
func VerifySignature(alg interfaces.SignatureAlgorithm, publicKey, payload, sig []byte) error {
	switch alg {
	case interfaces.Secp256k1:
		return verifySecp256k1(publicKey, payload, sig)
	case interfaces.Ed25519:
		if len(publicKey) != ed25519.PublicKeySize {
			return fmt.Errorf("invalid ed25519 public key length %d", len(publicKey))
		}
		if len(sig) != ed25519.SignatureSize || !ed25519.Verify(ed25519.PublicKey(publicKey), payload, sig) {
			return errSignatureMismatch
		}
		return nil
	case interfaces.P256:
		pub, err := x509.ParsePKIXPublicKey(publicKey)
		if err != nil {
			return fmt.Errorf("failed to parse public key: %w", err)
		}
		ecdsaPub, ok := pub.(*ecdsa.PublicKey)
		if !ok {
			return errors.New("public key is not an ECDSA key")
		}
		hash := sha256.Sum256(payload)
		if !ecdsa.VerifyASN1(ecdsaPub, hash[:], sig) {
			return errSignatureMismatch
		}
		return nil
	default:
		return fmt.Errorf("unsupported signature algorithm %q", alg)
	}
}

// verifySecp256k1 recovers the signing address from a 65-byte [R||S||V]
// signature over keccak256(payload) and compares it with the registered one.
// High-S signatures are rejected.
func verifySecp256k1(publicKey, payload, sig []byte) error {
	expected, err := Secp256k1Address(publicKey)
	if err != nil {
		return err
	}

	if len(sig) != crypto.SignatureLength {
		return fmt.Errorf("invalid signature length %d", len(sig))
	}
	normalized := make([]byte, crypto.SignatureLength)
	copy(normalized, sig)
	if normalized[crypto.RecoveryIDOffset] >= 27 {
		normalized[crypto.RecoveryIDOffset] -= 27
	}

	r := new(big.Int).SetBytes(normalized[:32])
	s := new(big.Int).SetBytes(normalized[32:64])
	if !crypto.ValidateSignatureValues(normalized[crypto.RecoveryIDOffset], r, s, true) {
		return errors.New("invalid signature values")
	}

	pub, err := crypto.SigToPub(crypto.Keccak256(payload), normalized)
	if err != nil {
		return fmt.Errorf("could not recover signer: %w", err)
	}
	recovered := crypto.PubkeyToAddress(*pub)

	if subtle.ConstantTimeCompare(recovered.Bytes(), expected.Bytes()) != 1 {
		return errSignatureMismatch
	}
	return nil
}
