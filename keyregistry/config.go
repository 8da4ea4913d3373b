package keyregistry

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/ruteri/indexer-metadata-gateway/cryptoutils"
	"github.com/ruteri/indexer-metadata-gateway/interfaces"
)

// Config is the signer configuration document.
//
//	{"signers": [{"id": "...", "algorithm": "secp256k1", "public_key": "0x...", "tables": ["Software"]}]}
type Config struct {
	Signers []SignerConfig `json:"signers"`
}

type SignerConfig struct {
	ID        string   `json:"id"`
	Algorithm string   `json:"algorithm"`
	PublicKey string   `json:"public_key"`
	Tables    []string `json:"tables"`
}

// ParseConfig decodes a signer configuration. Unknown fields are rejected so
// typos in a security-relevant document do not go unnoticed.
func ParseConfig(r io.Reader) (*Config, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, &interfaces.ConfigError{Err: fmt.Errorf("failed to decode signer config JSON: %w", err)}
	}
	return &cfg, nil
}

// Build validates the configuration and returns the signer set it describes.
func (c *Config) Build() (map[string]interfaces.AuthorizedSigner, error) {
	if c == nil {
		return nil, &interfaces.ConfigError{Err: errors.New("nil config")}
	}

	signers := make(map[string]interfaces.AuthorizedSigner, len(c.Signers))
	for _, sc := range c.Signers {
		if sc.ID == "" {
			return nil, &interfaces.ConfigError{Err: errors.New("signer with empty id")}
		}
		if _, exists := signers[sc.ID]; exists {
			return nil, &interfaces.ConfigError{SignerID: sc.ID, Err: errors.New("duplicate signer id")}
		}

		alg, err := interfaces.ParseSignatureAlgorithm(sc.Algorithm)
		if err != nil {
			return nil, &interfaces.ConfigError{SignerID: sc.ID, Err: err}
		}

		pub, err := cryptoutils.ParsePublicKey(alg, sc.PublicKey)
		if err != nil {
			return nil, &interfaces.ConfigError{SignerID: sc.ID, Err: err}
		}

		if len(sc.Tables) == 0 {
			return nil, &interfaces.ConfigError{SignerID: sc.ID, Err: errors.New("no tables granted")}
		}
		tables := make(map[interfaces.Table]struct{}, len(sc.Tables))
		for _, name := range sc.Tables {
			table, err := interfaces.ParseTable(name)
			if err != nil {
				return nil, &interfaces.ConfigError{SignerID: sc.ID, Err: err}
			}
			tables[table] = struct{}{}
		}

		signers[sc.ID] = interfaces.AuthorizedSigner{
			ID:            sc.ID,
			Algorithm:     alg,
			PublicKey:     pub,
			AllowedTables: tables,
		}
	}
	return signers, nil
}
