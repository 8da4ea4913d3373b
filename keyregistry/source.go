package keyregistry

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/ruteri/indexer-metadata-gateway/interfaces"
)

// ConfigSource fetches the raw signer configuration document.
type ConfigSource interface {
	Fetch(ctx context.Context) ([]byte, error)

	// LocationURI returns URI identifying this source.
	LocationURI() string
}

// SourceFor creates a config source from a location URI.
//
// Supported schemes:
//   - file:///etc/gateway/signers.json
//   - s3://bucket/path/signers.json?region=eu-west-1[&endpoint=...]
//   - vault://vault.internal:8200/secret/gateway/signers[?tls=false]
//   - ipfs://127.0.0.1:5001/<cid>
//
// A plain path without a scheme is treated as a file.
func SourceFor(locationURI string, log *slog.Logger) (ConfigSource, error) {
	if !strings.Contains(locationURI, "://") {
		return NewFileSource(locationURI, log), nil
	}

	u, err := url.Parse(locationURI)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrInvalidLocationURI, err)
	}

	switch strings.ToLower(u.Scheme) {
	case "file":
		return NewFileSource(u.Path, log), nil
	case "s3":
		return newS3SourceFromURL(u, log)
	case "vault":
		return newVaultSourceFromURL(u, log)
	case "ipfs":
		return newIPFSSourceFromURL(u, log)
	default:
		return nil, fmt.Errorf("%w: unsupported config source scheme %q", interfaces.ErrInvalidLocationURI, u.Scheme)
	}
}
