package keyregistry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/vault/api"
)

// VaultSource reads the signer configuration from a Vault KV v2 secret. The
// secret either holds the document as a string under "config" or holds the
// document's fields directly ("signers").
type VaultSource struct {
	client      *api.Client
	mountPath   string
	dataPath    string
	log         *slog.Logger
	locationURI string
}

// NewVaultSource creates a Vault source. The token is taken from VAULT_TOKEN
// when token is empty.
func NewVaultSource(address, mountPath, dataPath, token string, log *slog.Logger) (*VaultSource, error) {
	config := api.DefaultConfig()
	config.Address = address
	config.Timeout = 30 * time.Second

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}

	if token == "" {
		token = os.Getenv("VAULT_TOKEN")
	}
	if token != "" {
		client.SetToken(token)
	}

	mountPath = strings.Trim(mountPath, "/")
	dataPath = strings.Trim(dataPath, "/")

	return &VaultSource{
		client:      client,
		mountPath:   mountPath,
		dataPath:    dataPath,
		log:         log,
		locationURI: fmt.Sprintf("vault://%s/%s/%s", strings.TrimPrefix(strings.TrimPrefix(address, "https://"), "http://"), mountPath, dataPath),
	}, nil
}

// newVaultSourceFromURL handles vault://host:port/mount/path/to/secret[?tls=false]
func newVaultSourceFromURL(u *url.URL, log *slog.Logger) (*VaultSource, error) {
	parts := strings.SplitN(strings.TrimPrefix(u.Path, "/"), "/", 2)
	if u.Host == "" || len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("vault config source needs host, mount and path: %s", u.Redacted())
	}

	scheme := "https"
	if u.Query().Get("tls") == "false" {
		scheme = "http"
	}

	return NewVaultSource(scheme+"://"+u.Host, parts[0], parts[1], "", log)
}

func (s *VaultSource) Fetch(ctx context.Context) ([]byte, error) {
	path := fmt.Sprintf("%s/data/%s", s.mountPath, s.dataPath)

	secret, err := s.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read signer config from Vault: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("signer config not found in Vault at %s", path)
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, errors.New("invalid data format in Vault response")
	}

	s.log.Debug("Fetched signer config from Vault", slog.String("path", path))

	if doc, ok := data["config"].(string); ok {
		return []byte(doc), nil
	}
	return json.Marshal(data)
}

func (s *VaultSource) LocationURI() string {
	return s.locationURI
}
