package keyregistry

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"

	shell "github.com/ipfs/go-ipfs-api"
)

// IPFSSource reads a signer configuration pinned under a CID. Content
// addressing makes the published signer set tamper-evident.
type IPFSSource struct {
	shell       *shell.Shell
	apiAddr     string
	cid         string
	log         *slog.Logger
	locationURI string
}

func NewIPFSSource(apiAddr, cid string, log *slog.Logger) *IPFSSource {
	return &IPFSSource{
		shell:       shell.NewShell(apiAddr),
		apiAddr:     apiAddr,
		cid:         cid,
		log:         log,
		locationURI: fmt.Sprintf("ipfs://%s/%s", apiAddr, cid),
	}
}

// newIPFSSourceFromURL handles ipfs://host:port/<cid>
func newIPFSSourceFromURL(u *url.URL, log *slog.Logger) (*IPFSSource, error) {
	cid := strings.Trim(u.Path, "/")
	if u.Host == "" || cid == "" {
		return nil, fmt.Errorf("ipfs config source needs API address and CID: %s", u.Redacted())
	}
	return NewIPFSSource(u.Host, cid, log), nil
}

func (s *IPFSSource) Fetch(ctx context.Context) ([]byte, error) {
	if !s.shell.IsUp() {
		return nil, fmt.Errorf("IPFS node %s unavailable", s.apiAddr)
	}

	reader, err := s.shell.Cat(s.cid)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch signer config from IPFS: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read signer config from IPFS: %w", err)
	}

	s.log.Debug("Fetched signer config from IPFS",
		slog.String("cid", s.cid),
		slog.Int("size", len(data)))
	return data, nil
}

func (s *IPFSSource) LocationURI() string {
	return s.locationURI
}
