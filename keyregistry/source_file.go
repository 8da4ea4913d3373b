package keyregistry

import (
	"context"
	"fmt"
	"log/slog"
	"os"
)

// FileSource reads the signer configuration from the local file system.
type FileSource struct {
	path string
	log  *slog.Logger
}

func NewFileSource(path string, log *slog.Logger) *FileSource {
	return &FileSource{path: path, log: log}
}

func (s *FileSource) Fetch(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read signer config: %w", err)
	}

	s.log.Debug("Fetched signer config from file",
		slog.String("path", s.path),
		slog.Int("size", len(data)))
	return data, nil
}

func (s *FileSource) LocationURI() string {
	return "file://" + s.path
}
