package interfaces

import (
	"context"
	"errors"
	"fmt"
	"net/url"
)

// StoreLocation represents the URI of a metadata store.
type StoreLocation struct {
	Raw    string     // Original URI
	Scheme string     // Protocol
	Host   string     // Hostname
	Path   string     // Resource path
	Query  url.Values // Query parameters
}

// NewStoreLocation parses and validates a store URI.
func NewStoreLocation(uri string) (StoreLocation, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return StoreLocation{}, fmt.Errorf("%w: %v", ErrInvalidLocationURI, err)
	}

	switch parsed.Scheme {
	case "memory", "bolt", "postgres", "postgresql":
	default:
		return StoreLocation{}, fmt.Errorf("%w: unsupported store scheme %q", ErrInvalidLocationURI, parsed.Scheme)
	}

	return StoreLocation{
		Raw:    uri,
		Scheme: parsed.Scheme,
		Host:   parsed.Host,
		Path:   parsed.Path,
		Query:  parsed.Query(),
	}, nil
}

// String returns the original URI string.
func (loc StoreLocation) String() string {
	return loc.Raw
}

// GetParam returns a query parameter value.
func (loc StoreLocation) GetParam(name string) string {
	return loc.Query.Get(name)
}

// GetParamBool returns a boolean query parameter value.
func (loc StoreLocation) GetParamBool(name string) bool {
	value := loc.Query.Get(name)
	return value == "true" || value == "1" || value == "yes"
}

// ErrInvalidLocationURI is returned when a location URI is malformed or uses
// an unsupported scheme.
var ErrInvalidLocationURI = errors.New("invalid location URI")

// MetadataTx is a scoped transaction over one or more tables. Exactly one of
// Commit or Rollback ends it; Rollback after Commit is a no-op.
type MetadataTx interface {
	// Get returns the current fields for key, or ok=false when absent.
	Get(ctx context.Context, table Table, key string) (fields Fields, ok bool, err error)

	// Put replaces the stored fields for key with fields.
	Put(ctx context.Context, table Table, key string, fields Fields) error

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// MetadataStore provides keyed, transactional persistence per table.
type MetadataStore interface {
	// Begin opens a transaction covering a whole batch.
	Begin(ctx context.Context) (MetadataTx, error)

	// List returns records ordered by key ascending. limit <= 0 means no limit.
	List(ctx context.Context, table Table, offset, limit int) ([]MetadataRecord, error)

	// Count returns the number of records in table.
	Count(ctx context.Context, table Table) (int, error)

	// Available checks if the store is reachable.
	Available(ctx context.Context) bool

	// Name returns identifier for logging.
	Name() string

	// LocationURI returns URI identifying this store.
	LocationURI() string

	Close() error
}
