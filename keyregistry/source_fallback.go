package keyregistry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// FallbackSource fetches from the first source that answers, in order.
type FallbackSource struct {
	sources []ConfigSource
	log     *slog.Logger
}

func NewFallbackSource(sources []ConfigSource, log *slog.Logger) *FallbackSource {
	return &FallbackSource{sources: sources, log: log}
}

// SourcesFor resolves one or more location URIs. More than one location
// yields a FallbackSource trying them in the given order.
func SourcesFor(locationURIs []string, log *slog.Logger) (ConfigSource, error) {
	if len(locationURIs) == 0 {
		return nil, errors.New("no signer config location given")
	}

	sources := make([]ConfigSource, 0, len(locationURIs))
	for _, uri := range locationURIs {
		src, err := SourceFor(uri, log)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	if len(sources) == 1 {
		return sources[0], nil
	}
	return NewFallbackSource(sources, log), nil
}

func (f *FallbackSource) Fetch(ctx context.Context) ([]byte, error) {
	start := time.Now()
	var errs []error

	for _, src := range f.sources {
		data, err := src.Fetch(ctx)
		if err == nil {
			f.log.Debug("Fetched signer config",
				slog.String("source", src.LocationURI()),
				slog.Duration("duration", time.Since(start)))
			return data, nil
		}

		errs = append(errs, fmt.Errorf("%s: %w", src.LocationURI(), err))
		f.log.Warn("Signer config source failed, trying next",
			slog.String("source", src.LocationURI()),
			"err", err)
		if ctx.Err() != nil {
			break
		}
	}

	return nil, fmt.Errorf("all signer config sources failed: %w", errors.Join(errs...))
}

func (f *FallbackSource) LocationURI() string {
	locations := make([]string, 0, len(f.sources))
	for _, src := range f.sources {
		locations = append(locations, src.LocationURI())
	}
	return "multi:[" + strings.Join(locations, ",") + "]"
}
