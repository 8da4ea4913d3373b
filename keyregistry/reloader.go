package keyregistry

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"
)

// Reloader keeps a Registry in sync with a ConfigSource.
type Reloader struct {
	registry *Registry
	source   ConfigSource
	interval time.Duration
	log      *slog.Logger
}

// NewReloader creates a reloader. An interval of zero disables periodic reloads.
func NewReloader(registry *Registry, source ConfigSource, interval time.Duration, log *slog.Logger) *Reloader {
	return &Reloader{
		registry: registry,
		source:   source,
		interval: interval,
		log:      log,
	}
}

// LoadOnce fetches, parses and applies the configuration.
func (r *Reloader) LoadOnce(ctx context.Context) error {
	data, err := r.source.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch signer config from %s: %w", r.source.LocationURI(), err)
	}

	cfg, err := ParseConfig(bytes.NewReader(data))
	if err != nil {
		return err
	}
	return r.registry.Reload(cfg)
}

// Run reloads on every value received from signals and on every interval tick
// until ctx is done. Failed reloads are logged and the previous signer set
// stays active.
func (r *Reloader) Run(ctx context.Context, signals <-chan os.Signal) {
	var tick <-chan time.Time
	if r.interval > 0 {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-signals:
			r.reload(ctx, "signal "+sig.String())
		case <-tick:
			r.reload(ctx, "interval")
		}
	}
}

func (r *Reloader) reload(ctx context.Context, trigger string) {
	if err := r.LoadOnce(ctx); err != nil {
		r.log.Error("Signer config reload failed, keeping previous signers",
			"err", err,
			slog.String("trigger", trigger),
			slog.String("source", r.source.LocationURI()))
		return
	}
	r.log.Info("Signer config reloaded",
		slog.String("trigger", trigger),
		slog.String("source", r.source.LocationURI()))
}
