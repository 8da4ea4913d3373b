package verifier

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ruteri/indexer-metadata-gateway/cryptoutils"
	"github.com/ruteri/indexer-metadata-gateway/interfaces"
)

// DefaultFreshnessWindow bounds how far a request timestamp may drift from
// the server clock in either direction.
const DefaultFreshnessWindow = 5 * time.Minute

// ReplayGuard remembers request digests for a limited time.
type ReplayGuard interface {
	// Record stores key for ttl. It returns false if key was already present.
	Record(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Forget removes key so it can be recorded again.
	Forget(ctx context.Context, key string) error
}

// Verifier implements the signed-request authorization check.
type Verifier struct {
	registry interfaces.KeyRegistry
	replay   ReplayGuard
	window   time.Duration
	now      func() time.Time
	log      *slog.Logger
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithFreshnessWindow overrides DefaultFreshnessWindow.
func WithFreshnessWindow(window time.Duration) Option {
	return func(v *Verifier) { v.window = window }
}

// WithClock replaces time.Now; used by tests.
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) { v.now = now }
}

// New creates a verifier. A nil replay guard gets an in-memory one.
func New(registry interfaces.KeyRegistry, replay ReplayGuard, log *slog.Logger, opts ...Option) *Verifier {
	v := &Verifier{
		registry: registry,
		replay:   replay,
		window:   DefaultFreshnessWindow,
		now:      time.Now,
		log:      log,
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.replay == nil {
		v.replay = NewMemoryReplayGuard()
	}
	return v
}

// Authorize checks req against table and returns the authenticated signer id.
// Errors of kind *interfaces.AuthError are authorization failures; any other
// error means the replay guard could not be consulted.
func (v *Verifier) Authorize(ctx context.Context, req interfaces.SignedRequest, table interfaces.Table) (string, error) {
	if req.SignerID == "" || len(req.Signature) == 0 || req.Timestamp.IsZero() {
		return "", interfaces.NewAuthError(interfaces.ErrMissingCredentials, req.SignerID, "")
	}

	signer, ok := v.registry.Lookup(req.SignerID)
	if !ok {
		return "", interfaces.NewAuthError(interfaces.ErrUnknownSigner, req.SignerID, "")
	}

	if !signer.CanAccess(table) {
		return "", interfaces.NewAuthError(interfaces.ErrForbidden, req.SignerID, "table "+table.String())
	}

	skew := v.now().Sub(req.Timestamp)
	if skew < 0 {
		skew = -skew
	}
	if skew > v.window {
		return "", interfaces.NewAuthError(interfaces.ErrReplay, req.SignerID,
			fmt.Sprintf("timestamp outside freshness window (skew %s)", skew.Truncate(time.Second)))
	}

	payload, err := cryptoutils.SigningPayload(req.SignerID, req.Timestamp, table.String(), req.Query, req.Body)
	if err != nil {
		return "", interfaces.NewAuthError(interfaces.ErrInvalidSignature, req.SignerID, err.Error())
	}

	if err := cryptoutils.VerifySignature(signer.Algorithm, signer.PublicKey, payload, req.Signature); err != nil {
		return "", interfaces.NewAuthError(interfaces.ErrInvalidSignature, req.SignerID, err.Error())
	}

	// Reads have no effect, so only writes go through the seen-set. Entries
	// must outlive the window on both sides of the timestamp.
	if isRead(req) {
		v.log.Debug("Read authorized",
			slog.String("signer", req.SignerID),
			slog.String("table", table.String()))
		return req.SignerID, nil
	}
	fresh, err := v.replay.Record(ctx, replayKey(req.SignerID, payload), 2*v.window)
	if err != nil {
		return "", fmt.Errorf("replay guard unavailable: %w", err)
	}
	if !fresh {
		return "", interfaces.NewAuthError(interfaces.ErrReplay, req.SignerID, "request already seen")
	}

	v.log.Debug("Request authorized",
		slog.String("signer", req.SignerID),
		slog.String("table", table.String()))
	return req.SignerID, nil
}

// Release forgets a write accepted by Authorize, so that the identical signed
// request can be sent again. Callers release only when the write had no
// effect and the failure is worth retrying. Reads are never recorded.
func (v *Verifier) Release(ctx context.Context, req interfaces.SignedRequest, table interfaces.Table) error {
	if isRead(req) {
		return nil
	}
	payload, err := cryptoutils.SigningPayload(req.SignerID, req.Timestamp, table.String(), req.Query, req.Body)
	if err != nil {
		return err
	}
	if err := v.replay.Forget(ctx, replayKey(req.SignerID, payload)); err != nil {
		return fmt.Errorf("replay guard unavailable: %w", err)
	}
	return nil
}

func isRead(req interfaces.SignedRequest) bool {
	return len(bytes.TrimSpace(req.Body)) == 0
}

// replayKey identifies a request by its signed content. The signature bytes
// are not used since ECDSA signatures can be re-encoded without the key.
func replayKey(signerID string, payload []byte) string {
	digest := sha256.Sum256(payload)
	return signerID + ":" + hex.EncodeToString(digest[:])
}

// RequestFromHTTP extracts the signed-request triple from the headers of r
// along with its URL query. Absent headers leave the corresponding field
// empty; undecodable ones yield a MissingCredentials error.
func RequestFromHTTP(r *http.Request, body []byte) (interfaces.SignedRequest, error) {
	header := r.Header
	req := interfaces.SignedRequest{
		SignerID: strings.TrimSpace(header.Get(interfaces.SignerIDHeader)),
		Query:    r.URL.Query(),
		Body:     body,
	}

	if encoded := header.Get(interfaces.SignatureHeader); encoded != "" {
		sig, err := cryptoutils.DecodeSignature(encoded)
		if err != nil {
			return req, interfaces.NewAuthError(interfaces.ErrMissingCredentials, req.SignerID, "undecodable signature")
		}
		req.Signature = sig
	}

	if encoded := header.Get(interfaces.TimestampHeader); encoded != "" {
		secs, err := strconv.ParseInt(strings.TrimSpace(encoded), 10, 64)
		if err != nil || secs <= 0 {
			return req, interfaces.NewAuthError(interfaces.ErrMissingCredentials, req.SignerID, "malformed timestamp")
		}
		req.Timestamp = time.Unix(secs, 0)
	}

	return req, nil
}
