package metadatahandler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/ruteri/indexer-metadata-gateway/api"
	"github.com/ruteri/indexer-metadata-gateway/interfaces"
	"github.com/ruteri/indexer-metadata-gateway/metrics"
	"github.com/ruteri/indexer-metadata-gateway/verifier"
)

// Authorizer checks a signed request against a table.
type Authorizer interface {
	Authorize(ctx context.Context, req interfaces.SignedRequest, table interfaces.Table) (string, error)

	// Release makes an authorized write acceptable again after it failed
	// without effect.
	Release(ctx context.Context, req interfaces.SignedRequest, table interfaces.Table) error
}

// Updater applies a batch of partial records.
type Updater interface {
	Update(ctx context.Context, table interfaces.Table, batch []interfaces.MetadataRecord) (int, error)
}

// Reader serves paginated table reads.
type Reader interface {
	Get(ctx context.Context, table interfaces.Table, offset, limit int) ([]interfaces.MetadataRecord, error)
}

// Handler serves the metadata tables. Every request is authorized before the
// body is decoded or the store is touched.
type Handler struct {
	auth         Authorizer
	updater      Updater
	reader       Reader
	metrics      *metrics.Metrics
	maxBodyBytes int64
	log          *slog.Logger
}

// NewHandler creates a metadata handler. m may be nil. A non-positive
// maxBodyBytes selects api.DefaultMaxBodyBytes.
func NewHandler(auth Authorizer, updater Updater, reader Reader, m *metrics.Metrics, maxBodyBytes int64, log *slog.Logger) *Handler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = api.DefaultMaxBodyBytes
	}
	return &Handler{
		auth:         auth,
		updater:      updater,
		reader:       reader,
		metrics:      m,
		maxBodyBytes: maxBodyBytes,
		log:          log,
	}
}

// RegisterRoutes registers:
//   - POST /metadata/{table}/update
//   - GET /metadata/{table}
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/metadata/{table}/update", h.HandleUpdate)
	r.Get("/metadata/{table}", h.HandleGet)
}

// HandleUpdate merges a JSON array of flat records into the table.
//
// Status codes:
//   - 200 OK: batch applied (body "{}")
//   - 400 Bad Request: batch rejected, body names the key and field
//   - 401 Unauthorized: any authorization failure
//   - 404 Not Found: unknown table
//   - 413 Request Entity Too Large: body over the configured limit
//   - 503 Service Unavailable: store failure, the same signed request may be
//     resent
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	table, ok := h.parseTable(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.log.Warn("Request body too large", slog.Int64("limit", tooLarge.Limit), slog.String("remoteAddr", r.RemoteAddr))
			api.WriteError(w, http.StatusRequestEntityTooLarge, api.MessageBodyTooLarge)
			return
		}
		h.log.Warn("Failed to read request body", "err", err)
		api.WriteError(w, http.StatusBadRequest, "could not read request body")
		return
	}

	signed, signerID, ok := h.authorize(w, r, table, body)
	if !ok {
		return
	}

	batch, err := interfaces.DecodeBatch(table, body)
	if err != nil {
		h.metrics.ObserveMerge(table.String(), "rejected", 0)
		api.WriteJSON(w, http.StatusBadRequest, api.ErrorResponse{Message: err.Error()})
		return
	}

	changed, err := h.updater.Update(r.Context(), table, batch)
	if err != nil {
		var mergeErr *interfaces.MergeError
		if errors.As(err, &mergeErr) && mergeErr.Retryable() {
			// Nothing was committed; let the client resend the same request.
			if relErr := h.auth.Release(context.WithoutCancel(r.Context()), signed, table); relErr != nil {
				h.log.Warn("Failed to release replay slot", "err", relErr, slog.String("signer", signerID))
			}
		}
		h.writeMergeError(w, table, signerID, err)
		return
	}

	h.metrics.ObserveMerge(table.String(), "ok", changed)
	h.log.Info("Metadata batch applied",
		slog.String("signer", signerID),
		slog.String("table", table.String()),
		slog.Int("records", len(batch)),
		slog.Int("changed", changed))

	api.WriteJSON(w, http.StatusOK, struct{}{})
}

// HandleGet returns records ordered by key.
//
// Query parameters offset and limit default to 0; offset=0&limit=0 returns
// the whole table.
//
// Status codes:
//   - 200 OK: JSON array of flat records
//   - 400 Bad Request: negative or non-integer offset/limit
//   - 401 Unauthorized: any authorization failure
//   - 404 Not Found: unknown table
//   - 503 Service Unavailable: store failure
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	table, ok := h.parseTable(w, r)
	if !ok {
		return
	}

	if _, _, ok := h.authorize(w, r, table, nil); !ok {
		return
	}

	offset, errOffset := intParam(r, "offset")
	limit, errLimit := intParam(r, "limit")
	if errOffset != nil || errLimit != nil {
		h.metrics.ObserveQuery(table.String(), "rejected")
		api.WriteError(w, http.StatusBadRequest, interfaces.ErrInvalidRange.Error())
		return
	}

	records, err := h.reader.Get(r.Context(), table, offset, limit)
	switch {
	case err == nil:
	case errors.Is(err, interfaces.ErrInvalidRange):
		h.metrics.ObserveQuery(table.String(), "rejected")
		api.WriteError(w, http.StatusBadRequest, interfaces.ErrInvalidRange.Error())
		return
	case errors.Is(err, interfaces.ErrStoreUnavailable):
		h.metrics.ObserveQuery(table.String(), "unavailable")
		h.log.Error("Metadata query failed", "err", err, slog.String("table", table.String()))
		w.Header().Set("Retry-After", "1")
		api.WriteError(w, http.StatusServiceUnavailable, api.MessageStoreUnavailable)
		return
	default:
		h.metrics.ObserveQuery(table.String(), "error")
		h.log.Error("Metadata query failed", "err", err, slog.String("table", table.String()))
		api.WriteError(w, http.StatusInternalServerError, api.MessageInternal)
		return
	}

	h.metrics.ObserveQuery(table.String(), "ok")
	if err := api.WriteJSON(w, http.StatusOK, records); err != nil {
		h.log.Error("Failed to encode response", "err", err)
	}
}

func (h *Handler) parseTable(w http.ResponseWriter, r *http.Request) (interfaces.Table, bool) {
	table, err := interfaces.ParseTable(chi.URLParam(r, "table"))
	if err != nil {
		api.WriteError(w, http.StatusNotFound, api.MessageUnknownTable)
		return "", false
	}
	return table, true
}

// authorize writes the failure response itself and reports whether the
// request may proceed.
func (h *Handler) authorize(w http.ResponseWriter, r *http.Request, table interfaces.Table, body []byte) (interfaces.SignedRequest, string, bool) {
	signed, err := verifier.RequestFromHTTP(r, body)
	if err == nil {
		var signerID string
		signerID, err = h.auth.Authorize(r.Context(), signed, table)
		if err == nil {
			h.metrics.ObserveAuth("ok")
			return signed, signerID, true
		}
	}

	var authErr *interfaces.AuthError
	if errors.As(err, &authErr) {
		h.metrics.ObserveAuth(authErr.Kind.Error())
		h.log.Warn("Request not authorized",
			"err", err,
			slog.String("kind", authErr.Kind.Error()),
			slog.String("signer", authErr.SignerID),
			slog.String("table", table.String()),
			slog.String("remoteAddr", r.RemoteAddr))
		api.WriteError(w, http.StatusUnauthorized, api.MessageUnauthorized)
		return signed, "", false
	}

	h.metrics.ObserveAuth("error")
	h.log.Error("Authorization check failed", "err", err, slog.String("table", table.String()))
	api.WriteError(w, http.StatusInternalServerError, api.MessageInternal)
	return signed, "", false
}

func (h *Handler) writeMergeError(w http.ResponseWriter, table interfaces.Table, signerID string, err error) {
	var mergeErr *interfaces.MergeError
	if !errors.As(err, &mergeErr) {
		h.metrics.ObserveMerge(table.String(), "error", 0)
		h.log.Error("Metadata update failed", "err", err,
			slog.String("signer", signerID),
			slog.String("table", table.String()))
		api.WriteError(w, http.StatusInternalServerError, api.MessageInternal)
		return
	}

	if mergeErr.Retryable() {
		h.metrics.ObserveMerge(table.String(), "unavailable", 0)
		h.log.Error("Metadata store failure", "err", err,
			slog.String("signer", signerID),
			slog.String("table", table.String()),
			slog.String("key", mergeErr.Key))
		w.Header().Set("Retry-After", "1")
		api.WriteError(w, http.StatusServiceUnavailable, api.MessageStoreUnavailable)
		return
	}

	h.metrics.ObserveMerge(table.String(), "rejected", 0)
	h.log.Info("Metadata batch rejected", "err", err,
		slog.String("signer", signerID),
		slog.String("table", table.String()))
	api.WriteJSON(w, http.StatusBadRequest, api.ErrorResponse{
		Field:   mergeErr.Field,
		Key:     mergeErr.Key,
		Message: mergeErr.Error(),
	})
}

// intParam parses an integer query parameter; absent means 0. Range checks
// are left to the query layer.
func intParam(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
