package statushandler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-chi/chi/v5"
	"github.com/ruteri/indexer-metadata-gateway/api"
	"github.com/ruteri/indexer-metadata-gateway/chain"
	"github.com/ruteri/indexer-metadata-gateway/interfaces"
)

const maxBroadcastBodyBytes = 256 << 10

// Handler exposes the pass-through collaborators. Any of them may be nil, in
// which case the corresponding route answers 503.
type Handler struct {
	head        interfaces.StateSnapshotProvider
	stats       interfaces.StatsCache
	broadcaster interfaces.NodeBroadcaster
	log         *slog.Logger
}

func NewHandler(head interfaces.StateSnapshotProvider, stats interfaces.StatsCache, broadcaster interfaces.NodeBroadcaster, log *slog.Logger) *Handler {
	return &Handler{
		head:        head,
		stats:       stats,
		broadcaster: broadcaster,
		log:         log,
	}
}

// RegisterRoutes registers:
//   - GET /head
//   - GET /stats
//   - POST /tx/broadcast
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/head", h.HandleHead)
	r.Get("/stats", h.HandleStats)
	r.Post("/tx/broadcast", h.HandleBroadcast)
}

// HandleHead returns {"hash","level","timestamp","synced"}.
func (h *Handler) HandleHead(w http.ResponseWriter, r *http.Request) {
	if h.head == nil {
		api.WriteError(w, http.StatusServiceUnavailable, "node not configured")
		return
	}

	state, err := h.head.GetState(r.Context())
	if err != nil {
		h.log.Error("Failed to get chain state", "err", err)
		api.WriteError(w, http.StatusBadGateway, "node unavailable")
		return
	}
	api.WriteJSON(w, http.StatusOK, state)
}

// HandleStats returns the aggregated dashboard snapshot.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if h.stats == nil {
		api.WriteError(w, http.StatusServiceUnavailable, "stats not configured")
		return
	}

	snap, err := h.stats.RefreshAndGet(r.Context())
	if err != nil {
		h.log.Error("Failed to refresh stats", "err", err)
		api.WriteError(w, http.StatusServiceUnavailable, "stats unavailable")
		return
	}
	api.WriteJSON(w, http.StatusOK, snap)
}

// HandleBroadcast forwards {"tx":"0x..."} to the node and returns {"hash"}.
//
// Status codes:
//   - 200 OK: transaction accepted by the node
//   - 400 Bad Request: malformed body or transaction
//   - 502 Bad Gateway: node rejected or could not be reached
func (h *Handler) HandleBroadcast(w http.ResponseWriter, r *http.Request) {
	if h.broadcaster == nil {
		api.WriteError(w, http.StatusServiceUnavailable, "node not configured")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBroadcastBodyBytes))
	if err != nil {
		api.WriteError(w, http.StatusRequestEntityTooLarge, api.MessageBodyTooLarge)
		return
	}

	var req api.BroadcastRequest
	if err := json.Unmarshal(body, &req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	raw, err := hexutil.Decode(strings.TrimSpace(req.Tx))
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, "tx must be 0x-prefixed hex")
		return
	}

	hash, err := h.broadcaster.Send(r.Context(), raw)
	if errors.Is(err, chain.ErrInvalidTransaction) {
		api.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		h.log.Warn("Transaction broadcast failed", "err", err)
		api.WriteError(w, http.StatusBadGateway, "broadcast failed")
		return
	}

	api.WriteJSON(w, http.StatusOK, api.BroadcastResponse{Hash: hash})
}
