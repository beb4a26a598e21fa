// Package api exposes the market read model over REST plus a
// server-sent-events quote stream.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gorkemcetinn/Flowdex-Crypto/cmd/gateway/internal/market"
	"github.com/gorkemcetinn/Flowdex-Crypto/cmd/gateway/internal/repository"
	"github.com/gorkemcetinn/Flowdex-Crypto/pkg/config"
)

const (
	defaultOverviewLimit = 8
	maxOverviewLimit     = 20
	defaultMoversLimit   = 4
	maxMoversLimit       = 6
)

type Handler struct {
	resolver *market.Resolver
	streamer *market.Streamer
	limiter  repository.RateLimiter
	logger   *zap.Logger
	stream   config.StreamConfig
}

func NewHandler(resolver *market.Resolver, streamer *market.Streamer, limiter repository.RateLimiter, logger *zap.Logger, stream config.StreamConfig) *Handler {
	return &Handler{
		resolver: resolver,
		streamer: streamer,
		limiter:  limiter,
		logger:   logger,
		stream:   stream,
	}
}

// Register mounts the routes. The fixed paths must be registered on the
// same mux as the {symbol} wildcard; ServeMux precedence keeps
// "overview" and friends from being captured as symbols.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/markets/overview", h.handleOverview)
	mux.HandleFunc("GET /api/markets/top-movers", h.handleTopMovers)
	mux.HandleFunc("GET /api/markets/symbols", h.handleSymbols)
	mux.HandleFunc("GET /api/markets/stream", h.handleStream)
	mux.HandleFunc("GET /api/markets/{symbol}", h.handleAssetDetail)
	mux.HandleFunc("GET /healthz", h.handleHealth)
}

func (h *Handler) handleOverview(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r.URL.Query().Get("limit"), defaultOverviewLimit, maxOverviewLimit)

	rows, err := h.resolver.Overview(r.Context(), limit)
	if err != nil {
		h.logger.Error("Overview query failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "market data unavailable")
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *Handler) handleTopMovers(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r.URL.Query().Get("limit"), defaultMoversLimit, maxMoversLimit)

	movers, err := h.resolver.TopMovers(r.Context(), limit)
	if err != nil {
		h.logger.Error("Top movers query failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "market data unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"gainers": movers.Gainers,
		"losers":  movers.Losers,
	})
}

func (h *Handler) handleSymbols(w http.ResponseWriter, r *http.Request) {
	symbols, err := h.resolver.Symbols(r.Context())
	if err != nil {
		h.logger.Error("Symbol listing failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "market data unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"symbols": symbols})
}

func (h *Handler) handleAssetDetail(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")

	snap, err := h.resolver.AssetDetail(r.Context(), symbol)
	if errors.Is(err, market.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Unknown symbol: "+symbol)
		return
	}
	if err != nil {
		h.logger.Error("Asset detail failed", zap.String("symbol", symbol), zap.Error(err))
		writeError(w, http.StatusBadGateway, "market data unavailable")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleStream serves a bounded SSE session of simulated quote updates.
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	if !h.limiter.Allow(clientIP(r)) {
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	q := r.URL.Query()
	symbols := splitSymbols(q.Get("symbols"))

	iterations := h.stream.DefaultEvents
	if raw := q.Get("max_events"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			iterations = n
		}
	}
	if h.stream.MaxEvents > 0 && iterations > h.stream.MaxEvents {
		iterations = h.stream.MaxEvents
	}

	delay := h.stream.DefaultDelay
	if raw := q.Get("delay"); raw != "" {
		if secs, err := strconv.ParseFloat(raw, 64); err == nil {
			delay = time.Duration(secs * float64(time.Second))
		}
	}

	events, err := h.streamer.Stream(r.Context(), symbols, iterations, delay)
	if errors.Is(err, market.ErrNoStreamableSymbols) {
		writeError(w, http.StatusBadRequest, "no streamable symbols requested")
		return
	}
	if err != nil {
		h.logger.Error("Stream setup failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "market data unavailable")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for event := range events {
		b, err := json.Marshal(event)
		if err != nil {
			h.logger.Error("Stream encode failed", zap.Error(err))
			return
		}
		fmt.Fprintf(w, "data: %s\n\n", b)
		flusher.Flush()
	}
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func parseLimit(raw string, def, max int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	if n < 1 {
		return 1
	}
	if n > max {
		return max
	}
	return n
}

func splitSymbols(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}
