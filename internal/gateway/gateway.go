package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/yourusername/btcverifier/internal/client"
	"github.com/yourusername/btcverifier/internal/crypto"
	"github.com/yourusername/btcverifier/internal/node"
	"github.com/yourusername/btcverifier/internal/tx"
	"github.com/yourusername/btcverifier/internal/verifier"
)

const requestTimeout = 5 * time.Second

// Backend is the part of the node API the gateway exposes.
// *client.Client implements it.
type Backend interface {
	HashBtcHeader(ctx context.Context, headerHex string) (string, error)
	ChainInfo(ctx context.Context) (node.ChainInfo, error)
	Receipt(ctx context.Context, id string) (*tx.Receipt, error)
}

// APIResponse wraps every JSON reply
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HashRequest is the body of POST /api/hash
type HashRequest struct {
	HeaderHex string `json:"header_hex"`
}

// Gateway serves a JSON API in front of a verifier node
type Gateway struct {
	backend Backend
	logger  zerolog.Logger
}

// New creates a gateway backed by b
func New(b Backend, logger zerolog.Logger) *Gateway {
	return &Gateway{
		backend: b,
		logger:  logger.With().Str("component", "gateway").Logger(),
	}
}

// Handler returns the HTTP routes
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/health", corsMiddleware(g.healthHandler))
	mux.HandleFunc("/api/hash", corsMiddleware(g.hashHandler))
	mux.HandleFunc("/api/receipt/{id}", corsMiddleware(g.receiptHandler))
	mux.HandleFunc("/api/info", corsMiddleware(g.infoHandler))

	return g.logRequests(mux)
}

func (g *Gateway) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		g.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("elapsed", time.Since(start)).
			Msg("handled request")
	})
}

// CORS middleware
func corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

// Helper to send JSON response
func sendJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func sendError(w http.ResponseWriter, statusCode int, err error) {
	sendJSON(w, statusCode, APIResponse{
		Success: false,
		Error:   err.Error(),
	})
}

func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	sendError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
	return false
}

// backendStatus picks the HTTP status for an error from the node
func backendStatus(err error) int {
	switch {
	case verifier.IsRevert(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, client.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func (g *Gateway) healthHandler(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		},
	})
}

func (g *Gateway) hashHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req HashRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, http.StatusBadRequest, errors.New("invalid JSON body"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	digest, err := g.backend.HashBtcHeader(ctx, req.HeaderHex)
	if err != nil {
		if !verifier.IsRevert(err) {
			g.logger.Error().Err(err).Msg("hash request failed")
		}
		sendError(w, backendStatus(err), err)
		return
	}

	sendJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]string{
			"header_hex": req.HeaderHex,
			"hash":       digest,
		},
	})
}

func (g *Gateway) receiptHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	id := r.PathValue("id")
	if _, err := crypto.DecodeHex(id); err != nil || id == "" {
		sendError(w, http.StatusBadRequest, errors.New("invalid transaction id"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	receipt, err := g.backend.Receipt(ctx, id)
	if err != nil {
		sendError(w, backendStatus(err), err)
		return
	}

	sendJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"transactionHash": crypto.EncodeHex(receipt.TxID),
			"blockHash":       crypto.EncodeHex(receipt.BlockHash),
			"blockNumber":     receipt.BlockHeight,
			"status":          receipt.Status,
			"output":          receipt.Output,
			"gasUsed":         receipt.GasUsed,
			"from":            receipt.From,
			"to":              receipt.To,
		},
	})
}

func (g *Gateway) infoHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	info, err := g.backend.ChainInfo(ctx)
	if err != nil {
		g.logger.Error().Err(err).Msg("chain info request failed")
		sendError(w, backendStatus(err), err)
		return
	}

	sendJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"chainId":         info.ChainID,
			"height":          info.Height,
			"bestBlock":       crypto.EncodeHex(info.BestBlockHash),
			"contractAddress": info.ContractAddress,
			"pending":         info.Pending,
		},
	})
}
