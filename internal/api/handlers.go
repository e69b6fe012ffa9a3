/**
 * @description
 * HTTP handlers for the account lookup endpoint.
 *
 * @notes
 * - Only validation failures are reported to the caller in detail. Every
 *   other failure is logged and answered with a generic 500.
 */
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/nguyenkhoa0721/lookup-bank/internal/domain"
)

const lookupFailedMessage = "Failed to lookup account"

// AccountLookup resolves account holder names.
type AccountLookup interface {
	LookupAccount(ctx context.Context, req domain.LookupRequest) (*domain.LookupResult, error)
}

// LookupHandler serves the lookup endpoint.
type LookupHandler struct {
	service AccountLookup
	logger  *slog.Logger
}

// NewLookupHandler creates a new LookupHandler.
func NewLookupHandler(service AccountLookup, logger *slog.Logger) *LookupHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LookupHandler{service: service, logger: logger.With("component", "lookup_handler")}
}

type successResponse struct {
	Status string      `json:"status"`
	Data   interface{} `json:"data"`
}

type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Lookup handles POST {bankBin, accountNo}.
func (h *LookupHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	var req domain.LookupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.service.LookupAccount(r.Context(), req)
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			respondWithError(w, http.StatusBadRequest, domain.ErrValidation.Error())
			return
		}
		if ctxErr := r.Context().Err(); ctxErr != nil {
			// The timeout middleware has answered, or the client is gone.
			h.logger.Warn("account lookup abandoned",
				"request_id", middleware.GetReqID(r.Context()),
				"bank_bin", req.BankBin,
				"reason", ctxErr,
			)
			return
		}
		h.logger.Error("account lookup failed",
			"request_id", middleware.GetReqID(r.Context()),
			"bank_bin", req.BankBin,
			"error", err,
		)
		respondWithError(w, http.StatusInternalServerError, lookupFailedMessage)
		return
	}

	respondWithJSON(w, http.StatusOK, successResponse{Status: "success", Data: result})
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, errorResponse{Status: "error", Message: message})
}

// respondWithJSON is a helper function to write JSON responses.
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
