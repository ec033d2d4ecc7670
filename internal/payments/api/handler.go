package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"eventmanagement/internal/common/logging"
	"eventmanagement/internal/identity"
	"eventmanagement/internal/payments/application"
	"eventmanagement/internal/payments/domain"
)

// CredentialCookie is the cookie consulted when no Authorization header is sent.
const CredentialCookie = "token"

// Handler implements the HTTP handlers for ticket payments.
type Handler struct {
	service *application.PaymentService
}

// NewHandler creates a new Handler.
func NewHandler(service *application.PaymentService) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the payment routes on the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("PUT /payments", h.BuyTicket)
	mux.HandleFunc("PUT /payments/{$}", h.BuyTicket)
	mux.HandleFunc("GET /tickets/{eventId}", h.GetTicket)
}

// BuyTicketRequest is the JSON request body for buying a ticket.
type BuyTicketRequest struct {
	EventID       string `json:"event_id"`
	AccountNumber string `json:"account_number"`
	BankPassword  string `json:"bank_password"`
}

// BuyTicketResponse confirms a purchase.
type BuyTicketResponse struct {
	Message   string `json:"message"`
	EventID   string `json:"event_id"`
	EventName string `json:"event_name"`
	Amount    string `json:"amount"`
}

// BuyTicket handles PUT /payments/.
func (h *Handler) BuyTicket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	credential, ok := credentialFrom(r)
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "missing_credential", "authentication required", nil)
		return
	}

	var req BuyTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body", err)
		return
	}

	eventID, err := domain.ParseEventID(req.EventID)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "event_id must be a valid id", err)
		return
	}
	if req.BankPassword == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "bank_password is required", nil)
		return
	}

	receipt, err := h.service.BuyTicket(ctx, domain.PurchaseRequest{
		EventID:       eventID,
		AccountNumber: req.AccountNumber,
		BankPassword:  req.BankPassword,
	}, credential)
	if err != nil {
		h.handleDomainError(r, w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, BuyTicketResponse{
		Message:   receipt.Message(),
		EventID:   receipt.EventID.String(),
		EventName: receipt.EventName,
		Amount:    receipt.Amount.String(),
	})
}

// GetTicket handles GET /tickets/{eventId}.
func (h *Handler) GetTicket(w http.ResponseWriter, r *http.Request) {
	credential, ok := credentialFrom(r)
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "missing_credential", "authentication required", nil)
		return
	}

	eventID, err := domain.ParseEventID(r.PathValue("eventId"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "invalid event id", err)
		return
	}

	status, err := h.service.GetTicket(r.Context(), eventID, credential)
	if err != nil {
		h.handleDomainError(r, w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, status)
}

// credentialFrom reads a bearer token, falling back to the session cookie.
func credentialFrom(r *http.Request) (string, bool) {
	if header := r.Header.Get("Authorization"); header != "" {
		token, found := strings.CutPrefix(header, "Bearer ")
		token = strings.TrimSpace(token)
		return token, found && token != ""
	}
	if cookie, err := r.Cookie(CredentialCookie); err == nil && cookie.Value != "" {
		return cookie.Value, true
	}
	return "", false
}

// handleDomainError maps domain errors to HTTP responses.
func (h *Handler) handleDomainError(r *http.Request, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, identity.ErrExpiredCredential):
		h.writeError(w, http.StatusUnauthorized, "expired_credential", "credential expired", nil)
	case errors.Is(err, identity.ErrInvalidCredential):
		h.writeError(w, http.StatusUnauthorized, "invalid_credential", "invalid credential", nil)
	case errors.Is(err, domain.ErrUserNotFound):
		h.writeError(w, http.StatusNotFound, "user_not_found", "user not found", nil)
	case errors.Is(err, domain.ErrEventNotFound):
		h.writeError(w, http.StatusNotFound, "event_not_found", "event not found", nil)
	case errors.Is(err, domain.ErrBadCredentials):
		h.writeError(w, http.StatusUnauthorized, "bad_credentials", "bad credentials", nil)
	case errors.Is(err, domain.ErrTicketAlreadyBought):
		h.writeError(w, http.StatusConflict, "ticket_already_bought", "ticket already bought for this event", nil)
	case errors.Is(err, domain.ErrTransactionProcessClient):
		h.writeError(w, http.StatusPaymentRequired, "transaction_rejected", "the bank rejected the transaction", nil)
	case errors.Is(err, domain.ErrTransactionProcessServer):
		h.writeError(w, http.StatusBadGateway, "bank_error", "the bank failed to process the transaction", nil)
	case errors.Is(err, domain.ErrBankServiceUnavailable):
		h.writeError(w, http.StatusServiceUnavailable, "bank_unavailable", "the bank is unavailable, the payment will be processed later", nil)
	case errors.Is(err, domain.ErrOptimisticLock):
		h.writeError(w, http.StatusConflict, "conflict", "concurrent modification detected, please retry", nil)
	default:
		logging.ErrorContext(r.Context(), "Unhandled error", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
	}
}

// writeJSON writes a JSON response.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

// writeError writes an error response.
func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string, err error) {
	resp := ErrorResponse{Error: message, Code: code}
	if err != nil {
		resp.Message = err.Error()
	}
	h.writeJSON(w, status, resp)
}
