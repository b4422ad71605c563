/*
handlers.go - HTTP handlers for the operator surface

PURPOSE:
  Exposes the customer ledger to the human operator. Reads go straight to
  the ledger (its own lock serializes them); anything that must reach the
  chat transport goes through the Courier, which marshals the work onto
  the messaging loop.

ENDPOINTS:
  GET  /api/customers                        List customer summaries
  GET  /api/customers/watch                  Long-poll for a ledger change
  GET  /api/customers/{id}/transcript        Full message log
  POST /api/customers/{id}/messages          Send a text to one customer
  POST /api/customers/{id}/confirm-payment   Verify a payment code
  POST /api/broadcast                        Send a text to every customer

ERROR HANDLING:
  - 400: Invalid body, id, or a mismatched payment code
  - 404: Unknown customer
  - 502: Transport delivery failure
  - 500: Internal errors

SECURITY NOTE:
  No authentication; operator login is out of scope for this core. Bind
  the admin port to a trusted interface.

SEE ALSO:
  - dto.go: Request/response shapes
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/vendbot/sale-engine/sale"
)

// watchTimeout caps the customer-list long poll.
const watchTimeout = 25 * time.Second

// Courier performs transport sends on the messaging loop's behalf.
// Implemented by chat.Loop; stubbed in tests.
type Courier interface {
	SendText(ctx context.Context, id sale.CustomerID, text string) error
	DeliverFile(ctx context.Context, id sale.CustomerID, notice string) error
}

// Handler holds all dependencies for the operator surface.
type Handler struct {
	Ledger  *sale.Ledger
	Machine *sale.Machine
	Courier Courier
	Logger  *log.Logger
}

// NewHandler creates a handler with the given dependencies.
func NewHandler(ledger *sale.Ledger, machine *sale.Machine, courier Courier, logger *log.Logger) *Handler {
	return &Handler{Ledger: ledger, Machine: machine, Courier: courier, Logger: logger}
}

// =============================================================================
// CUSTOMER HANDLERS
// =============================================================================

// ListCustomers returns summaries of every customer.
func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.customerList())
}

// WatchCustomers blocks until the ledger changes (or the poll window
// elapses), then returns the current list. The operator UI's refresh signal.
func (h *Handler) WatchCustomers(w http.ResponseWriter, r *http.Request) {
	select {
	case <-h.Ledger.Changed():
	case <-time.After(watchTimeout):
	case <-r.Context().Done():
		return
	}
	writeJSON(w, http.StatusOK, h.customerList())
}

func (h *Handler) customerList() []CustomerDTO {
	summaries := h.Ledger.List()
	dtos := make([]CustomerDTO, len(summaries))
	for i, s := range summaries {
		dtos[i] = CustomerDTO{
			ID:            s.ID.String(),
			Name:          s.Name,
			Stage:         string(s.Stage),
			SupportAccess: s.SupportAccess,
		}
	}
	return dtos
}

// GetTranscript returns a customer's full message log.
func (h *Handler) GetTranscript(w http.ResponseWriter, r *http.Request) {
	id, ok := customerID(w, r)
	if !ok {
		return
	}
	rec, found := h.Ledger.Get(id)
	if !found {
		writeError(w, http.StatusNotFound, "Customer not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, TranscriptDTO{
		ID:       id.String(),
		Name:     rec.Name,
		Messages: rec.Messages,
	})
}

// =============================================================================
// MESSAGING HANDLERS
// =============================================================================

// SendMessage delivers an operator text to one customer and records it in
// the transcript.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := customerID(w, r)
	if !ok {
		return
	}
	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	// Transcript first: the send is causally ordered after the mutation.
	err := h.Ledger.Update(r.Context(), id, func(rec *sale.CustomerRecord) bool {
		rec.Messages = append(rec.Messages, "Admin: "+req.Text)
		return true
	})
	if sale.IsNotFound(err) {
		writeError(w, http.StatusNotFound, "Customer not found", nil)
		return
	}
	if err != nil {
		h.Logger.Printf("WARNING: durability degraded: %v", err)
	}

	if err := h.Courier.SendText(r.Context(), id, req.Text); err != nil {
		writeError(w, http.StatusBadGateway, "Delivery failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Broadcast sends a text to every known customer. Per-customer failures
// are counted, logged and skipped; they never abort the sweep.
func (h *Handler) Broadcast(w http.ResponseWriter, r *http.Request) {
	var req BroadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var resp BroadcastResponse
	for _, id := range h.Ledger.IDs() {
		if err := h.Courier.SendText(r.Context(), id, req.Text); err != nil {
			h.Logger.Printf("broadcast to %s: %v", id, err)
			resp.Failed++
			continue
		}
		uerr := h.Ledger.Update(r.Context(), id, func(rec *sale.CustomerRecord) bool {
			rec.Messages = append(rec.Messages, "Admin (broadcast): "+req.Text)
			return true
		})
		if uerr != nil && !sale.IsNotFound(uerr) {
			h.Logger.Printf("WARNING: durability degraded: %v", uerr)
		}
		resp.Sent++
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// PAYMENT CONFIRMATION
// =============================================================================

// ConfirmPayment verifies a candidate code. On success the machine has
// already granted support access and advanced the stage; this handler then
// triggers the file delivery through the messaging loop.
func (h *Handler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := customerID(w, r)
	if !ok {
		return
	}
	var req ConfirmPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	res, err := h.Machine.ConfirmPayment(r.Context(), id, req.Code)
	switch {
	case sale.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Customer not found", nil)
		return
	case errors.Is(err, sale.ErrCodeMismatch):
		writeJSON(w, http.StatusBadRequest, ConfirmPaymentResponse{Confirmed: false})
		return
	case errors.Is(err, sale.ErrSnapshotFailed):
		// The grant holds in memory; deliver anyway and warn.
		h.Logger.Printf("WARNING: durability degraded: %v", err)
	case err != nil:
		writeError(w, http.StatusInternalServerError, "Confirmation failed", err)
		return
	}

	delivered := true
	if err := h.Courier.DeliverFile(r.Context(), id, res.Notice); err != nil {
		h.Logger.Printf("file delivery to %s: %v", id, err)
		delivered = false
	}
	writeJSON(w, http.StatusOK, ConfirmPaymentResponse{Confirmed: true, Delivered: delivered})
}

// =============================================================================
// HELPERS
// =============================================================================

func customerID(w http.ResponseWriter, r *http.Request) (sale.CustomerID, bool) {
	id, err := sale.ParseCustomerID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid customer id", err)
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string, err error) {
	resp := ErrorResponse{Error: msg}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
