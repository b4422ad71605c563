/*
dto.go - Data Transfer Objects for the operator API

PURPOSE:
  JSON structures for the operator surface. These types decouple the
  ledger's internal model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

// CustomerDTO is one row of the operator's customer list.
type CustomerDTO struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Stage         string `json:"stage"`
	SupportAccess bool   `json:"support_access"`
}

// TranscriptDTO is a customer's full message log.
type TranscriptDTO struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Messages []string `json:"messages"`
}

// SendMessageRequest is the body of POST /customers/{id}/messages.
type SendMessageRequest struct {
	Text string `json:"text"`
}

// BroadcastRequest is the body of POST /broadcast.
type BroadcastRequest struct {
	Text string `json:"text"`
}

// BroadcastResponse reports per-customer delivery.
type BroadcastResponse struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

// ConfirmPaymentRequest is the body of POST /customers/{id}/confirm-payment.
type ConfirmPaymentRequest struct {
	Code string `json:"code"`
}

// ConfirmPaymentResponse reports the verification and delivery result.
// Confirmed false never mutates anything; Delivered false with Confirmed
// true means the grant stands but the file send failed and was logged.
type ConfirmPaymentResponse struct {
	Confirmed bool `json:"confirmed"`
	Delivered bool `json:"delivered"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
