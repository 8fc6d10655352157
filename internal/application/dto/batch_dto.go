package dto

import "github.com/shopspring/decimal"

// CreateBatchRequest candidatos para una nueva asignación.
// FinalInvoices marca qué facturas corresponden al último cobro de su mandato
// (p. ej. baja del miembro): esa señal viene del caller, no del historial.
type CreateBatchRequest struct {
	CollectionDate string   `json:"collection_date"` // YYYY-MM-DD
	InvoiceIDs     []string `json:"invoice_ids"`
	FinalInvoices  []string `json:"final_invoices,omitempty"`
}

// DroppedCandidate candidato descartado durante la re-verificación bajo lock.
type DroppedCandidate struct {
	InvoiceID string `json:"invoice_id"`
	Reason    string `json:"reason"`
}

// CreateBatchResponse resultado de la asignación: "N de M ya no disponibles"
// en lugar de un fallo genérico.
type CreateBatchResponse struct {
	BatchID   string             `json:"batch_id"`
	Requested int                `json:"requested"`
	Claimed   int                `json:"claimed"`
	Dropped   []DroppedCandidate `json:"dropped,omitempty"`
}

// EntryResponse una línea del lote.
type EntryResponse struct {
	ID           string          `json:"id"`
	InvoiceID    string          `json:"invoice_id"`
	MandateID    string          `json:"mandate_id"`
	DebtorName   string          `json:"debtor_name"`
	IBAN         string          `json:"iban"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	SequenceType string          `json:"sequence_type"`
	Status       string          `json:"status"`
}

// BatchResponse cabecera del lote con totales derivados.
type BatchResponse struct {
	ID             string          `json:"id"`
	Status         string          `json:"status"`
	CollectionDate string          `json:"collection_date"`
	Currency       string          `json:"currency"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	EntryCount     int             `json:"entry_count"`
	MessageID      string          `json:"message_id,omitempty"`
	Entries        []EntryResponse `json:"entries,omitempty"`
}

// ViolationResponse una violación del reporte de validación.
type ViolationResponse struct {
	EntryID   string `json:"entry_id,omitempty"`
	InvoiceID string `json:"invoice_id,omitempty"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// ValidationReportResponse reporte completo pass/fail.
type ValidationReportResponse struct {
	BatchID    string              `json:"batch_id"`
	Passed     bool                `json:"passed"`
	Violations []ViolationResponse `json:"violations,omitempty"`
}

// PreviewCandidate factura elegible según el selector, aún sin asignar.
type PreviewCandidate struct {
	InvoiceID string          `json:"invoice_id"`
	MemberID  string          `json:"member_id"`
	MandateID string          `json:"mandate_id"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	DueDate   string          `json:"due_date"`
}

// PreviewExcluded factura excluida con su razón (canal lateral para el operador).
type PreviewExcluded struct {
	InvoiceID string `json:"invoice_id"`
	Reason    string `json:"reason"`
}

// PreviewResponse salida del selector de elegibilidad.
type PreviewResponse struct {
	CollectionDate string             `json:"collection_date"`
	Eligible       []PreviewCandidate `json:"eligible"`
	Excluded       []PreviewExcluded  `json:"excluded,omitempty"`
}
