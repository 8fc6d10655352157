package entity

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Tipos de secuencia SEPA (posición del cobro en el ciclo de vida del mandato).
type SequenceType string

const (
	SeqFirst     SequenceType = "FRST"
	SeqRecurring SequenceType = "RCUR"
	SeqOneOff    SequenceType = "OOFF"
	SeqFinal     SequenceType = "FNAL"
)

// Estados del lote de adeudos directos.
type BatchStatus string

const (
	BatchDraft      BatchStatus = "Draft"
	BatchValidated  BatchStatus = "Validated"
	BatchSubmitted  BatchStatus = "Submitted"
	BatchProcessing BatchStatus = "Processing"
	BatchCompleted  BatchStatus = "Completed"
	BatchFailed     BatchStatus = "Failed"
	BatchCancelled  BatchStatus = "Cancelled"
)

// Tabla de transiciones del lote. Cancelled solo es alcanzable desde Draft o
// Validated: una vez enviado al banco, la cancelación es un proceso externo.
var batchTransitions = map[BatchStatus][]BatchStatus{
	BatchDraft:      {BatchValidated, BatchCancelled},
	BatchValidated:  {BatchSubmitted, BatchDraft, BatchCancelled},
	BatchSubmitted:  {BatchProcessing, BatchCompleted, BatchFailed},
	BatchProcessing: {BatchCompleted, BatchFailed},
}

// CanTransitionTo indica si el cambio de estado es legal.
func (s BatchStatus) CanTransitionTo(next BatchStatus) bool {
	for _, allowed := range batchTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal indica si el estado no admite más transiciones.
func (s BatchStatus) Terminal() bool {
	return s == BatchCompleted || s == BatchFailed || s == BatchCancelled
}

// Estados por entrada dentro del lote (resultado bancario posterior).
const (
	EntryPending    = "Pending"
	EntrySuccessful = "Successful"
	EntryFailed     = "Failed"
)

// BatchEntry es una línea del lote: snapshot de factura + mandato tomado en
// el momento de la asignación. Cambios posteriores al mandato o a la factura
// no alteran una entrada ya asignada.
type BatchEntry struct {
	ID            string
	BatchID       string
	InvoiceID     string
	MemberID      string
	MandateRowID  string
	MandateID     string // MndtId congelado al asignar
	DebtorName    string // ya transliterado al juego de caracteres SEPA
	IBAN          string
	BIC           string
	SignDate      time.Time
	Amount        decimal.Decimal
	Currency      string
	SequenceType  SequenceType
	Status        string // Pending | Successful | Failed
	ResultCode    string // código bancario (PDNG, RJCT, ...) cuando aplique
	ResultMessage string
	CreatedAt     time.Time
}

// DirectDebitBatch es la unidad de trabajo que se envía al banco en un archivo.
type DirectDebitBatch struct {
	ID             string
	CollectionDate time.Time
	Status         BatchStatus
	Currency       string
	TotalAmount    decimal.Decimal // siempre recalculado desde Entries, nunca editado a mano
	EntryCount     int
	MessageID      string     // MsgId del archivo pain.008; se fija en la primera generación
	GeneratedAt    *time.Time // CreDtTm cacheado para que re-encodear sea byte-idéntico
	Log            string     // bitácora append-only de operaciones sobre el lote
	Entries        []*BatchEntry
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CalculateTotals recalcula totalAmount y entryCount desde las entradas.
// Es la única regla de agregación: una entrada sin monto aporta cero.
func (b *DirectDebitBatch) CalculateTotals() {
	total := decimal.Zero
	for _, e := range b.Entries {
		if e == nil {
			continue
		}
		total = total.Add(e.Amount)
	}
	b.TotalAmount = total.Round(2)
	b.EntryCount = len(b.Entries)
}

// AppendLog agrega una línea con timestamp a la bitácora del lote.
func (b *DirectDebitBatch) AppendLog(now time.Time, msg string) {
	b.Log += fmt.Sprintf("%s: %s\n", now.Format(time.RFC3339), msg)
}
