package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Estados de la factura relevantes para el cobro (el CRUD de facturas vive
// en el sistema colaborador; aquí solo se lee y se marca la pertenencia a lote).
const (
	InvoiceUnpaid  = "Unpaid"
	InvoiceOverdue = "Overdue"
	InvoicePaid    = "Paid"
)

// OutstandingInvoice es la vista de una factura pendiente tal como la expone
// el colaborador de facturación. El núcleo nunca muta sus campos de negocio,
// solo el marcador BatchID.
type OutstandingInvoice struct {
	ID       string
	MemberID string
	Chapter  string // sección/delegación local del miembro
	Amount   decimal.Decimal
	Currency string
	DueDate  time.Time
	Status   string
	BatchID  *string // lote no terminal al que pertenece, nil si está libre
}

// Outstanding indica si la factura sigue pendiente de pago.
func (i *OutstandingInvoice) Outstanding() bool {
	return i.Status == InvoiceUnpaid || i.Status == InvoiceOverdue
}
