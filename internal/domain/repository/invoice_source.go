package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tu-usuario/sepa-incasso/internal/domain/entity"
)

// InvoiceFilter filtro opcional del selector de elegibilidad.
type InvoiceFilter struct {
	MemberID  string
	Chapter   string // sección/delegación local del miembro
	MinAmount *decimal.Decimal
	MaxAmount *decimal.Decimal
	DueBefore *time.Time
}

// InvoiceSource es el colaborador externo de facturación. El núcleo solo lee
// facturas pendientes y escribe el marcador de pertenencia a lote.
type InvoiceSource interface {
	// ListOutstanding devuelve facturas pendientes sin lote no terminal,
	// ordenadas por fecha de vencimiento ascendente y luego por id.
	ListOutstanding(ctx context.Context, filter InvoiceFilter) ([]*entity.OutstandingInvoice, error)
	GetByIDs(ctx context.Context, ids []string) ([]*entity.OutstandingInvoice, error)
	// LockByIDs toma FOR UPDATE sobre las facturas indicadas, en el orden dado.
	LockByIDs(ctx context.Context, ids []string) error
	MarkBatched(ctx context.Context, invoiceID, batchID string) error
	ClearBatchMarker(ctx context.Context, invoiceID string) error
}
