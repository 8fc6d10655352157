package batch

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tu-usuario/sepa-incasso/internal/domain/entity"
	"github.com/tu-usuario/sepa-incasso/internal/domain/repository"
	"github.com/tu-usuario/sepa-incasso/pkg/logger"
)

// Candidate factura elegible con su mandato resuelto. Es la entrada del
// asignador; los campos se re-verifican bajo lock antes de congelarse.
type Candidate struct {
	InvoiceID    string
	MemberID     string
	MandateRowID string
	MandateID    string
	Amount       decimal.Decimal
	Currency     string
	DueDate      time.Time
}

// Exclusion factura descartada por el selector, con razón para el operador.
type Exclusion struct {
	InvoiceID string
	Reason    string
}

// SelectionResult salida del selector: elegibles ordenadas y canal lateral
// de excluidas. Una factura sin mandato Active nunca es un error.
type SelectionResult struct {
	Eligible []Candidate
	Excluded []Exclusion
}

// EligibilitySelector consulta facturas pendientes y filtra las que tienen un
// mandato Active utilizable. Lectura pura: no toma locks ni muta nada.
type EligibilitySelector struct {
	invoices repository.InvoiceSource
	mandates repository.MandateRepository
	log      *logger.Logger
}

// NewEligibilitySelector construye el selector.
func NewEligibilitySelector(invoices repository.InvoiceSource, mandates repository.MandateRepository, log *logger.Logger) *EligibilitySelector {
	return &EligibilitySelector{invoices: invoices, mandates: mandates, log: log.Component("eligibility")}
}

// Select devuelve las facturas cobrables en collectionDate según el filtro.
// Orden determinista: vencimiento ascendente y luego id de factura, para que
// corridas repetidas con los mismos datos produzcan la misma composición.
func (s *EligibilitySelector) Select(ctx context.Context, collectionDate time.Time, filter repository.InvoiceFilter) (*SelectionResult, error) {
	outstanding, err := s.invoices.ListOutstanding(ctx, filter)
	if err != nil {
		return nil, err
	}

	result := &SelectionResult{}
	for _, inv := range outstanding {
		if !inv.Outstanding() {
			result.Excluded = append(result.Excluded, Exclusion{InvoiceID: inv.ID, Reason: "factura ya no está pendiente"})
			continue
		}
		if inv.BatchID != nil {
			result.Excluded = append(result.Excluded, Exclusion{InvoiceID: inv.ID, Reason: "ya asignada a un lote no terminal"})
			continue
		}
		mandate, err := s.mandates.GetActiveByMember(ctx, inv.MemberID)
		if err != nil {
			return nil, err
		}
		if mandate == nil {
			result.Excluded = append(result.Excluded, Exclusion{InvoiceID: inv.ID, Reason: "el miembro no tiene mandato activo"})
			continue
		}
		result.Eligible = append(result.Eligible, Candidate{
			InvoiceID:    inv.ID,
			MemberID:     inv.MemberID,
			MandateRowID: mandate.ID,
			MandateID:    mandate.MandateID,
			Amount:       inv.Amount,
			Currency:     inv.Currency,
			DueDate:      inv.DueDate,
		})
	}

	sort.Slice(result.Eligible, func(i, j int) bool {
		a, b := result.Eligible[i], result.Eligible[j]
		if !a.DueDate.Equal(b.DueDate) {
			return a.DueDate.Before(b.DueDate)
		}
		return a.InvoiceID < b.InvoiceID
	})

	s.log.Debug().
		Int("eligible", len(result.Eligible)).
		Int("excluded", len(result.Excluded)).
		Str("collection_date", collectionDate.Format("2006-01-02")).
		Msg("selección de elegibilidad completada")

	return result, nil
}

// ResolveCandidates arma candidatos a partir de IDs de factura explícitos
// (flujo manual del operador). Las facturas inexistentes o sin mandato activo
// van al canal de excluidas.
func (s *EligibilitySelector) ResolveCandidates(ctx context.Context, invoiceIDs []string) (*SelectionResult, error) {
	invoices, err := s.invoices.GetByIDs(ctx, invoiceIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*entity.OutstandingInvoice, len(invoices))
	for _, inv := range invoices {
		byID[inv.ID] = inv
	}

	result := &SelectionResult{}
	for _, id := range invoiceIDs {
		inv, ok := byID[id]
		if !ok {
			result.Excluded = append(result.Excluded, Exclusion{InvoiceID: id, Reason: "factura no existe"})
			continue
		}
		if !inv.Outstanding() {
			result.Excluded = append(result.Excluded, Exclusion{InvoiceID: id, Reason: "factura ya no está pendiente"})
			continue
		}
		if inv.BatchID != nil {
			result.Excluded = append(result.Excluded, Exclusion{InvoiceID: id, Reason: "ya asignada a un lote no terminal"})
			continue
		}
		mandate, err := s.mandates.GetActiveByMember(ctx, inv.MemberID)
		if err != nil {
			return nil, err
		}
		if mandate == nil {
			result.Excluded = append(result.Excluded, Exclusion{InvoiceID: id, Reason: "el miembro no tiene mandato activo"})
			continue
		}
		result.Eligible = append(result.Eligible, Candidate{
			InvoiceID:    inv.ID,
			MemberID:     inv.MemberID,
			MandateRowID: mandate.ID,
			MandateID:    mandate.MandateID,
			Amount:       inv.Amount,
			Currency:     inv.Currency,
			DueDate:      inv.DueDate,
		})
	}

	sort.Slice(result.Eligible, func(i, j int) bool {
		a, b := result.Eligible[i], result.Eligible[j]
		if !a.DueDate.Equal(b.DueDate) {
			return a.DueDate.Before(b.DueDate)
		}
		return a.InvoiceID < b.InvoiceID
	})

	return result, nil
}
