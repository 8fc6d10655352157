package batch

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/tu-usuario/sepa-incasso/internal/domain"
	"github.com/tu-usuario/sepa-incasso/internal/domain/entity"
	"github.com/tu-usuario/sepa-incasso/internal/domain/repository"
	domsepa "github.com/tu-usuario/sepa-incasso/internal/domain/sepa"
	"github.com/tu-usuario/sepa-incasso/pkg/logger"
	pkgsepa "github.com/tu-usuario/sepa-incasso/pkg/sepa"
)

// Dropped candidato descartado durante la re-verificación bajo lock.
// Es una carrera benigna con otra operación concurrente, no un error.
type Dropped struct {
	InvoiceID string
	Reason    string
}

// AllocationResult lote creado más el detalle "N de M ya no disponibles".
type AllocationResult struct {
	Batch     *entity.DirectDebitBatch
	Requested int
	Dropped   []Dropped
}

// Claimed cantidad de facturas efectivamente reclamadas.
func (r *AllocationResult) Claimed() int {
	if r.Batch == nil {
		return 0
	}
	return len(r.Batch.Entries)
}

// Allocator reclama atómicamente un conjunto de facturas en un lote Draft
// nuevo. Garantía: ninguna factura puede quedar en dos lotes no terminales;
// dos asignaciones concurrentes con candidatos solapados producen lotes
// disjuntos (la segunda simplemente ve menos sobrevivientes).
type Allocator struct {
	tx    AllocationTxRunner
	clock func() time.Time
	log   *logger.Logger
}

// NewAllocator construye el asignador. clock nil = time.Now.
func NewAllocator(tx AllocationTxRunner, clock func() time.Time, log *logger.Logger) *Allocator {
	if clock == nil {
		clock = time.Now
	}
	return &Allocator{tx: tx, clock: clock, log: log.Component("allocator")}
}

// Allocate crea un lote Draft con el subconjunto de candidatos que sigue
// elegible en el momento del claim, todo dentro de una transacción
// SERIALIZABLE. finalInvoices marca el último cobro del mandato por factura.
//
// Orden de locks: facturas primero y mandatos después, cada grupo ordenado
// ascendente por referencia. Todos los callers usan el mismo orden, lo que
// basta para evitar deadlocks sin un lock manager global.
//
// Si la transacción no puede commitear el error es ErrConcurrencyConflict o
// ErrPersistence y no queda ningún lote parcial: el caller reintenta con una
// lista fresca.
func (a *Allocator) Allocate(ctx context.Context, candidates []Candidate, collectionDate time.Time, finalInvoices map[string]bool) (*AllocationResult, error) {
	if len(candidates) == 0 {
		return nil, domain.ErrInvalidInput
	}

	result := &AllocationResult{Requested: len(candidates)}

	err := a.tx.RunAllocation(ctx, func(
		invoices repository.InvoiceSource,
		mandates repository.MandateRepository,
		usages repository.MandateUsageRepository,
		batches repository.BatchRepository,
	) error {
		// 1) Locks en orden ascendente por referencia de factura.
		sorted := make([]Candidate, len(candidates))
		copy(sorted, candidates)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].InvoiceID < sorted[j].InvoiceID })

		invoiceIDs := make([]string, len(sorted))
		for i, c := range sorted {
			invoiceIDs[i] = c.InvoiceID
		}
		if err := invoices.LockByIDs(ctx, invoiceIDs); err != nil {
			return err
		}

		mandateIDSet := make(map[string]struct{}, len(sorted))
		for _, c := range sorted {
			mandateIDSet[c.MandateRowID] = struct{}{}
		}
		mandateIDs := make([]string, 0, len(mandateIDSet))
		for id := range mandateIDSet {
			mandateIDs = append(mandateIDs, id)
		}
		sort.Strings(mandateIDs)
		if err := mandates.LockByIDs(ctx, mandateIDs); err != nil {
			return err
		}

		// 2) Re-verificación bajo lock. Un candidato caído no aborta nada.
		fresh, err := invoices.GetByIDs(ctx, invoiceIDs)
		if err != nil {
			return err
		}
		freshByID := make(map[string]*entity.OutstandingInvoice, len(fresh))
		for _, inv := range fresh {
			freshByID[inv.ID] = inv
		}

		now := a.clock()
		batch := &entity.DirectDebitBatch{
			ID:             uuid.New().String(),
			CollectionDate: collectionDate,
			Status:         entity.BatchDraft,
			Currency:       "EUR",
			CreatedAt:      now,
			UpdatedAt:      now,
		}

		for _, c := range sorted {
			inv, ok := freshByID[c.InvoiceID]
			switch {
			case !ok:
				result.Dropped = append(result.Dropped, Dropped{InvoiceID: c.InvoiceID, Reason: "factura ya no existe"})
				continue
			case !inv.Outstanding():
				result.Dropped = append(result.Dropped, Dropped{InvoiceID: c.InvoiceID, Reason: "factura ya no está pendiente"})
				continue
			case inv.BatchID != nil:
				result.Dropped = append(result.Dropped, Dropped{InvoiceID: c.InvoiceID, Reason: "reclamada por otro lote"})
				continue
			}

			mandate, err := mandates.GetByID(ctx, c.MandateRowID)
			if err != nil {
				return err
			}
			if mandate == nil || mandate.Status != entity.MandateActive {
				result.Dropped = append(result.Dropped, Dropped{InvoiceID: c.InvoiceID, Reason: "el mandato ya no está activo"})
				continue
			}

			history, err := usages.ListByMandate(ctx, mandate.ID)
			if err != nil {
				return err
			}
			seq := domsepa.ResolveSequenceType(mandate, history, finalInvoices[c.InvoiceID])

			bic := mandate.BIC
			if bic == "" {
				bic = pkgsepa.DeriveBIC(mandate.IBAN)
			}
			var signDate time.Time
			if mandate.SignDate != nil {
				signDate = *mandate.SignDate
			}

			// 3) Snapshot congelado: cambios posteriores al mandato o a la
			// factura no tocan la entrada.
			entry := &entity.BatchEntry{
				ID:           uuid.New().String(),
				BatchID:      batch.ID,
				InvoiceID:    inv.ID,
				MemberID:     inv.MemberID,
				MandateRowID: mandate.ID,
				MandateID:    mandate.MandateID,
				DebtorName:   pkgsepa.Transliterate(mandate.HolderName, pkgsepa.MaxNameLength),
				IBAN:         pkgsepa.NormalizeIBAN(mandate.IBAN),
				BIC:          bic,
				SignDate:     signDate,
				Amount:       inv.Amount,
				Currency:     inv.Currency,
				SequenceType: seq,
				Status:       entity.EntryPending,
				CreatedAt:    now,
			}
			batch.Entries = append(batch.Entries, entry)
		}

		if len(batch.Entries) == 0 {
			// Nada sobrevivió: no se crea lote vacío.
			return nil
		}

		batch.CalculateTotals()
		batch.AppendLog(now, "lote creado por el asignador")

		if err := batches.Create(ctx, batch); err != nil {
			return err
		}
		for _, e := range batch.Entries {
			if err := invoices.MarkBatched(ctx, e.InvoiceID, batch.ID); err != nil {
				return err
			}
		}

		result.Batch = batch
		return nil
	})
	if err != nil {
		// La transacción abortó completa: sin lote parcial.
		return nil, err
	}

	a.log.Info().
		Int("requested", result.Requested).
		Int("claimed", result.Claimed()).
		Int("dropped", len(result.Dropped)).
		Msg("asignación completada")

	return result, nil
}
