package postgres

import (
	"context"
	"fmt"

	"github.com/tu-usuario/sepa-incasso/internal/domain"
	"github.com/tu-usuario/sepa-incasso/internal/domain/entity"
	"github.com/tu-usuario/sepa-incasso/internal/domain/repository"
)

var _ repository.InvoiceSource = (*InvoiceRepo)(nil)

// InvoiceRepo adaptador del colaborador de facturación sobre la tabla local
// de facturas. El núcleo nunca edita montos ni estados de pago, solo lee y
// escribe el marcador batch_id.
type InvoiceRepo struct {
	q Querier
}

// NewInvoiceRepository construye el adaptador. Pasar pool o tx (Querier).
func NewInvoiceRepository(q Querier) *InvoiceRepo {
	return &InvoiceRepo{q: q}
}

const invoiceColumns = `id, member_id, chapter, amount, currency, due_date, status, batch_id`

// ListOutstanding facturas pendientes sin lote no terminal, ordenadas por
// vencimiento ascendente y luego por id.
func (r *InvoiceRepo) ListOutstanding(ctx context.Context, filter repository.InvoiceFilter) ([]*entity.OutstandingInvoice, error) {
	query := `SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE status IN ('Unpaid', 'Overdue')
		  AND batch_id IS NULL`
	args := []any{}
	n := 0
	next := func() string {
		n++
		return fmt.Sprintf("$%d", n)
	}
	if filter.MemberID != "" {
		query += ` AND member_id = ` + next()
		args = append(args, filter.MemberID)
	}
	if filter.Chapter != "" {
		query += ` AND chapter = ` + next()
		args = append(args, filter.Chapter)
	}
	if filter.MinAmount != nil {
		query += ` AND amount >= ` + next()
		args = append(args, *filter.MinAmount)
	}
	if filter.MaxAmount != nil {
		query += ` AND amount <= ` + next()
		args = append(args, *filter.MaxAmount)
	}
	if filter.DueBefore != nil {
		query += ` AND due_date < ` + next()
		args = append(args, *filter.DueBefore)
	}
	query += ` ORDER BY due_date, id`

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list outstanding invoices: %w", err)
	}
	defer rows.Close()
	var list []*entity.OutstandingInvoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		list = append(list, inv)
	}
	return list, rows.Err()
}

// GetByIDs facturas por id, en orden de id ascendente.
func (r *InvoiceRepo) GetByIDs(ctx context.Context, ids []string) ([]*entity.OutstandingInvoice, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = ANY($1) ORDER BY id`
	rows, err := r.q.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("get invoices: %w", err)
	}
	defer rows.Close()
	var list []*entity.OutstandingInvoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		list = append(list, inv)
	}
	return list, rows.Err()
}

// LockByIDs toma FOR UPDATE sobre las facturas indicadas. ORDER BY id fija el
// orden de adquisición de locks.
func (r *InvoiceRepo) LockByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	query := `SELECT id FROM invoices WHERE id = ANY($1) ORDER BY id FOR UPDATE`
	rows, err := r.q.Query(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("lock invoices: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("scan locked invoice: %w", err)
		}
	}
	return rows.Err()
}

// MarkBatched escribe el marcador de pertenencia. El WHERE con batch_id IS
// NULL es la última línea de defensa contra la doble asignación: si otra
// transacción ganó, RowsAffected es cero y se reporta conflicto.
func (r *InvoiceRepo) MarkBatched(ctx context.Context, invoiceID, batchID string) error {
	query := `UPDATE invoices SET batch_id = $2 WHERE id = $1 AND batch_id IS NULL`
	tag, err := r.q.Exec(ctx, query, invoiceID, batchID)
	if err != nil {
		return fmt.Errorf("mark invoice batched: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: factura %s ya reservada por otro lote", domain.ErrConcurrencyConflict, invoiceID)
	}
	return nil
}

// ClearBatchMarker libera la factura al cancelar un lote Draft o Validated.
func (r *InvoiceRepo) ClearBatchMarker(ctx context.Context, invoiceID string) error {
	query := `UPDATE invoices SET batch_id = NULL WHERE id = $1`
	if _, err := r.q.Exec(ctx, query, invoiceID); err != nil {
		return fmt.Errorf("clear invoice batch marker: %w", err)
	}
	return nil
}

func scanInvoice(row pgxScanner) (*entity.OutstandingInvoice, error) {
	var inv entity.OutstandingInvoice
	if err := row.Scan(&inv.ID, &inv.MemberID, &inv.Chapter, &inv.Amount, &inv.Currency, &inv.DueDate, &inv.Status, &inv.BatchID); err != nil {
		return nil, err
	}
	return &inv, nil
}
