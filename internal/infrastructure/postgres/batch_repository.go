package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tu-usuario/sepa-incasso/internal/domain"
	"github.com/tu-usuario/sepa-incasso/internal/domain/entity"
	"github.com/tu-usuario/sepa-incasso/internal/domain/repository"
)

var _ repository.BatchRepository = (*BatchRepo)(nil)

// BatchRepo implementación de BatchRepository (usable con pool o tx).
type BatchRepo struct {
	q Querier
}

// NewBatchRepository construye el adaptador. Pasar pool o tx (Querier).
func NewBatchRepository(q Querier) *BatchRepo {
	return &BatchRepo{q: q}
}

// Create inserta la cabecera del lote y todas sus entradas.
func (r *BatchRepo) Create(ctx context.Context, b *entity.DirectDebitBatch) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	query := `
		INSERT INTO batches (id, collection_date, status, currency, total_amount, entry_count, message_id, generated_at, log, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.q.Exec(ctx, query,
		b.ID, b.CollectionDate, b.Status, b.Currency, b.TotalAmount, b.EntryCount,
		nullIfEmpty(b.MessageID), b.GeneratedAt, b.Log, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}
	for _, e := range b.Entries {
		if err := r.createEntry(ctx, b.ID, e); err != nil {
			return err
		}
	}
	return nil
}

func (r *BatchRepo) createEntry(ctx context.Context, batchID string, e *entity.BatchEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	e.BatchID = batchID
	query := `
		INSERT INTO batch_entries (id, batch_id, invoice_id, member_id, mandate_row_id, mandate_id, debtor_name, iban, bic, sign_date, amount, currency, sequence_type, status, result_code, result_message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`
	_, err := r.q.Exec(ctx, query,
		e.ID, e.BatchID, e.InvoiceID, e.MemberID, e.MandateRowID, e.MandateID,
		e.DebtorName, e.IBAN, e.BIC, e.SignDate, e.Amount, e.Currency,
		e.SequenceType, e.Status, nullIfEmpty(e.ResultCode), nullIfEmpty(e.ResultMessage), e.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: factura %s ya pertenece a un lote", domain.ErrDuplicate, e.InvoiceID)
		}
		return fmt.Errorf("insert batch entry: %w", err)
	}
	return nil
}

// GetByID carga el lote con sus entradas ordenadas por invoice_id.
func (r *BatchRepo) GetByID(ctx context.Context, id string) (*entity.DirectDebitBatch, error) {
	query := `
		SELECT id, collection_date, status, currency, total_amount, entry_count,
		       COALESCE(message_id, ''), generated_at, log, created_at, updated_at
		FROM batches WHERE id = $1`
	var b entity.DirectDebitBatch
	err := r.q.QueryRow(ctx, query, id).Scan(
		&b.ID, &b.CollectionDate, &b.Status, &b.Currency, &b.TotalAmount, &b.EntryCount,
		&b.MessageID, &b.GeneratedAt, &b.Log, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get batch: %w", err)
	}
	entries, err := r.listEntries(ctx, id)
	if err != nil {
		return nil, err
	}
	b.Entries = entries
	return &b, nil
}

func (r *BatchRepo) listEntries(ctx context.Context, batchID string) ([]*entity.BatchEntry, error) {
	query := `
		SELECT id, batch_id, invoice_id, member_id, mandate_row_id, mandate_id,
		       debtor_name, iban, bic, sign_date, amount, currency, sequence_type,
		       status, COALESCE(result_code, ''), COALESCE(result_message, ''), created_at
		FROM batch_entries
		WHERE batch_id = $1
		ORDER BY invoice_id`
	rows, err := r.q.Query(ctx, query, batchID)
	if err != nil {
		return nil, fmt.Errorf("list batch entries: %w", err)
	}
	defer rows.Close()
	var list []*entity.BatchEntry
	for rows.Next() {
		var e entity.BatchEntry
		if err := rows.Scan(
			&e.ID, &e.BatchID, &e.InvoiceID, &e.MemberID, &e.MandateRowID, &e.MandateID,
			&e.DebtorName, &e.IBAN, &e.BIC, &e.SignDate, &e.Amount, &e.Currency, &e.SequenceType,
			&e.Status, &e.ResultCode, &e.ResultMessage, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan batch entry: %w", err)
		}
		list = append(list, &e)
	}
	return list, rows.Err()
}

// UpdateStatusIf cambia el estado del lote solo si sigue en from. La
// legalidad de la transición la garantiza el caller (LifecycleController);
// el WHERE con el estado previo cierra la carrera entre dos transiciones
// concurrentes sobre el mismo lote.
func (r *BatchRepo) UpdateStatusIf(ctx context.Context, id string, from, to entity.BatchStatus, updatedAt time.Time) (bool, error) {
	query := `UPDATE batches SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`
	tag, err := r.q.Exec(ctx, query, id, from, to, updatedAt)
	if err != nil {
		return false, fmt.Errorf("update batch status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// SetGenerated fija MessageID, GeneratedAt y el XML emitido. El WHERE con
// message_id IS NULL hace que una segunda llamada no pise el timestamp
// cacheado: la regeneración debe ser byte-idéntica. Devuelve false si otra
// generación reclamó el cierre primero.
func (r *BatchRepo) SetGenerated(ctx context.Context, id, messageID string, generatedAt time.Time, xml []byte) (bool, error) {
	query := `
		UPDATE batches
		SET message_id = $2, generated_at = $3, xml_document = $4, updated_at = $3
		WHERE id = $1 AND message_id IS NULL`
	tag, err := r.q.Exec(ctx, query, id, messageID, generatedAt, xml)
	if err != nil {
		return false, fmt.Errorf("set batch generated: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// AppendLog agrega una línea a la bitácora del lote sin releer la fila.
func (r *BatchRepo) AppendLog(ctx context.Context, id string, line string) error {
	query := `UPDATE batches SET log = log || $2 WHERE id = $1`
	if _, err := r.q.Exec(ctx, query, id, line); err != nil {
		return fmt.Errorf("append batch log: %w", err)
	}
	return nil
}

// UpdateEntryResult registra el resultado bancario de una entrada.
func (r *BatchRepo) UpdateEntryResult(ctx context.Context, entryID, status, resultCode, resultMessage string) error {
	query := `
		UPDATE batch_entries
		SET status = $2, result_code = $3, result_message = $4
		WHERE id = $1`
	tag, err := r.q.Exec(ctx, query, entryID, status, nullIfEmpty(resultCode), nullIfEmpty(resultMessage))
	if err != nil {
		return fmt.Errorf("update batch entry result: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListByStatus lotes en un estado dado, sin entradas (consulta de listado).
func (r *BatchRepo) ListByStatus(ctx context.Context, status entity.BatchStatus) ([]*entity.DirectDebitBatch, error) {
	query := `
		SELECT id, collection_date, status, currency, total_amount, entry_count,
		       COALESCE(message_id, ''), generated_at, log, created_at, updated_at
		FROM batches
		WHERE status = $1
		ORDER BY created_at DESC`
	rows, err := r.q.Query(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("list batches by status: %w", err)
	}
	defer rows.Close()
	var list []*entity.DirectDebitBatch
	for rows.Next() {
		var b entity.DirectDebitBatch
		if err := rows.Scan(
			&b.ID, &b.CollectionDate, &b.Status, &b.Currency, &b.TotalAmount, &b.EntryCount,
			&b.MessageID, &b.GeneratedAt, &b.Log, &b.CreatedAt, &b.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		list = append(list, &b)
	}
	return list, rows.Err()
}
