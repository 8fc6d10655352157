package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tu-usuario/sepa-incasso/internal/application/batch"
	"github.com/tu-usuario/sepa-incasso/internal/domain"
	"github.com/tu-usuario/sepa-incasso/internal/domain/repository"
)

// Ensure TxRunner implements the transaction ports of the batch subsystem.
var _ batch.AllocationTxRunner = (*TxRunner)(nil)
var _ batch.SubmissionTxRunner = (*TxRunner)(nil)
var _ batch.ReleaseTxRunner = (*TxRunner)(nil)

// TxRunner ejecuta callbacks dentro de una transacción PostgreSQL con repos
// atados a la tx.
type TxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner construye el runner con el pool.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// RunAllocation corre fn en una transacción SERIALIZABLE. Un choque de
// serialización o un deadlock se traduce a ErrConcurrencyConflict para que el
// caller decida si reintenta.
func (r *TxRunner) RunAllocation(ctx context.Context, fn func(
	invoices repository.InvoiceSource,
	mandates repository.MandateRepository,
	usages repository.MandateUsageRepository,
	batches repository.BatchRepository,
) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("begin allocation transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	invoiceRepo := NewInvoiceRepository(tx)
	mandateRepo := NewMandateRepository(tx)
	usageRepo := NewMandateUsageRepository(tx)
	batchRepo := NewBatchRepository(tx)

	if err := fn(invoiceRepo, mandateRepo, usageRepo, batchRepo); err != nil {
		if isSerializationFailure(err) {
			return fmt.Errorf("%w: %v", domain.ErrConcurrencyConflict, err)
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		if isSerializationFailure(err) {
			return fmt.Errorf("%w: %v", domain.ErrConcurrencyConflict, err)
		}
		return fmt.Errorf("commit allocation transaction: %w", err)
	}
	return nil
}

// RunSubmission corre fn con aislamiento por defecto: el cierre de envío solo
// toca filas ya reservadas por el lote, no compite con otras asignaciones.
func (r *TxRunner) RunSubmission(ctx context.Context, fn func(
	mandates repository.MandateRepository,
	usages repository.MandateUsageRepository,
	batches repository.BatchRepository,
) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin submission transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	mandateRepo := NewMandateRepository(tx)
	usageRepo := NewMandateUsageRepository(tx)
	batchRepo := NewBatchRepository(tx)

	if err := fn(mandateRepo, usageRepo, batchRepo); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit submission transaction: %w", err)
	}
	return nil
}

// RunRelease corre fn con aislamiento por defecto: transición del lote y
// liberación de los marcadores batch_id de sus facturas en una sola tx.
func (r *TxRunner) RunRelease(ctx context.Context, fn func(
	invoices repository.InvoiceSource,
	batches repository.BatchRepository,
) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin release transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	invoiceRepo := NewInvoiceRepository(tx)
	batchRepo := NewBatchRepository(tx)

	if err := fn(invoiceRepo, batchRepo); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit release transaction: %w", err)
	}
	return nil
}
