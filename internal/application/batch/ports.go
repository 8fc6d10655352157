package batch

import (
	"context"

	"github.com/tu-usuario/sepa-incasso/internal/domain/entity"
	"github.com/tu-usuario/sepa-incasso/internal/domain/repository"
)

// AllocationTxRunner ejecuta fn dentro de una transacción SERIALIZABLE con
// repos atados a la tx. Es el único punto del subsistema que toma locks de
// fila; todo lo demás lee con aislamiento por defecto (la sobre-selección
// benigna se corrige en la re-verificación bajo lock).
type AllocationTxRunner interface {
	RunAllocation(ctx context.Context, fn func(
		invoices repository.InvoiceSource,
		mandates repository.MandateRepository,
		usages repository.MandateUsageRepository,
		batches repository.BatchRepository,
	) error) error
}

// SubmissionTxRunner transacción con aislamiento por defecto para el cierre
// de envío: transición a Submitted + registro de usos de mandato.
type SubmissionTxRunner interface {
	RunSubmission(ctx context.Context, fn func(
		mandates repository.MandateRepository,
		usages repository.MandateUsageRepository,
		batches repository.BatchRepository,
	) error) error
}

// ReleaseTxRunner transacción con aislamiento por defecto para transiciones
// que liberan facturas: el cambio de estado del lote y la limpieza de los
// marcadores batch_id deben persistirse juntos o no persistirse.
type ReleaseTxRunner interface {
	RunRelease(ctx context.Context, fn func(
		invoices repository.InvoiceSource,
		batches repository.BatchRepository,
	) error) error
}

// Encoder serializa un lote Validated a pain.008.001.02.
type Encoder interface {
	Encode(b *entity.DirectDebitBatch) ([]byte, error)
}

// Inspector verifica un documento pain.008 ya emitido: recomputa NbOfTxs y
// CtrlSum de forma independiente y los compara con los declarados.
type Inspector interface {
	VerifyControlSums(xml []byte) error
}

// EventPublisher publica transiciones de estado del lote para colaboradores
// (reportes, contabilidad). Las implementaciones deben ser seguras ante nil-consumidores.
type EventPublisher interface {
	PublishBatchStatus(ctx context.Context, batchID string, from, to entity.BatchStatus) error
}

// NopPublisher descarta los eventos; se usa cuando AMQP no está configurado.
type NopPublisher struct{}

func (NopPublisher) PublishBatchStatus(context.Context, string, entity.BatchStatus, entity.BatchStatus) error {
	return nil
}
