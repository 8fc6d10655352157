package repository

import (
	"context"
	"time"

	"github.com/tu-usuario/sepa-incasso/internal/domain/entity"
)

// BatchRepository persiste lotes y sus entradas.
type BatchRepository interface {
	// Create inserta la cabecera y todas las entradas del lote.
	Create(ctx context.Context, b *entity.DirectDebitBatch) error
	// GetByID carga el lote con sus entradas ordenadas por invoice_id.
	GetByID(ctx context.Context, id string) (*entity.DirectDebitBatch, error)
	// UpdateStatusIf cambia el estado solo si el lote sigue en from. Devuelve
	// false si otra operación concurrente ganó la transición.
	UpdateStatusIf(ctx context.Context, id string, from, to entity.BatchStatus, updatedAt time.Time) (bool, error)
	// SetGenerated fija MessageID, GeneratedAt y el XML emitido, solo si el
	// lote aún no tiene MessageID. Devuelve false si otra generación
	// concurrente reclamó el cierre primero: el caller debe releer los
	// valores persistidos en lugar de usar los propios.
	SetGenerated(ctx context.Context, id, messageID string, generatedAt time.Time, xml []byte) (bool, error)
	AppendLog(ctx context.Context, id string, line string) error
	UpdateEntryResult(ctx context.Context, entryID, status, resultCode, resultMessage string) error
	ListByStatus(ctx context.Context, status entity.BatchStatus) ([]*entity.DirectDebitBatch, error)
}
