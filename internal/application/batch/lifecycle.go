package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tu-usuario/sepa-incasso/internal/domain"
	"github.com/tu-usuario/sepa-incasso/internal/domain/entity"
	"github.com/tu-usuario/sepa-incasso/internal/domain/repository"
	"github.com/tu-usuario/sepa-incasso/pkg/logger"
)

// LifecycleController orquesta la máquina de estados del lote y expone las
// operaciones del subsistema a los callers externos:
//
//	Draft → Validated → Submitted → Processing → {Completed | Failed}
//	Cancelled solo desde Draft o Validated.
//
// Ningún cambio de estado ocurre en silencio: cada transición es el resultado
// de una llamada observable y se registra en la bitácora del lote.
type LifecycleController struct {
	batches repository.BatchRepository
	subTx   SubmissionTxRunner
	relTx   ReleaseTxRunner
	encoder Encoder
	inspect Inspector
	events  EventPublisher
	clock   func() time.Time
	log     *logger.Logger
}

// NewLifecycleController construye el controlador. events nil = no-op.
func NewLifecycleController(
	batches repository.BatchRepository,
	subTx SubmissionTxRunner,
	relTx ReleaseTxRunner,
	encoder Encoder,
	inspect Inspector,
	events EventPublisher,
	clock func() time.Time,
	log *logger.Logger,
) *LifecycleController {
	if clock == nil {
		clock = time.Now
	}
	if events == nil {
		events = NopPublisher{}
	}
	return &LifecycleController{
		batches: batches,
		subTx:   subTx,
		relTx:   relTx,
		encoder: encoder,
		inspect: inspect,
		events:  events,
		clock:   clock,
		log:     log.Component("lifecycle"),
	}
}

// GetBatch devuelve el lote con sus entradas.
func (c *LifecycleController) GetBatch(ctx context.Context, batchID string) (*entity.DirectDebitBatch, error) {
	b, err := c.batches.GetByID(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, domain.ErrNotFound
	}
	return b, nil
}

// ListByStatus lotes en un estado dado, sin entradas.
func (c *LifecycleController) ListByStatus(ctx context.Context, status entity.BatchStatus) ([]*entity.DirectDebitBatch, error) {
	return c.batches.ListByStatus(ctx, status)
}

// GenerateXML emite el archivo pain.008.001.02 de un lote Validated y lo
// transiciona a Submitted. El MsgId y el timestamp de creación se fijan en la
// primera generación y se cachean: volver a generar produce bytes idénticos.
//
// El lote solo queda Submitted si el encoder y la auto-inspección del archivo
// tuvieron éxito; un fallo del encoder deja el lote en Validated.
//
// Dos generaciones concurrentes compiten por el cierre: SetGenerated y la
// transición Validated → Submitted son actualizaciones condicionales, así que
// exactamente una gana. La perdedora relee los valores persistidos por la
// ganadora y reproduce sus bytes.
func (c *LifecycleController) GenerateXML(ctx context.Context, batchID string) ([]byte, error) {
	b, err := c.GetBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if b.Status != entity.BatchValidated && b.Status != entity.BatchSubmitted {
		return nil, fmt.Errorf("%w: el lote debe estar Validated para generar XML (estado %s)", domain.ErrInvalidTransition, b.Status)
	}

	now := c.clock()
	firstGeneration := b.GeneratedAt == nil
	if firstGeneration {
		b.MessageID = fmt.Sprintf("BATCH-%s", uuid.New().String())
		b.GeneratedAt = &now
	}

	xml, err := c.encoder.Encode(b)
	if err != nil {
		// Contrato roto aguas arriba: no se emite XML parcial ni se toca el estado.
		c.log.Error().Err(err).Str("batch_id", b.ID).Msg("fallo del encoder pain.008")
		return nil, err
	}
	if err := c.inspect.VerifyControlSums(xml); err != nil {
		c.log.Error().Err(err).Str("batch_id", b.ID).Msg("el archivo generado no pasa la auto-inspección")
		return nil, fmt.Errorf("%w: %v", domain.ErrEncodingContract, err)
	}

	if b.Status == entity.BatchSubmitted {
		// Regeneración idempotente de un lote ya enviado.
		return xml, nil
	}

	// Cierre de envío: persistir la generación, transicionar a Submitted y
	// registrar un uso por mandato, todo en una transacción.
	var lost bool
	err = c.subTx.RunSubmission(ctx, func(
		mandates repository.MandateRepository,
		usages repository.MandateUsageRepository,
		batches repository.BatchRepository,
	) error {
		if firstGeneration {
			claimed, err := batches.SetGenerated(ctx, b.ID, b.MessageID, *b.GeneratedAt, xml)
			if err != nil {
				return err
			}
			if !claimed {
				lost = true
				return nil
			}
		}
		moved, err := batches.UpdateStatusIf(ctx, b.ID, entity.BatchValidated, entity.BatchSubmitted, now)
		if err != nil {
			return err
		}
		if !moved {
			lost = true
			return nil
		}
		if err := batches.AppendLog(ctx, b.ID, fmt.Sprintf("%s: XML pain.008 generado (MsgId %s), lote Submitted", now.Format(time.RFC3339), b.MessageID)); err != nil {
			return err
		}
		for _, e := range b.Entries {
			usage := &entity.MandateUsage{
				ID:             uuid.New().String(),
				MandateRowID:   e.MandateRowID,
				BatchID:        b.ID,
				CollectionDate: b.CollectionDate,
				SequenceType:   e.SequenceType,
				Outcome:        entity.UsageSubmitted,
				CreatedAt:      now,
			}
			if err := usages.Append(ctx, usage); err != nil {
				return err
			}
			mandate, err := mandates.GetByID(ctx, e.MandateRowID)
			if err != nil {
				return err
			}
			if mandate != nil {
				mandate.LastUsedAt = &now
				mandate.UpdatedAt = now
				if err := mandates.Update(ctx, mandate); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if lost {
		// La generación concurrente ganadora ya cerró el envío y registró los
		// usos; aquí solo se reproducen sus bytes desde el MsgId persistido.
		fresh, err := c.GetBatch(ctx, batchID)
		if err != nil {
			return nil, err
		}
		if fresh.GeneratedAt == nil {
			return nil, fmt.Errorf("%w: el lote %s perdió el cierre de envío pero no tiene generación persistida", domain.ErrConcurrencyConflict, batchID)
		}
		xml, err = c.encoder.Encode(fresh)
		if err != nil {
			return nil, err
		}
		c.log.Info().Str("batch_id", fresh.ID).Str("message_id", fresh.MessageID).Msg("cierre de envío ganado por otra generación concurrente")
		return xml, nil
	}

	if err := c.events.PublishBatchStatus(ctx, b.ID, entity.BatchValidated, entity.BatchSubmitted); err != nil {
		c.log.Warn().Err(err).Str("batch_id", b.ID).Msg("no se pudo publicar el evento de envío")
	}
	c.log.Info().Str("batch_id", b.ID).Str("message_id", b.MessageID).Msg("lote enviado")
	return xml, nil
}

// Cancel cancela un lote Draft o Validated y libera sus facturas en una sola
// transacción. Desde Submitted en adelante la cancelación es un proceso
// bancario externo.
func (c *LifecycleController) Cancel(ctx context.Context, batchID string) error {
	b, err := c.GetBatch(ctx, batchID)
	if err != nil {
		return err
	}
	if !b.Status.CanTransitionTo(entity.BatchCancelled) {
		return fmt.Errorf("%w: no se puede cancelar un lote %s", domain.ErrInvalidTransition, b.Status)
	}
	now := c.clock()
	err = c.relTx.RunRelease(ctx, func(
		invoices repository.InvoiceSource,
		batches repository.BatchRepository,
	) error {
		moved, err := batches.UpdateStatusIf(ctx, b.ID, b.Status, entity.BatchCancelled, now)
		if err != nil {
			return err
		}
		if !moved {
			return fmt.Errorf("%w: el lote %s cambió de estado durante la cancelación", domain.ErrConcurrencyConflict, b.ID)
		}
		for _, e := range b.Entries {
			if err := invoices.ClearBatchMarker(ctx, e.InvoiceID); err != nil {
				return err
			}
		}
		return batches.AppendLog(ctx, b.ID, fmt.Sprintf("%s: lote cancelado", now.Format(time.RFC3339)))
	})
	if err != nil {
		return err
	}
	if err := c.events.PublishBatchStatus(ctx, b.ID, b.Status, entity.BatchCancelled); err != nil {
		c.log.Warn().Err(err).Str("batch_id", b.ID).Msg("no se pudo publicar el evento de cancelación")
	}
	return nil
}

// SetBankStatus aplica los callbacks del colaborador bancario:
// Submitted → Processing → {Completed | Failed}. La lógica de reconciliación
// vive fuera; aquí solo se valida la transición y se persiste.
//
// Failed libera los marcadores batch_id de sus facturas: siguen Unpaid y
// vuelven a ser elegibles para un próximo lote. Completed los conserva; esas
// facturas ya fueron presentadas al banco.
func (c *LifecycleController) SetBankStatus(ctx context.Context, batchID string, next entity.BatchStatus) error {
	switch next {
	case entity.BatchProcessing, entity.BatchCompleted, entity.BatchFailed:
	default:
		return fmt.Errorf("%w: estado bancario %s no permitido", domain.ErrInvalidInput, next)
	}
	b, err := c.GetBatch(ctx, batchID)
	if err != nil {
		return err
	}
	if !b.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s → %s", domain.ErrInvalidTransition, b.Status, next)
	}
	now := c.clock()
	logLine := fmt.Sprintf("%s: estado bancario %s", now.Format(time.RFC3339), next)

	if next == entity.BatchFailed {
		err = c.relTx.RunRelease(ctx, func(
			invoices repository.InvoiceSource,
			batches repository.BatchRepository,
		) error {
			moved, err := batches.UpdateStatusIf(ctx, b.ID, b.Status, next, now)
			if err != nil {
				return err
			}
			if !moved {
				return fmt.Errorf("%w: el lote %s cambió de estado durante el callback bancario", domain.ErrConcurrencyConflict, b.ID)
			}
			for _, e := range b.Entries {
				if err := invoices.ClearBatchMarker(ctx, e.InvoiceID); err != nil {
					return err
				}
			}
			return batches.AppendLog(ctx, b.ID, logLine)
		})
		if err != nil {
			return err
		}
	} else {
		moved, err := c.batches.UpdateStatusIf(ctx, b.ID, b.Status, next, now)
		if err != nil {
			return err
		}
		if !moved {
			return fmt.Errorf("%w: el lote %s cambió de estado durante el callback bancario", domain.ErrConcurrencyConflict, b.ID)
		}
		if err := c.batches.AppendLog(ctx, b.ID, logLine); err != nil {
			c.log.Warn().Err(err).Str("batch_id", b.ID).Msg("no se pudo registrar el estado bancario en la bitácora")
		}
	}

	if err := c.events.PublishBatchStatus(ctx, b.ID, b.Status, next); err != nil {
		c.log.Warn().Err(err).Str("batch_id", b.ID).Msg("no se pudo publicar el evento de estado bancario")
	}
	return nil
}
