package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/tu-usuario/sepa-incasso/internal/domain"
	"github.com/tu-usuario/sepa-incasso/internal/domain/entity"
	"github.com/tu-usuario/sepa-incasso/internal/domain/repository"
	domsepa "github.com/tu-usuario/sepa-incasso/internal/domain/sepa"
	"github.com/tu-usuario/sepa-incasso/pkg/logger"
)

// Validator re-verifica un lote Draft contra las reglas estructurales SEPA.
// Es el único camino hacia Validated: no hay ruta de Draft directo al encoder.
type Validator struct {
	batches repository.BatchRepository
	cfg     domsepa.ValidationConfig
	events  EventPublisher
	clock   func() time.Time
	log     *logger.Logger
}

// NewValidator construye el validador de lotes.
func NewValidator(batches repository.BatchRepository, cfg domsepa.ValidationConfig, events EventPublisher, clock func() time.Time, log *logger.Logger) *Validator {
	if clock == nil {
		clock = time.Now
	}
	if events == nil {
		events = NopPublisher{}
	}
	return &Validator{batches: batches, cfg: cfg, events: events, clock: clock, log: log.Component("validator")}
}

// Validate corre todas las verificaciones y devuelve el reporte completo.
// Si pasa, el lote transiciona Draft → Validated. Si no, el lote permanece
// Draft y las entradas violadoras quedan marcadas pero no se eliminan.
func (v *Validator) Validate(ctx context.Context, batchID string) (domsepa.ValidationReport, error) {
	b, err := v.batches.GetByID(ctx, batchID)
	if err != nil {
		return domsepa.ValidationReport{}, err
	}
	if b == nil {
		return domsepa.ValidationReport{}, domain.ErrNotFound
	}
	if b.Status != entity.BatchDraft {
		return domsepa.ValidationReport{}, fmt.Errorf("%w: solo un lote Draft puede validarse (estado %s)", domain.ErrInvalidTransition, b.Status)
	}

	now := v.clock()
	report := domsepa.ValidateBatch(b, v.cfg, now)

	if !report.Passed() {
		// Marcar las entradas con violaciones para visibilidad del operador.
		for _, viol := range report.Violations {
			if viol.EntryID == "" {
				continue
			}
			if err := v.batches.UpdateEntryResult(ctx, viol.EntryID, entity.EntryPending, viol.Code, viol.Message); err != nil {
				return report, err
			}
		}
		if err := v.batches.AppendLog(ctx, b.ID, fmt.Sprintf("%s: validación fallida con %d violaciones", now.Format(time.RFC3339), len(report.Violations))); err != nil {
			v.log.Warn().Err(err).Str("batch_id", b.ID).Msg("no se pudo registrar el resultado de validación en la bitácora")
		}
		v.log.Warn().Str("batch_id", b.ID).Int("violations", len(report.Violations)).Msg("lote no pasa validación")
		return report, nil
	}

	moved, err := v.batches.UpdateStatusIf(ctx, b.ID, entity.BatchDraft, entity.BatchValidated, now)
	if err != nil {
		return report, err
	}
	if !moved {
		return report, fmt.Errorf("%w: el lote %s cambió de estado durante la validación", domain.ErrConcurrencyConflict, b.ID)
	}
	if err := v.batches.AppendLog(ctx, b.ID, fmt.Sprintf("%s: validación superada, lote Validated", now.Format(time.RFC3339))); err != nil {
		v.log.Warn().Err(err).Str("batch_id", b.ID).Msg("no se pudo registrar el resultado de validación en la bitácora")
	}
	if err := v.events.PublishBatchStatus(ctx, b.ID, entity.BatchDraft, entity.BatchValidated); err != nil {
		v.log.Warn().Err(err).Str("batch_id", b.ID).Msg("no se pudo publicar el evento de validación")
	}
	v.log.Info().Str("batch_id", b.ID).Msg("lote validado")
	return report, nil
}
