// Package scheduler corre los trabajos programados de cobro: la corrida
// diaria de selección + asignación + validación y el barrido de expiración de
// mandatos inactivos.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/tu-usuario/sepa-incasso/internal/application/batch"
	"github.com/tu-usuario/sepa-incasso/internal/application/mandate"
	"github.com/tu-usuario/sepa-incasso/internal/domain"
	"github.com/tu-usuario/sepa-incasso/internal/domain/repository"
	"github.com/tu-usuario/sepa-incasso/pkg/config"
	"github.com/tu-usuario/sepa-incasso/pkg/logger"
)

// Scheduler envuelve robfig/cron con los dos trabajos del dominio.
type Scheduler struct {
	cron     *cron.Cron
	cfg      config.SchedulerConfig
	selector *batch.EligibilitySelector
	alloc    *batch.Allocator
	validate *batch.Validator
	mandates *mandate.UseCase
	log      *logger.Logger
}

// New construye el scheduler. No arranca nada hasta Start.
func New(
	cfg config.SchedulerConfig,
	selector *batch.EligibilitySelector,
	alloc *batch.Allocator,
	validate *batch.Validator,
	mandates *mandate.UseCase,
	log *logger.Logger,
) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		cfg:      cfg,
		selector: selector,
		alloc:    alloc,
		validate: validate,
		mandates: mandates,
		log:      log.Component("scheduler"),
	}
}

// Start registra los trabajos y arranca el cron en su goroutine.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.cfg.CollectionSpec, s.runCollection); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(s.cfg.MandateSweepSpec, s.runMandateSweep); err != nil {
		return err
	}
	s.cron.Start()
	s.log.Info().
		Str("collection", s.cfg.CollectionSpec).
		Str("mandate_sweep", s.cfg.MandateSweepSpec).
		Msg("scheduler iniciado")
	return nil
}

// Stop detiene el cron y espera a que terminen los trabajos en curso.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// runCollection corrida automática: selecciona todo lo cobrable, lo asigna a
// un lote nuevo y lo valida de inmediato. Un conflicto de concurrencia se
// loguea y se deja para la corrida siguiente, no se reintenta en caliente.
func (s *Scheduler) runCollection() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	collectionDate := time.Now().UTC().Truncate(24 * time.Hour).AddDate(0, 0, s.cfg.CollectionLead)

	selection, err := s.selector.Select(ctx, collectionDate, repository.InvoiceFilter{})
	if err != nil {
		s.log.Error().Err(err).Msg("corrida de cobro: selección falló")
		return
	}
	if len(selection.Eligible) == 0 {
		s.log.Info().Msg("corrida de cobro: nada elegible")
		return
	}

	result, err := s.alloc.Allocate(ctx, selection.Eligible, collectionDate, nil)
	if err != nil {
		if errors.Is(err, domain.ErrConcurrencyConflict) {
			s.log.Warn().Err(err).Msg("corrida de cobro: conflicto de concurrencia, se reintenta en la próxima corrida")
			return
		}
		s.log.Error().Err(err).Msg("corrida de cobro: asignación falló")
		return
	}
	if result.Batch == nil {
		s.log.Info().Msg("corrida de cobro: ningún candidato sobrevivió el claim")
		return
	}

	report, err := s.validate.Validate(ctx, result.Batch.ID)
	if err != nil {
		s.log.Error().Err(err).Str("batch_id", result.Batch.ID).Msg("corrida de cobro: validación falló")
		return
	}
	s.log.Info().
		Str("batch_id", result.Batch.ID).
		Int("entries", result.Claimed()).
		Int("dropped", len(result.Dropped)).
		Bool("valid", report.Passed()).
		Msg("corrida de cobro completada")
}

// runMandateSweep expira mandatos sin uso dentro de la ventana del rulebook.
func (s *Scheduler) runMandateSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	n, err := s.mandates.ExpireInactive(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("barrido de mandatos falló")
		return
	}
	if n > 0 {
		s.log.Info().Int("expired", n).Msg("mandatos expirados por inactividad")
	}
}
