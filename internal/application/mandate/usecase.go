// Package mandate implementa el ciclo de vida del mandato SEPA:
// Draft → Active en la firma; Suspended temporal; Cancelled terminal;
// Expired tras la ventana configurable de inactividad. Un mandato
// Cancelled/Expired nunca se reactiva: se crea uno nuevo.
package mandate

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tu-usuario/sepa-incasso/internal/domain"
	"github.com/tu-usuario/sepa-incasso/internal/domain/entity"
	"github.com/tu-usuario/sepa-incasso/internal/domain/repository"
	"github.com/tu-usuario/sepa-incasso/pkg/logger"
	pkgsepa "github.com/tu-usuario/sepa-incasso/pkg/sepa"
)

// UseCase operaciones de ciclo de vida sobre mandatos.
type UseCase struct {
	mandates     repository.MandateRepository
	expiryMonths int // rulebook EPC: 36 meses sin uso expiran el mandato
	clock        func() time.Time
	log          *logger.Logger
}

// NewUseCase construye el caso de uso. clock nil = time.Now.
func NewUseCase(mandates repository.MandateRepository, expiryMonths int, clock func() time.Time, log *logger.Logger) *UseCase {
	if clock == nil {
		clock = time.Now
	}
	if expiryMonths <= 0 {
		expiryMonths = 36
	}
	return &UseCase{mandates: mandates, expiryMonths: expiryMonths, clock: clock, log: log.Component("mandate")}
}

// CreateDraft da de alta un mandato en borrador. El identificador bancario se
// fija recién en la activación (firma).
func (uc *UseCase) CreateDraft(ctx context.Context, memberID, holderName, iban, bic string, oneOff bool) (*entity.Mandate, error) {
	if memberID == "" || holderName == "" {
		return nil, domain.ErrInvalidInput
	}
	if err := pkgsepa.ValidateIBAN(iban); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if bic != "" {
		if err := pkgsepa.ValidateBIC(bic); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
		}
	}
	mandateType := entity.MandateRecurring
	if oneOff {
		mandateType = entity.MandateOneOff
	}
	now := uc.clock()
	m := &entity.Mandate{
		ID:         uuid.New().String(),
		MemberID:   memberID,
		HolderName: holderName,
		IBAN:       pkgsepa.NormalizeIBAN(iban),
		BIC:        bic,
		Type:       mandateType,
		Status:     entity.MandateDraft,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := uc.mandates.Create(ctx, m); err != nil {
		return nil, err
	}
	uc.log.Info().Str("mandate", m.ID).Str("member", memberID).Msg("mandato creado en borrador")
	return m, nil
}

// Activate registra la firma: fija el identificador bancario (inmutable de
// aquí en adelante) y transiciona Draft → Active. El colaborador de miembros
// garantiza que haya a lo sumo un mandato Active por miembro.
func (uc *UseCase) Activate(ctx context.Context, id, mandateID string, signDate time.Time) (*entity.Mandate, error) {
	if !pkgsepa.ValidMandateID(mandateID) {
		return nil, fmt.Errorf("%w: identificador de mandato %q inválido", domain.ErrInvalidInput, mandateID)
	}
	m, err := uc.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !m.Status.CanTransitionTo(entity.MandateActive) || m.Status != entity.MandateDraft {
		return nil, fmt.Errorf("%w: %s → Active", domain.ErrInvalidTransition, m.Status)
	}
	existing, err := uc.mandates.GetByMandateID(ctx, mandateID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: identificador de mandato %s ya usado", domain.ErrDuplicate, mandateID)
	}
	now := uc.clock()
	m.MandateID = mandateID
	m.SignDate = &signDate
	m.Status = entity.MandateActive
	m.UpdatedAt = now
	if err := uc.mandates.Update(ctx, m); err != nil {
		return nil, err
	}
	uc.log.Info().Str("mandate", m.ID).Str("mandate_id", mandateID).Msg("mandato activado")
	return m, nil
}

// Suspend pausa temporalmente un mandato Active.
func (uc *UseCase) Suspend(ctx context.Context, id string) error {
	return uc.transition(ctx, id, entity.MandateSuspended)
}

// Resume reactiva un mandato Suspended. Es la única vuelta a Active permitida.
func (uc *UseCase) Resume(ctx context.Context, id string) error {
	m, err := uc.get(ctx, id)
	if err != nil {
		return err
	}
	if m.Status != entity.MandateSuspended {
		return fmt.Errorf("%w: solo un mandato Suspended puede reanudarse (estado %s)", domain.ErrInvalidTransition, m.Status)
	}
	return uc.apply(ctx, m, entity.MandateActive)
}

// Cancel termina definitivamente el mandato.
func (uc *UseCase) Cancel(ctx context.Context, id string) error {
	return uc.transition(ctx, id, entity.MandateCancelled)
}

// GetByID devuelve el mandato o ErrNotFound.
func (uc *UseCase) GetByID(ctx context.Context, id string) (*entity.Mandate, error) {
	return uc.get(ctx, id)
}

// ExpireInactive expira mandatos sin uso dentro de la ventana configurada
// (último uso, o firma si nunca se usaron). Pensado para el sweep programado.
// Devuelve la cantidad de mandatos expirados.
func (uc *UseCase) ExpireInactive(ctx context.Context) (int, error) {
	now := uc.clock()
	cutoff := now.AddDate(0, -uc.expiryMonths, 0)
	inactive, err := uc.mandates.ListInactiveSince(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, m := range inactive {
		if !m.Status.CanTransitionTo(entity.MandateExpired) {
			continue
		}
		m.Status = entity.MandateExpired
		m.UpdatedAt = now
		if err := uc.mandates.Update(ctx, m); err != nil {
			return expired, err
		}
		expired++
		uc.log.Info().Str("mandate", m.ID).Msg("mandato expirado por inactividad")
	}
	return expired, nil
}

func (uc *UseCase) get(ctx context.Context, id string) (*entity.Mandate, error) {
	m, err := uc.mandates.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, domain.ErrNotFound
	}
	return m, nil
}

func (uc *UseCase) transition(ctx context.Context, id string, next entity.MandateStatus) error {
	m, err := uc.get(ctx, id)
	if err != nil {
		return err
	}
	return uc.apply(ctx, m, next)
}

func (uc *UseCase) apply(ctx context.Context, m *entity.Mandate, next entity.MandateStatus) error {
	if !m.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s → %s", domain.ErrInvalidTransition, m.Status, next)
	}
	m.Status = next
	m.UpdatedAt = uc.clock()
	return uc.mandates.Update(ctx, m)
}
