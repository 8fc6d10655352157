package repository

import (
	"context"
	"time"

	"github.com/tu-usuario/sepa-incasso/internal/domain/entity"
)

// MandateRepository persiste mandatos. Implementado con pool o tx (Querier).
type MandateRepository interface {
	Create(ctx context.Context, m *entity.Mandate) error
	Update(ctx context.Context, m *entity.Mandate) error
	GetByID(ctx context.Context, id string) (*entity.Mandate, error)
	GetByMandateID(ctx context.Context, mandateID string) (*entity.Mandate, error)
	// GetActiveByMember devuelve el único mandato Active del miembro, nil si no hay.
	GetActiveByMember(ctx context.Context, memberID string) (*entity.Mandate, error)
	// LockByIDs toma FOR UPDATE sobre las filas indicadas. Los IDs deben venir
	// ya ordenados por el caller para respetar el orden global de locks.
	LockByIDs(ctx context.Context, ids []string) error
	// ListInactiveSince devuelve mandatos Active/Suspended cuyo último uso (o
	// firma, si nunca se usaron) es anterior a before. Alimenta el sweep de expiración.
	ListInactiveSince(ctx context.Context, before time.Time) ([]*entity.Mandate, error)
}

// MandateUsageRepository historial append-only de usos de mandato.
type MandateUsageRepository interface {
	Append(ctx context.Context, u *entity.MandateUsage) error
	// ListByMandate devuelve los usos ordenados por fecha de creación ascendente.
	ListByMandate(ctx context.Context, mandateRowID string) ([]*entity.MandateUsage, error)
}
