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

var _ repository.MandateRepository = (*MandateRepo)(nil)

// MandateRepo implementación de MandateRepository (usable con pool o tx).
type MandateRepo struct {
	q Querier
}

// NewMandateRepository construye el adaptador. Pasar pool o tx (Querier).
func NewMandateRepository(q Querier) *MandateRepo {
	return &MandateRepo{q: q}
}

const mandateColumns = `id, mandate_id, member_id, holder_name, iban, bic, type, status,
       sign_date, last_used_at, created_at, updated_at`

// Create persiste un mandato nuevo.
func (r *MandateRepo) Create(ctx context.Context, m *entity.Mandate) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	query := `
		INSERT INTO mandates (id, mandate_id, member_id, holder_name, iban, bic, type, status, sign_date, last_used_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := r.q.Exec(ctx, query,
		m.ID, m.MandateID, m.MemberID, m.HolderName, m.IBAN, nullIfEmpty(m.BIC),
		m.Type, m.Status, m.SignDate, m.LastUsedAt, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: mandate_id %s", domain.ErrDuplicate, m.MandateID)
		}
		return fmt.Errorf("insert mandate: %w", err)
	}
	return nil
}

// Update actualiza los campos mutables del mandato. mandate_id no cambia una
// vez asignado.
func (r *MandateRepo) Update(ctx context.Context, m *entity.Mandate) error {
	query := `
		UPDATE mandates
		SET mandate_id   = $2,
		    holder_name  = $3,
		    iban         = $4,
		    bic          = $5,
		    status       = $6,
		    sign_date    = $7,
		    last_used_at = $8,
		    updated_at   = $9
		WHERE id = $1`
	tag, err := r.q.Exec(ctx, query,
		m.ID, m.MandateID, m.HolderName, m.IBAN, nullIfEmpty(m.BIC),
		m.Status, m.SignDate, m.LastUsedAt, m.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: mandate_id %s", domain.ErrDuplicate, m.MandateID)
		}
		return fmt.Errorf("update mandate: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetByID obtiene un mandato por id de fila.
func (r *MandateRepo) GetByID(ctx context.Context, id string) (*entity.Mandate, error) {
	query := `SELECT ` + mandateColumns + ` FROM mandates WHERE id = $1`
	m, err := scanMandate(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get mandate: %w", err)
	}
	return m, nil
}

// GetByMandateID obtiene un mandato por su identificador bancario (MndtId).
func (r *MandateRepo) GetByMandateID(ctx context.Context, mandateID string) (*entity.Mandate, error) {
	query := `SELECT ` + mandateColumns + ` FROM mandates WHERE mandate_id = $1`
	m, err := scanMandate(r.q.QueryRow(ctx, query, mandateID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get mandate by mandate_id: %w", err)
	}
	return m, nil
}

// GetActiveByMember obtiene el único mandato Active del miembro, nil si no hay.
func (r *MandateRepo) GetActiveByMember(ctx context.Context, memberID string) (*entity.Mandate, error) {
	query := `SELECT ` + mandateColumns + `
		FROM mandates
		WHERE member_id = $1 AND status = 'Active'
		ORDER BY created_at DESC
		LIMIT 1`
	m, err := scanMandate(r.q.QueryRow(ctx, query, memberID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get active mandate for member: %w", err)
	}
	return m, nil
}

// LockByIDs toma FOR UPDATE sobre las filas indicadas. Los IDs llegan ya
// ordenados; ORDER BY id en el SELECT garantiza que Postgres adquiera los
// locks en ese mismo orden.
func (r *MandateRepo) LockByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	query := `SELECT id FROM mandates WHERE id = ANY($1) ORDER BY id FOR UPDATE`
	rows, err := r.q.Query(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("lock mandates: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("scan locked mandate: %w", err)
		}
	}
	return rows.Err()
}

// ListInactiveSince mandatos Active o Suspended cuyo último uso (o firma si
// nunca se usaron) es anterior a before.
func (r *MandateRepo) ListInactiveSince(ctx context.Context, before time.Time) ([]*entity.Mandate, error) {
	query := `SELECT ` + mandateColumns + `
		FROM mandates
		WHERE status IN ('Active', 'Suspended')
		  AND COALESCE(last_used_at, sign_date) < $1
		ORDER BY id`
	rows, err := r.q.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("list inactive mandates: %w", err)
	}
	defer rows.Close()
	var list []*entity.Mandate
	for rows.Next() {
		m, err := scanMandate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan mandate: %w", err)
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

// pgxScanner abstrae pgx.Row y pgx.Rows para reutilizar scanMandate.
type pgxScanner interface {
	Scan(dest ...any) error
}

func scanMandate(row pgxScanner) (*entity.Mandate, error) {
	var m entity.Mandate
	var bic *string
	if err := row.Scan(
		&m.ID, &m.MandateID, &m.MemberID, &m.HolderName, &m.IBAN, &bic,
		&m.Type, &m.Status, &m.SignDate, &m.LastUsedAt, &m.CreatedAt, &m.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if bic != nil {
		m.BIC = *bic
	}
	return &m, nil
}

// ── historial de usos ─────────────────────────────────────────────────────────

var _ repository.MandateUsageRepository = (*MandateUsageRepo)(nil)

// MandateUsageRepo historial append-only de usos de mandato.
type MandateUsageRepo struct {
	q Querier
}

// NewMandateUsageRepository construye el adaptador. Pasar pool o tx (Querier).
func NewMandateUsageRepository(q Querier) *MandateUsageRepo {
	return &MandateUsageRepo{q: q}
}

// Append inserta un uso. Nunca hay UPDATE sobre esta tabla.
func (r *MandateUsageRepo) Append(ctx context.Context, u *entity.MandateUsage) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	query := `
		INSERT INTO mandate_usages (id, mandate_row_id, batch_id, collection_date, sequence_type, outcome, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.q.Exec(ctx, query,
		u.ID, u.MandateRowID, u.BatchID, u.CollectionDate, u.SequenceType, u.Outcome, u.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert mandate usage: %w", err)
	}
	return nil
}

// ListByMandate usos de un mandato en orden de creación ascendente.
func (r *MandateUsageRepo) ListByMandate(ctx context.Context, mandateRowID string) ([]*entity.MandateUsage, error) {
	query := `
		SELECT id, mandate_row_id, batch_id, collection_date, sequence_type, outcome, created_at
		FROM mandate_usages
		WHERE mandate_row_id = $1
		ORDER BY created_at, id`
	rows, err := r.q.Query(ctx, query, mandateRowID)
	if err != nil {
		return nil, fmt.Errorf("list mandate usages: %w", err)
	}
	defer rows.Close()
	var list []*entity.MandateUsage
	for rows.Next() {
		var u entity.MandateUsage
		if err := rows.Scan(&u.ID, &u.MandateRowID, &u.BatchID, &u.CollectionDate, &u.SequenceType, &u.Outcome, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan mandate usage: %w", err)
		}
		list = append(list, &u)
	}
	return list, rows.Err()
}
