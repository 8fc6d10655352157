package entity

import "time"

// Estados del mandato SEPA. Cancelled y Expired son terminales: un mandato
// nunca se reactiva, se crea uno nuevo.
type MandateStatus string

const (
	MandateDraft     MandateStatus = "Draft"
	MandateActive    MandateStatus = "Active"
	MandateSuspended MandateStatus = "Suspended"
	MandateCancelled MandateStatus = "Cancelled"
	MandateExpired   MandateStatus = "Expired"
)

// Tipo de mandato: recurrente (por defecto) o de un solo cobro.
type MandateType string

const (
	MandateRecurring MandateType = "RCUR"
	MandateOneOff    MandateType = "OOFF"
)

// Transiciones legales del mandato.
var mandateTransitions = map[MandateStatus][]MandateStatus{
	MandateDraft:     {MandateActive, MandateCancelled},
	MandateActive:    {MandateSuspended, MandateCancelled, MandateExpired},
	MandateSuspended: {MandateActive, MandateCancelled, MandateExpired},
}

// CanTransitionTo indica si el cambio de estado es legal.
func (s MandateStatus) CanTransitionTo(next MandateStatus) bool {
	for _, allowed := range mandateTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal indica si el estado no admite más transiciones.
func (s MandateStatus) Terminal() bool {
	return s == MandateCancelled || s == MandateExpired
}

// Mandate es la autorización bancaria firmada por un miembro para que la
// asociación debite su cuenta. MandateID es el identificador visible al banco
// (MndtId) y es inmutable una vez firmado el mandato.
type Mandate struct {
	ID         string // fila (uuid)
	MandateID  string // identificador SEPA, máx. 35 caracteres del subconjunto permitido
	MemberID   string
	HolderName string // titular de la cuenta (Dbtr/Nm)
	IBAN       string
	BIC        string // vacío = derivable del IBAN holandés
	Type       MandateType
	Status     MandateStatus
	SignDate   *time.Time // fecha de firma (DtOfSgntr); nil mientras sea Draft
	LastUsedAt *time.Time // último uso exitoso; alimenta la expiración por inactividad
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Resultados de un intento de cobro sobre un mandato.
type UsageOutcome string

const (
	UsageSubmitted UsageOutcome = "Submitted"
	UsageConfirmed UsageOutcome = "Confirmed"
	UsageFailed    UsageOutcome = "Failed"
)

// Successful indica si el uso cuenta como "el mandato ya fue usado" para
// la derivación FRST/RCUR. Un uso Failed no cuenta.
func (o UsageOutcome) Successful() bool {
	return o == UsageSubmitted || o == UsageConfirmed
}

// MandateUsage es una fila append-only por intento de cobro. Los fallos se
// registran como filas nuevas, nunca se editan las existentes.
type MandateUsage struct {
	ID             string
	MandateRowID   string // Mandate.ID
	BatchID        string
	CollectionDate time.Time
	SequenceType   SequenceType
	Outcome        UsageOutcome
	CreatedAt      time.Time
}
