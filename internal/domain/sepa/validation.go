package sepa

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tu-usuario/sepa-incasso/internal/domain/entity"
	pkgsepa "github.com/tu-usuario/sepa-incasso/pkg/sepa"
)

// Códigos de violación del validador de lotes.
const (
	CodeIBANChecksum   = "IBAN_CHECKSUM"
	CodeBICFormat      = "BIC_FORMAT"
	CodeAmountInvalid  = "AMOUNT_INVALID"
	CodeMandateIDChars = "MANDATE_ID_CHARS"
	CodeNameChars      = "NAME_CHARS"
	CodeSignDateEmpty  = "SIGN_DATE_EMPTY"
	CodeDateInPast     = "COLLECTION_DATE_PAST"
	CodeDateTooFar     = "COLLECTION_DATE_TOO_FAR"
	CodeBatchEmpty     = "BATCH_EMPTY"
	CodeTotalsMismatch = "TOTALS_MISMATCH"
)

// Violation es un incumplimiento estructural de una entrada o del lote.
// EntryID vacío = violación a nivel de lote.
type Violation struct {
	EntryID   string
	InvoiceID string
	Code      string
	Message   string
}

// ValidationReport enumera todas las violaciones encontradas, no solo la primera.
type ValidationReport struct {
	BatchID    string
	CheckedAt  time.Time
	Violations []Violation
}

// Passed indica si el lote puede transicionar Draft → Validated.
func (r ValidationReport) Passed() bool {
	return len(r.Violations) == 0
}

// ValidationConfig ventana de fecha de cobro permitida.
type ValidationConfig struct {
	MinLeadDays int // días mínimos entre hoy y la fecha de cobro
	MaxLeadDays int // antelación máxima configurable
}

// ValidateBatch aplica las reglas estructurales SEPA sobre un lote Draft.
// Las entradas que violan reglas se reportan pero no se eliminan: el operador
// decide corregir datos y revalidar, o retirar entradas y reasignar.
func ValidateBatch(b *entity.DirectDebitBatch, cfg ValidationConfig, now time.Time) ValidationReport {
	report := ValidationReport{BatchID: b.ID, CheckedAt: now}
	add := func(entryID, invoiceID, code, msg string) {
		report.Violations = append(report.Violations, Violation{
			EntryID: entryID, InvoiceID: invoiceID, Code: code, Message: msg,
		})
	}

	if len(b.Entries) == 0 {
		add("", "", CodeBatchEmpty, "el lote no tiene entradas")
	}

	// Ventana de la fecha de cobro.
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	collect := time.Date(b.CollectionDate.Year(), b.CollectionDate.Month(), b.CollectionDate.Day(), 0, 0, 0, 0, time.UTC)
	lead := int(collect.Sub(today).Hours() / 24)
	if lead < cfg.MinLeadDays {
		add("", "", CodeDateInPast, fmt.Sprintf("fecha de cobro %s con %d días de antelación; mínimo %d", collect.Format("2006-01-02"), lead, cfg.MinLeadDays))
	}
	if cfg.MaxLeadDays > 0 && lead > cfg.MaxLeadDays {
		add("", "", CodeDateTooFar, fmt.Sprintf("fecha de cobro %s excede la antelación máxima de %d días", collect.Format("2006-01-02"), cfg.MaxLeadDays))
	}

	for _, e := range b.Entries {
		if err := pkgsepa.ValidateIBAN(e.IBAN); err != nil {
			add(e.ID, e.InvoiceID, CodeIBANChecksum, fmt.Sprintf("IBAN %s: %v", e.IBAN, err))
		}
		if err := pkgsepa.ValidateBIC(e.BIC); err != nil {
			add(e.ID, e.InvoiceID, CodeBICFormat, fmt.Sprintf("BIC %s: %v", e.BIC, err))
		}
		if !e.Amount.GreaterThan(decimal.Zero) {
			add(e.ID, e.InvoiceID, CodeAmountInvalid, fmt.Sprintf("monto %s debe ser estrictamente positivo", e.Amount))
		} else if !e.Amount.Equal(e.Amount.Round(2)) {
			// EUR tiene dos decimales; más precisión sería truncada por el banco.
			add(e.ID, e.InvoiceID, CodeAmountInvalid, fmt.Sprintf("monto %s excede la precisión de la moneda (2 decimales)", e.Amount))
		}
		if !pkgsepa.ValidMandateID(e.MandateID) {
			add(e.ID, e.InvoiceID, CodeMandateIDChars, fmt.Sprintf("identificador de mandato %q fuera del subconjunto permitido", e.MandateID))
		}
		if e.DebtorName == "" || !pkgsepa.ValidText(e.DebtorName) || len(e.DebtorName) > pkgsepa.MaxNameLength {
			add(e.ID, e.InvoiceID, CodeNameChars, fmt.Sprintf("nombre del deudor %q inválido para campos SEPA", e.DebtorName))
		}
		if e.SignDate.IsZero() {
			add(e.ID, e.InvoiceID, CodeSignDateEmpty, "entrada sin fecha de firma del mandato")
		}
	}

	// Totales siempre recomputables desde las entradas.
	sum := decimal.Zero
	for _, e := range b.Entries {
		sum = sum.Add(e.Amount)
	}
	if !b.TotalAmount.Equal(sum.Round(2)) || b.EntryCount != len(b.Entries) {
		add("", "", CodeTotalsMismatch, fmt.Sprintf("totales registrados (%s, %d) no coinciden con las entradas (%s, %d)",
			b.TotalAmount, b.EntryCount, sum.Round(2), len(b.Entries)))
	}

	return report
}
