package entity_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/tu-usuario/sepa-incasso/internal/domain/entity"
)

// ──────────────────────────────────────────────────────────────────────────────
// Máquina de estados del lote:
//
//	Draft → Validated → Submitted → Processing → {Completed | Failed}
//	Cancelled solo desde Draft o Validated.
// ──────────────────────────────────────────────────────────────────────────────

func TestBatchStatus_TransicionesLegales(t *testing.T) {
	legal := []struct {
		from, to entity.BatchStatus
	}{
		{entity.BatchDraft, entity.BatchValidated},
		{entity.BatchDraft, entity.BatchCancelled},
		{entity.BatchValidated, entity.BatchSubmitted},
		{entity.BatchValidated, entity.BatchDraft}, // revalidación tras editar
		{entity.BatchValidated, entity.BatchCancelled},
		{entity.BatchSubmitted, entity.BatchProcessing},
		{entity.BatchSubmitted, entity.BatchCompleted},
		{entity.BatchSubmitted, entity.BatchFailed},
		{entity.BatchProcessing, entity.BatchCompleted},
		{entity.BatchProcessing, entity.BatchFailed},
	}
	for _, c := range legal {
		assert.True(t, c.from.CanTransitionTo(c.to), "%s → %s debe ser legal", c.from, c.to)
	}
}

func TestBatchStatus_TransicionesIlegales(t *testing.T) {
	illegal := []struct {
		from, to entity.BatchStatus
	}{
		{entity.BatchDraft, entity.BatchSubmitted}, // no hay atajo sin validar
		{entity.BatchSubmitted, entity.BatchCancelled},
		{entity.BatchProcessing, entity.BatchCancelled},
		{entity.BatchCompleted, entity.BatchDraft},
		{entity.BatchFailed, entity.BatchSubmitted},
		{entity.BatchCancelled, entity.BatchDraft},
	}
	for _, c := range illegal {
		assert.False(t, c.from.CanTransitionTo(c.to), "%s → %s debe ser ilegal", c.from, c.to)
	}
}

func TestBatchStatus_Terminales(t *testing.T) {
	assert.True(t, entity.BatchCompleted.Terminal())
	assert.True(t, entity.BatchFailed.Terminal())
	assert.True(t, entity.BatchCancelled.Terminal())
	assert.False(t, entity.BatchDraft.Terminal())
	assert.False(t, entity.BatchSubmitted.Terminal())
}

func TestMandateStatus_Transiciones(t *testing.T) {
	assert.True(t, entity.MandateDraft.CanTransitionTo(entity.MandateActive))
	assert.True(t, entity.MandateActive.CanTransitionTo(entity.MandateSuspended))
	assert.True(t, entity.MandateSuspended.CanTransitionTo(entity.MandateActive))
	assert.True(t, entity.MandateActive.CanTransitionTo(entity.MandateExpired))

	// Terminales: nunca se reactiva, se crea un mandato nuevo.
	assert.False(t, entity.MandateCancelled.CanTransitionTo(entity.MandateActive))
	assert.False(t, entity.MandateExpired.CanTransitionTo(entity.MandateActive))
	assert.False(t, entity.MandateDraft.CanTransitionTo(entity.MandateSuspended))
}

// ──────────────────────────────────────────────────────────────────────────────
// CalculateTotals: la única regla de agregación del lote.
// ──────────────────────────────────────────────────────────────────────────────

func TestCalculateTotals(t *testing.T) {
	b := &entity.DirectDebitBatch{
		Entries: []*entity.BatchEntry{
			{Amount: decimal.RequireFromString("12.50")},
			{Amount: decimal.RequireFromString("7.25")},
			{Amount: decimal.RequireFromString("100.00")},
		},
	}
	b.CalculateTotals()
	assert.True(t, b.TotalAmount.Equal(decimal.RequireFromString("119.75")), "total %s", b.TotalAmount)
	assert.Equal(t, 3, b.EntryCount)
}

func TestCalculateTotals_LoteVacio(t *testing.T) {
	b := &entity.DirectDebitBatch{}
	b.CalculateTotals()
	assert.True(t, b.TotalAmount.IsZero())
	assert.Equal(t, 0, b.EntryCount)
}

func TestAppendLog(t *testing.T) {
	b := &entity.DirectDebitBatch{}
	now := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)
	b.AppendLog(now, "lote creado")
	b.AppendLog(now.Add(time.Minute), "lote validado")

	assert.Contains(t, b.Log, "2026-08-26T10:00:00Z: lote creado\n")
	assert.Contains(t, b.Log, "lote validado")
	assert.True(t, len(b.Log) > 0)
}
