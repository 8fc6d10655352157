package batch_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appbatch "github.com/tu-usuario/sepa-incasso/internal/application/batch"
	"github.com/tu-usuario/sepa-incasso/internal/domain/entity"
	"github.com/tu-usuario/sepa-incasso/internal/domain/repository"
	"github.com/tu-usuario/sepa-incasso/pkg/logger"
)

func newSelector(store *memStore) *appbatch.EligibilitySelector {
	log := logger.New(logger.Config{Env: "development", Level: "error"})
	return appbatch.NewEligibilitySelector(&memInvoices{store: store}, &memMandates{store: store}, log)
}

func TestSelect_OrdenaPorVencimientoYLuegoID(t *testing.T) {
	store := newMemStore()
	seedMember(store, "001", "10.00")
	seedMember(store, "002", "20.00")
	seedMember(store, "003", "30.00")
	// 002 vence antes que las demás; 001 y 003 comparten vencimiento.
	store.invoices["inv-002"].DueDate = time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)

	res, err := newSelector(store).Select(context.Background(), collectDate, repository.InvoiceFilter{})
	require.NoError(t, err)
	require.Len(t, res.Eligible, 3)
	assert.Equal(t, "inv-002", res.Eligible[0].InvoiceID)
	assert.Equal(t, "inv-001", res.Eligible[1].InvoiceID)
	assert.Equal(t, "inv-003", res.Eligible[2].InvoiceID)
	assert.Empty(t, res.Excluded)
}

// El preview puede acotarse a una sección: solo entran las facturas de los
// miembros de ese capítulo.
func TestSelect_FiltraPorCapitulo(t *testing.T) {
	store := newMemStore()
	seedMember(store, "001", "10.00")
	seedMember(store, "002", "20.00")
	store.invoices["inv-001"].Chapter = "zuid"
	store.invoices["inv-002"].Chapter = "noord"

	res, err := newSelector(store).Select(context.Background(), collectDate, repository.InvoiceFilter{Chapter: "noord"})
	require.NoError(t, err)
	require.Len(t, res.Eligible, 1)
	assert.Equal(t, "inv-002", res.Eligible[0].InvoiceID)
	assert.Empty(t, res.Excluded)
}

// Una factura sin mandato activo no es un error: va al canal de excluidas
// con su razón y el resto del lote sigue adelante.
func TestSelect_MiembroSinMandatoActivoQuedaExcluido(t *testing.T) {
	store := newMemStore()
	seedMember(store, "001", "10.00")
	seedMember(store, "002", "20.00")
	store.mandates["m-002"].Status = entity.MandateCancelled

	res, err := newSelector(store).Select(context.Background(), collectDate, repository.InvoiceFilter{})
	require.NoError(t, err)
	require.Len(t, res.Eligible, 1)
	assert.Equal(t, "inv-001", res.Eligible[0].InvoiceID)
	require.Len(t, res.Excluded, 1)
	assert.Equal(t, "inv-002", res.Excluded[0].InvoiceID)
	assert.Equal(t, "el miembro no tiene mandato activo", res.Excluded[0].Reason)
}

func TestSelect_FacturaYaAsignadaQuedaExcluida(t *testing.T) {
	store := newMemStore()
	seedMember(store, "001", "10.00")
	other := "b-otro"
	store.invoices["inv-001"].BatchID = &other

	res, err := newSelector(store).Select(context.Background(), collectDate, repository.InvoiceFilter{})
	require.NoError(t, err)
	assert.Empty(t, res.Eligible)
	assert.Empty(t, res.Excluded, "ListOutstanding ya filtra las asignadas")
}

func TestSelect_CandidatoLlevaElMandatoResuelto(t *testing.T) {
	store := newMemStore()
	seedMember(store, "001", "10.00")

	res, err := newSelector(store).Select(context.Background(), collectDate, repository.InvoiceFilter{})
	require.NoError(t, err)
	require.Len(t, res.Eligible, 1)
	c := res.Eligible[0]
	assert.Equal(t, "m-001", c.MandateRowID)
	assert.Equal(t, "MNDT-2026-001", c.MandateID)
	assert.Equal(t, "member-001", c.MemberID)
	assert.Equal(t, "10.00", c.Amount.StringFixed(2))
}

func TestResolveCandidates_FacturaInexistente(t *testing.T) {
	store := newMemStore()
	seedMember(store, "001", "10.00")

	res, err := newSelector(store).ResolveCandidates(context.Background(), []string{"inv-001", "inv-999"})
	require.NoError(t, err)
	require.Len(t, res.Eligible, 1)
	assert.Equal(t, "inv-001", res.Eligible[0].InvoiceID)
	require.Len(t, res.Excluded, 1)
	assert.Equal(t, "inv-999", res.Excluded[0].InvoiceID)
	assert.Equal(t, "factura no existe", res.Excluded[0].Reason)
}

func TestResolveCandidates_FacturaPagadaQuedaExcluida(t *testing.T) {
	store := newMemStore()
	seedMember(store, "001", "10.00")
	store.invoices["inv-001"].Status = entity.InvoicePaid

	res, err := newSelector(store).ResolveCandidates(context.Background(), []string{"inv-001"})
	require.NoError(t, err)
	assert.Empty(t, res.Eligible)
	require.Len(t, res.Excluded, 1)
	assert.Equal(t, "factura ya no está pendiente", res.Excluded[0].Reason)
}

func TestResolveCandidates_FacturaReservadaQuedaExcluida(t *testing.T) {
	store := newMemStore()
	seedMember(store, "001", "10.00")
	other := "b-otro"
	store.invoices["inv-001"].BatchID = &other

	res, err := newSelector(store).ResolveCandidates(context.Background(), []string{"inv-001"})
	require.NoError(t, err)
	assert.Empty(t, res.Eligible)
	require.Len(t, res.Excluded, 1)
	assert.Equal(t, "ya asignada a un lote no terminal", res.Excluded[0].Reason)
}
