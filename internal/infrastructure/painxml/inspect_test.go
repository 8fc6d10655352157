package painxml_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tu-usuario/sepa-incasso/internal/domain"
	"github.com/tu-usuario/sepa-incasso/internal/domain/entity"
	"github.com/tu-usuario/sepa-incasso/internal/infrastructure/painxml"
)

func TestInspector_ArchivoEmitidoPasaLaInspeccion(t *testing.T) {
	b := generatedBatch(
		entry("001", "12.50", entity.SeqFirst),
		entry("002", "7.25", entity.SeqRecurring),
		entry("003", "100.00", entity.SeqRecurring),
	)
	raw, err := painxml.NewBuilder(testCreditor).Encode(b)
	require.NoError(t, err)

	assert.NoError(t, painxml.NewInspector().VerifyControlSums(raw))
}

func TestInspector_SummarizeReportaLosBloques(t *testing.T) {
	b := generatedBatch(
		entry("001", "12.50", entity.SeqFirst),
		entry("002", "7.25", entity.SeqRecurring),
	)
	raw, err := painxml.NewBuilder(testCreditor).Encode(b)
	require.NoError(t, err)

	sum, err := painxml.NewInspector().Summarize(raw)
	require.NoError(t, err)

	assert.Equal(t, "BATCH-4c0e2f6a", sum.MessageID)
	assert.Equal(t, 2, sum.NbOfTxs)
	assert.Equal(t, "19.75", sum.CtrlSum.StringFixed(2))

	require.Len(t, sum.Blocks, 2)
	assert.Equal(t, "FRST", sum.Blocks[0].SequenceType)
	assert.Equal(t, 1, sum.Blocks[0].TxCount)
	assert.Equal(t, "12.50", sum.Blocks[0].TxSum.StringFixed(2))
	assert.Equal(t, "2026-09-05", sum.Blocks[0].CollectionDt)
	assert.Equal(t, "RCUR", sum.Blocks[1].SequenceType)
}

// Un CtrlSum manipulado a mano debe detectarse antes de enviar al banco.
func TestInspector_CtrlSumManipulado(t *testing.T) {
	b := generatedBatch(entry("001", "12.50", entity.SeqFirst))
	raw, err := painxml.NewBuilder(testCreditor).Encode(b)
	require.NoError(t, err)

	tampered := bytes.Replace(raw, []byte("<CtrlSum>12.50</CtrlSum>"), []byte("<CtrlSum>99.99</CtrlSum>"), 1)
	require.NotEqual(t, raw, tampered)

	err = painxml.NewInspector().VerifyControlSums(tampered)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEncodingContract)
}

func TestInspector_TransaccionEliminada(t *testing.T) {
	b := generatedBatch(
		entry("001", "12.50", entity.SeqFirst),
		entry("002", "7.25", entity.SeqFirst),
	)
	raw, err := painxml.NewBuilder(testCreditor).Encode(b)
	require.NoError(t, err)

	// Recortar la última transacción deja NbOfTxs declarado en 2 con 1 real.
	start := bytes.LastIndex(raw, []byte("<DrctDbtTxInf>"))
	end := bytes.LastIndex(raw, []byte("</DrctDbtTxInf>")) + len("</DrctDbtTxInf>")
	require.Greater(t, start, 0)
	tampered := append(append([]byte{}, raw[:start]...), raw[end:]...)

	err = painxml.NewInspector().VerifyControlSums(tampered)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEncodingContract)
}

func TestInspector_XMLIlegible(t *testing.T) {
	_, err := painxml.NewInspector().Summarize([]byte("esto no es XML <"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEncodingContract)
}

func TestInspector_DocumentoSinCstmrDrctDbtInitn(t *testing.T) {
	_, err := painxml.NewInspector().Summarize([]byte(`<?xml version="1.0"?><Document></Document>`))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEncodingContract)
}
