package painxml_test

import (
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tu-usuario/sepa-incasso/internal/domain"
	"github.com/tu-usuario/sepa-incasso/internal/domain/entity"
	"github.com/tu-usuario/sepa-incasso/internal/infrastructure/painxml"
)

var testCreditor = painxml.CreditorConfig{
	Name: "Vereniging De Sportclub",
	IBAN: "NL39RABO0300065264",
	BIC:  "RABONL2U",
	ID:   "NL98ZZZ999999990000",
}

func entry(invoiceID, amount string, seq entity.SequenceType) *entity.BatchEntry {
	return &entity.BatchEntry{
		ID:           "e-" + invoiceID,
		InvoiceID:    invoiceID,
		MandateID:    "MNDT-2026-" + invoiceID,
		DebtorName:   "Jan de Vries",
		IBAN:         "NL91ABNA0417164300",
		BIC:          "ABNANL2A",
		SignDate:     time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		Amount:       decimal.RequireFromString(amount),
		Currency:     "EUR",
		SequenceType: seq,
		Status:       entity.EntryPending,
	}
}

func generatedBatch(entries ...*entity.BatchEntry) *entity.DirectDebitBatch {
	gen := time.Date(2026, 8, 26, 10, 30, 0, 0, time.UTC)
	b := &entity.DirectDebitBatch{
		ID:             "b1",
		MessageID:      "BATCH-4c0e2f6a",
		GeneratedAt:    &gen,
		CollectionDate: time.Date(2026, 9, 5, 0, 0, 0, 0, time.UTC),
		Status:         entity.BatchValidated,
		Currency:       "EUR",
		Entries:        entries,
	}
	b.CalculateTotals()
	return b
}

func parseDoc(t *testing.T, raw []byte) *etree.Element {
	t.Helper()
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(raw))
	root := doc.FindElement("//CstmrDrctDbtInitn")
	require.NotNil(t, root)
	return root
}

func text(t *testing.T, parent *etree.Element, path string) string {
	t.Helper()
	el := parent.FindElement(path)
	require.NotNil(t, el, "falta el elemento %s", path)
	return el.Text()
}

// FRST y RCUR en el mismo lote: un PmtInf por tipo de secuencia, cada uno con
// sus propios totales, y el GrpHdr con los totales del archivo completo.
func TestEncode_BloquesPorTipoDeSecuencia(t *testing.T) {
	b := generatedBatch(
		entry("001", "12.50", entity.SeqFirst),
		entry("002", "7.25", entity.SeqRecurring),
		entry("003", "100.00", entity.SeqRecurring),
	)

	raw, err := painxml.NewBuilder(testCreditor).Encode(b)
	require.NoError(t, err)
	root := parseDoc(t, raw)

	// Cabecera del grupo.
	assert.Equal(t, "BATCH-4c0e2f6a", text(t, root, "GrpHdr/MsgId"))
	assert.Equal(t, "2026-08-26T10:30:00", text(t, root, "GrpHdr/CreDtTm"))
	assert.Equal(t, "3", text(t, root, "GrpHdr/NbOfTxs"))
	assert.Equal(t, "119.75", text(t, root, "GrpHdr/CtrlSum"))
	assert.Equal(t, testCreditor.Name, text(t, root, "GrpHdr/InitgPty/Nm"))

	blocks := root.FindElements("PmtInf")
	require.Len(t, blocks, 2)

	// Orden determinista: FRST antes que RCUR.
	frst, rcur := blocks[0], blocks[1]
	assert.Equal(t, "FRST", text(t, frst, "PmtTpInf/SeqTp"))
	assert.Equal(t, "1", text(t, frst, "NbOfTxs"))
	assert.Equal(t, "12.50", text(t, frst, "CtrlSum"))
	assert.Equal(t, "BATCH-4c0e2f6a-FRST-01", text(t, frst, "PmtInfId"))

	assert.Equal(t, "RCUR", text(t, rcur, "PmtTpInf/SeqTp"))
	assert.Equal(t, "2", text(t, rcur, "NbOfTxs"))
	assert.Equal(t, "107.25", text(t, rcur, "CtrlSum"))
	assert.Equal(t, "BATCH-4c0e2f6a-RCUR-02", text(t, rcur, "PmtInfId"))

	// Campos fijos del esquema CORE.
	for _, blk := range blocks {
		assert.Equal(t, "DD", text(t, blk, "PmtMtd"))
		assert.Equal(t, "SEPA", text(t, blk, "PmtTpInf/SvcLvl/Cd"))
		assert.Equal(t, "CORE", text(t, blk, "PmtTpInf/LclInstrm/Cd"))
		assert.Equal(t, "SLEV", text(t, blk, "ChrgBr"))
		assert.Equal(t, "2026-09-05", text(t, blk, "ReqdColltnDt"))
		assert.Equal(t, testCreditor.ID, text(t, blk, "CdtrSchmeId/Id/PrvtId/Othr/Id"))
		assert.Equal(t, "SEPA", text(t, blk, "CdtrSchmeId/Id/PrvtId/Othr/SchmeNm/Prtry"))
		assert.Equal(t, testCreditor.IBAN, text(t, blk, "CdtrAcct/Id/IBAN"))
		assert.Equal(t, testCreditor.BIC, text(t, blk, "CdtrAgt/FinInstnId/BIC"))
	}
}

func TestEncode_TransaccionCompleta(t *testing.T) {
	b := generatedBatch(entry("001", "12.50", entity.SeqFirst))
	raw, err := painxml.NewBuilder(testCreditor).Encode(b)
	require.NoError(t, err)
	root := parseDoc(t, raw)

	tx := root.FindElement("PmtInf/DrctDbtTxInf")
	require.NotNil(t, tx)
	assert.Equal(t, "E2E-001", text(t, tx, "PmtId/EndToEndId"))
	assert.Equal(t, "12.50", text(t, tx, "InstdAmt"))
	assert.Equal(t, "EUR", tx.FindElement("InstdAmt").SelectAttrValue("Ccy", ""))
	assert.Equal(t, "MNDT-2026-001", text(t, tx, "DrctDbtTx/MndtRltdInf/MndtId"))
	assert.Equal(t, "2024-01-15", text(t, tx, "DrctDbtTx/MndtRltdInf/DtOfSgntr"))
	assert.Equal(t, "ABNANL2A", text(t, tx, "DbtrAgt/FinInstnId/BIC"))
	assert.Equal(t, "Jan de Vries", text(t, tx, "Dbtr/Nm"))
	assert.Equal(t, "NL91ABNA0417164300", text(t, tx, "DbtrAcct/Id/IBAN"))
	assert.Equal(t, "Factura 001", text(t, tx, "RmtInf/Ustrd"))
}

func TestEncode_NamespaceDelDocumento(t *testing.T) {
	b := generatedBatch(entry("001", "12.50", entity.SeqFirst))
	raw, err := painxml.NewBuilder(testCreditor).Encode(b)
	require.NoError(t, err)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(raw))
	root := doc.Root()
	require.NotNil(t, root)
	assert.Equal(t, "Document", root.Tag)
	assert.Equal(t, painxml.NsPain008, root.SelectAttrValue("xmlns", ""))
}

// Los montos siempre salen con dos decimales, también los enteros.
func TestEncode_MontosConDosDecimales(t *testing.T) {
	b := generatedBatch(entry("001", "100", entity.SeqOneOff))
	raw, err := painxml.NewBuilder(testCreditor).Encode(b)
	require.NoError(t, err)
	root := parseDoc(t, raw)
	assert.Equal(t, "100.00", text(t, root, "PmtInf/DrctDbtTxInf/InstdAmt"))
	assert.Equal(t, "100.00", text(t, root, "GrpHdr/CtrlSum"))
}

func TestEncode_ReencodearEsByteIdentico(t *testing.T) {
	b := generatedBatch(
		entry("001", "12.50", entity.SeqFirst),
		entry("002", "7.25", entity.SeqRecurring),
	)
	builder := painxml.NewBuilder(testCreditor)

	first, err := builder.Encode(b)
	require.NoError(t, err)
	second, err := builder.Encode(b)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestEncode_ContratoRoto(t *testing.T) {
	builder := painxml.NewBuilder(testCreditor)

	t.Run("lote nulo", func(t *testing.T) {
		_, err := builder.Encode(nil)
		assert.ErrorIs(t, err, domain.ErrEncodingContract)
	})

	t.Run("sin MessageID", func(t *testing.T) {
		b := generatedBatch(entry("001", "12.50", entity.SeqFirst))
		b.MessageID = ""
		_, err := builder.Encode(b)
		assert.ErrorIs(t, err, domain.ErrEncodingContract)
	})

	t.Run("sin timestamp de generación", func(t *testing.T) {
		b := generatedBatch(entry("001", "12.50", entity.SeqFirst))
		b.GeneratedAt = nil
		_, err := builder.Encode(b)
		assert.ErrorIs(t, err, domain.ErrEncodingContract)
	})

	t.Run("sin entradas", func(t *testing.T) {
		b := generatedBatch()
		_, err := builder.Encode(b)
		assert.ErrorIs(t, err, domain.ErrEncodingContract)
	})

	t.Run("entrada sin IBAN", func(t *testing.T) {
		e := entry("001", "12.50", entity.SeqFirst)
		e.IBAN = ""
		_, err := builder.Encode(generatedBatch(e))
		assert.ErrorIs(t, err, domain.ErrEncodingContract)
	})

	t.Run("monto no positivo", func(t *testing.T) {
		e := entry("001", "0", entity.SeqFirst)
		_, err := builder.Encode(generatedBatch(e))
		assert.ErrorIs(t, err, domain.ErrEncodingContract)
	})

	t.Run("sin fecha de firma", func(t *testing.T) {
		e := entry("001", "12.50", entity.SeqFirst)
		e.SignDate = time.Time{}
		_, err := builder.Encode(generatedBatch(e))
		assert.ErrorIs(t, err, domain.ErrEncodingContract)
	})

	t.Run("acreedor incompleto", func(t *testing.T) {
		incomplete := testCreditor
		incomplete.ID = ""
		_, err := painxml.NewBuilder(incomplete).Encode(generatedBatch(entry("001", "12.50", entity.SeqFirst)))
		assert.ErrorIs(t, err, domain.ErrEncodingContract)
	})
}
