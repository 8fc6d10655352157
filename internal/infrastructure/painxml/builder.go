// Package painxml serializa lotes validados al esquema ISO 20022
// pain.008.001.02 (Customer Direct Debit Initiation) e inspecciona los
// archivos emitidos. El namespace y la estructura de bloques son la
// superficie de compatibilidad bit-exacta: los bancos rechazan de plano un
// archivo no conforme.
package painxml

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tu-usuario/sepa-incasso/internal/domain"
	"github.com/tu-usuario/sepa-incasso/internal/domain/entity"
)

// Namespaces del esquema pain.008.001.02.
const (
	NsPain008 = "urn:iso:std:iso:20022:tech:xsd:pain.008.001.02"
	nsXsi     = "http://www.w3.org/2001/XMLSchema-instance"

	schemaLocation = "urn:iso:std:iso:20022:tech:xsd:pain.008.001.02 pain.008.001.02.xsd"
)

// CreditorConfig datos del acreedor (incassant) que encabezan cada bloque.
type CreditorConfig struct {
	Name string // titular de la cuenta (InitgPty/Cdtr)
	IBAN string
	BIC  string
	ID   string // Incassant ID (CdtrSchmeId)
}

// Builder encoder pain.008.001.02. Asume entrada ya validada (4.4): cualquier
// campo requerido faltante es una violación de contrato del programa y el
// encoder falla de inmediato en lugar de emitir XML parcial.
type Builder struct {
	creditor CreditorConfig
}

// NewBuilder construye el encoder con los datos del acreedor.
func NewBuilder(creditor CreditorConfig) *Builder {
	return &Builder{creditor: creditor}
}

// paymentBlock agrupa entradas por (tipo de secuencia, fecha de cobro): SEPA
// exige un PmtInf por combinación para que el banco procese el lote correcto.
type paymentBlock struct {
	seq     entity.SequenceType
	date    time.Time
	entries []*entity.BatchEntry
}

// Encode emite el documento completo: un CstmrDrctDbtInitn con un PmtInf por
// grupo y una transacción por entrada. Encodear dos veces el mismo lote
// produce bytes idénticos: el único timestamp (CreDtTm) viene cacheado en el
// lote, nunca del reloj de pared.
func (b *Builder) Encode(batch *entity.DirectDebitBatch) ([]byte, error) {
	if err := b.checkContract(batch); err != nil {
		return nil, err
	}

	blocks := groupEntries(batch)

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")

	root := xml.StartElement{
		Name: xml.Name{Local: "Document"},
		Attr: []xml.Attr{
			{Name: xml.Name{Local: "xmlns"}, Value: NsPain008},
			{Name: xml.Name{Local: "xmlns:xsi"}, Value: nsXsi},
			{Name: xml.Name{Local: "xsi:schemaLocation"}, Value: schemaLocation},
		},
	}
	if err := enc.EncodeToken(root); err != nil {
		return nil, err
	}
	open(enc, "CstmrDrctDbtInitn")

	// ---- GrpHdr: totales de todo el mensaje, siempre recomputados.
	total := decimal.Zero
	for _, e := range batch.Entries {
		total = total.Add(e.Amount)
	}
	open(enc, "GrpHdr")
	writeEl(enc, "MsgId", batch.MessageID)
	writeEl(enc, "CreDtTm", batch.GeneratedAt.UTC().Format("2006-01-02T15:04:05"))
	writeEl(enc, "NbOfTxs", fmt.Sprintf("%d", len(batch.Entries)))
	writeEl(enc, "CtrlSum", total.StringFixed(2))
	open(enc, "InitgPty")
	writeEl(enc, "Nm", b.creditor.Name)
	closeEl(enc, "InitgPty")
	closeEl(enc, "GrpHdr")

	for i, blk := range blocks {
		if err := b.writePaymentBlock(enc, batch, blk, i+1); err != nil {
			return nil, err
		}
	}

	closeEl(enc, "CstmrDrctDbtInitn")
	if err := enc.EncodeToken(root.End()); err != nil {
		return nil, err
	}
	if err := enc.Flush(); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// writePaymentBlock emite un PmtInf con sus transacciones.
func (b *Builder) writePaymentBlock(enc *xml.Encoder, batch *entity.DirectDebitBatch, blk paymentBlock, n int) error {
	sum := decimal.Zero
	for _, e := range blk.entries {
		sum = sum.Add(e.Amount)
	}

	open(enc, "PmtInf")
	writeEl(enc, "PmtInfId", fmt.Sprintf("%s-%s-%02d", batch.MessageID, blk.seq, n))
	writeEl(enc, "PmtMtd", "DD")
	writeEl(enc, "BtchBookg", "true")
	writeEl(enc, "NbOfTxs", fmt.Sprintf("%d", len(blk.entries)))
	writeEl(enc, "CtrlSum", sum.StringFixed(2))

	open(enc, "PmtTpInf")
	open(enc, "SvcLvl")
	writeEl(enc, "Cd", "SEPA")
	closeEl(enc, "SvcLvl")
	open(enc, "LclInstrm")
	writeEl(enc, "Cd", "CORE")
	closeEl(enc, "LclInstrm")
	writeEl(enc, "SeqTp", string(blk.seq))
	closeEl(enc, "PmtTpInf")

	writeEl(enc, "ReqdColltnDt", blk.date.Format("2006-01-02"))

	open(enc, "Cdtr")
	writeEl(enc, "Nm", b.creditor.Name)
	closeEl(enc, "Cdtr")
	open(enc, "CdtrAcct")
	open(enc, "Id")
	writeEl(enc, "IBAN", b.creditor.IBAN)
	closeEl(enc, "Id")
	closeEl(enc, "CdtrAcct")
	open(enc, "CdtrAgt")
	open(enc, "FinInstnId")
	writeEl(enc, "BIC", b.creditor.BIC)
	closeEl(enc, "FinInstnId")
	closeEl(enc, "CdtrAgt")
	writeEl(enc, "ChrgBr", "SLEV")

	open(enc, "CdtrSchmeId")
	open(enc, "Id")
	open(enc, "PrvtId")
	open(enc, "Othr")
	writeEl(enc, "Id", b.creditor.ID)
	open(enc, "SchmeNm")
	writeEl(enc, "Prtry", "SEPA")
	closeEl(enc, "SchmeNm")
	closeEl(enc, "Othr")
	closeEl(enc, "PrvtId")
	closeEl(enc, "Id")
	closeEl(enc, "CdtrSchmeId")

	for _, e := range blk.entries {
		open(enc, "DrctDbtTxInf")
		open(enc, "PmtId")
		writeEl(enc, "EndToEndId", "E2E-"+e.InvoiceID)
		closeEl(enc, "PmtId")

		_ = enc.EncodeToken(xml.StartElement{
			Name: xml.Name{Local: "InstdAmt"},
			Attr: []xml.Attr{{Name: xml.Name{Local: "Ccy"}, Value: e.Currency}},
		})
		_ = enc.EncodeToken(xml.CharData(e.Amount.StringFixed(2)))
		_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: "InstdAmt"}})

		open(enc, "DrctDbtTx")
		open(enc, "MndtRltdInf")
		writeEl(enc, "MndtId", e.MandateID)
		writeEl(enc, "DtOfSgntr", e.SignDate.Format("2006-01-02"))
		closeEl(enc, "MndtRltdInf")
		closeEl(enc, "DrctDbtTx")

		open(enc, "DbtrAgt")
		open(enc, "FinInstnId")
		writeEl(enc, "BIC", e.BIC)
		closeEl(enc, "FinInstnId")
		closeEl(enc, "DbtrAgt")

		open(enc, "Dbtr")
		writeEl(enc, "Nm", e.DebtorName)
		closeEl(enc, "Dbtr")
		open(enc, "DbtrAcct")
		open(enc, "Id")
		writeEl(enc, "IBAN", e.IBAN)
		closeEl(enc, "Id")
		closeEl(enc, "DbtrAcct")

		open(enc, "RmtInf")
		writeEl(enc, "Ustrd", fmt.Sprintf("Factura %s", e.InvoiceID))
		closeEl(enc, "RmtInf")
		closeEl(enc, "DrctDbtTxInf")
	}

	closeEl(enc, "PmtInf")
	return nil
}

// checkContract verifica las precondiciones que el Validator (4.4) garantiza.
// Romperlas aquí es un bug del programa, no un dato corregible.
func (b *Builder) checkContract(batch *entity.DirectDebitBatch) error {
	fail := func(format string, args ...interface{}) error {
		return fmt.Errorf("%w: "+format, append([]interface{}{domain.ErrEncodingContract}, args...)...)
	}
	if batch == nil {
		return fail("lote nulo")
	}
	if batch.MessageID == "" || batch.GeneratedAt == nil {
		return fail("lote %s sin MessageID o timestamp de generación", batch.ID)
	}
	if len(batch.Entries) == 0 {
		return fail("lote %s sin entradas", batch.ID)
	}
	if b.creditor.Name == "" || b.creditor.IBAN == "" || b.creditor.BIC == "" || b.creditor.ID == "" {
		return fail("configuración de acreedor incompleta")
	}
	for _, e := range batch.Entries {
		if e.MandateID == "" || e.IBAN == "" || e.BIC == "" || e.DebtorName == "" {
			return fail("entrada %s (factura %s) con campos requeridos vacíos", e.ID, e.InvoiceID)
		}
		if !e.Amount.GreaterThan(decimal.Zero) {
			return fail("entrada %s con monto no positivo %s", e.ID, e.Amount)
		}
		if e.SignDate.IsZero() {
			return fail("entrada %s sin fecha de firma", e.ID)
		}
	}
	return nil
}

// groupEntries agrupa por (tipo de secuencia, fecha de cobro) en orden
// determinista: secuencia alfabética y luego fecha.
func groupEntries(batch *entity.DirectDebitBatch) []paymentBlock {
	type key struct {
		seq  entity.SequenceType
		date string
	}
	grouped := make(map[key][]*entity.BatchEntry)
	for _, e := range batch.Entries {
		k := key{seq: e.SequenceType, date: batch.CollectionDate.Format("2006-01-02")}
		grouped[k] = append(grouped[k], e)
	}
	keys := make([]key, 0, len(grouped))
	for k := range grouped {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].seq != keys[j].seq {
			return keys[i].seq < keys[j].seq
		}
		return keys[i].date < keys[j].date
	})
	blocks := make([]paymentBlock, 0, len(keys))
	for _, k := range keys {
		entries := grouped[k]
		sort.Slice(entries, func(i, j int) bool { return entries[i].InvoiceID < entries[j].InvoiceID })
		date, _ := time.Parse("2006-01-02", k.date)
		blocks = append(blocks, paymentBlock{seq: k.seq, date: date, entries: entries})
	}
	return blocks
}

func open(enc *xml.Encoder, local string) {
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: local}})
}

func closeEl(enc *xml.Encoder, local string) {
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: local}})
}

func writeEl(enc *xml.Encoder, local, value string) {
	open(enc, local)
	_ = enc.EncodeToken(xml.CharData(value))
	closeEl(enc, local)
}
