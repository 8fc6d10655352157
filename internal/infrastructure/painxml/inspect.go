package painxml

import (
	"fmt"
	"strconv"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"
	"github.com/tu-usuario/sepa-incasso/internal/domain"
)

// Inspector relee archivos pain.008 emitidos y verifica que las sumas de
// control declaradas coincidan con las transacciones. Se corre sobre cada
// archivo antes de marcarlo Submitted: un CtrlSum que no cuadra hace que el
// banco rechace el lote entero días después, cuando ya es caro corregirlo.
type Inspector struct{}

// NewInspector construye el inspector.
func NewInspector() *Inspector {
	return &Inspector{}
}

// BlockSummary resumen de un PmtInf leído del archivo.
type BlockSummary struct {
	PmtInfID     string
	SequenceType string
	CollectionDt string
	NbOfTxs      int
	CtrlSum      decimal.Decimal
	TxCount      int
	TxSum        decimal.Decimal
}

// FileSummary resumen del documento completo.
type FileSummary struct {
	MessageID string
	NbOfTxs   int
	CtrlSum   decimal.Decimal
	Blocks    []BlockSummary
}

// Summarize parsea el documento y acumula los totales declarados y reales.
func (i *Inspector) Summarize(raw []byte) (*FileSummary, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(raw); err != nil {
		return nil, fmt.Errorf("%w: XML ilegible: %v", domain.ErrEncodingContract, err)
	}
	initn := doc.FindElement("//CstmrDrctDbtInitn")
	if initn == nil {
		return nil, fmt.Errorf("%w: documento sin CstmrDrctDbtInitn", domain.ErrEncodingContract)
	}
	hdr := initn.FindElement("GrpHdr")
	if hdr == nil {
		return nil, fmt.Errorf("%w: documento sin GrpHdr", domain.ErrEncodingContract)
	}

	sum := &FileSummary{MessageID: elementText(hdr, "MsgId")}
	var err error
	if sum.NbOfTxs, err = strconv.Atoi(elementText(hdr, "NbOfTxs")); err != nil {
		return nil, fmt.Errorf("%w: GrpHdr/NbOfTxs inválido", domain.ErrEncodingContract)
	}
	if sum.CtrlSum, err = decimal.NewFromString(elementText(hdr, "CtrlSum")); err != nil {
		return nil, fmt.Errorf("%w: GrpHdr/CtrlSum inválido", domain.ErrEncodingContract)
	}

	for _, pmt := range initn.FindElements("PmtInf") {
		blk := BlockSummary{
			PmtInfID:     elementText(pmt, "PmtInfId"),
			SequenceType: elementText(pmt, "PmtTpInf/SeqTp"),
			CollectionDt: elementText(pmt, "ReqdColltnDt"),
			TxSum:        decimal.Zero,
		}
		if blk.NbOfTxs, err = strconv.Atoi(elementText(pmt, "NbOfTxs")); err != nil {
			return nil, fmt.Errorf("%w: PmtInf %s con NbOfTxs inválido", domain.ErrEncodingContract, blk.PmtInfID)
		}
		if blk.CtrlSum, err = decimal.NewFromString(elementText(pmt, "CtrlSum")); err != nil {
			return nil, fmt.Errorf("%w: PmtInf %s con CtrlSum inválido", domain.ErrEncodingContract, blk.PmtInfID)
		}
		for _, tx := range pmt.FindElements("DrctDbtTxInf") {
			amt, aerr := decimal.NewFromString(elementText(tx, "InstdAmt"))
			if aerr != nil {
				return nil, fmt.Errorf("%w: InstdAmt inválido en PmtInf %s", domain.ErrEncodingContract, blk.PmtInfID)
			}
			blk.TxCount++
			blk.TxSum = blk.TxSum.Add(amt)
		}
		sum.Blocks = append(sum.Blocks, blk)
	}
	return sum, nil
}

// VerifyControlSums falla si cualquier total declarado (global o por bloque)
// no coincide con la suma de sus transacciones.
func (i *Inspector) VerifyControlSums(raw []byte) error {
	sum, err := i.Summarize(raw)
	if err != nil {
		return err
	}

	totalTxs := 0
	totalSum := decimal.Zero
	for _, blk := range sum.Blocks {
		if blk.TxCount != blk.NbOfTxs {
			return fmt.Errorf("%w: PmtInf %s declara %d transacciones pero contiene %d",
				domain.ErrEncodingContract, blk.PmtInfID, blk.NbOfTxs, blk.TxCount)
		}
		if !blk.TxSum.Equal(blk.CtrlSum) {
			return fmt.Errorf("%w: PmtInf %s declara CtrlSum %s pero las transacciones suman %s",
				domain.ErrEncodingContract, blk.PmtInfID, blk.CtrlSum, blk.TxSum)
		}
		totalTxs += blk.TxCount
		totalSum = totalSum.Add(blk.TxSum)
	}
	if totalTxs != sum.NbOfTxs {
		return fmt.Errorf("%w: GrpHdr declara %d transacciones pero el archivo contiene %d",
			domain.ErrEncodingContract, sum.NbOfTxs, totalTxs)
	}
	if !totalSum.Equal(sum.CtrlSum) {
		return fmt.Errorf("%w: GrpHdr declara CtrlSum %s pero el archivo suma %s",
			domain.ErrEncodingContract, sum.CtrlSum, totalSum)
	}
	return nil
}

func elementText(parent *etree.Element, path string) string {
	el := parent.FindElement(path)
	if el == nil {
		return ""
	}
	return el.Text()
}
