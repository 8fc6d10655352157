package http

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/tu-usuario/sepa-incasso/internal/application/batch"
	"github.com/tu-usuario/sepa-incasso/internal/application/dto"
	"github.com/tu-usuario/sepa-incasso/internal/domain"
	"github.com/tu-usuario/sepa-incasso/internal/domain/entity"
	"github.com/tu-usuario/sepa-incasso/internal/domain/repository"
)

// BatchHandler maneja el ciclo completo del lote: preview, asignación,
// validación, generación del XML y callbacks bancarios.
type BatchHandler struct {
	selector  *batch.EligibilitySelector
	allocator *batch.Allocator
	validator *batch.Validator
	lifecycle *batch.LifecycleController
}

// NewBatchHandler construye el handler.
func NewBatchHandler(
	selector *batch.EligibilitySelector,
	allocator *batch.Allocator,
	validator *batch.Validator,
	lifecycle *batch.LifecycleController,
) *BatchHandler {
	return &BatchHandler{
		selector:  selector,
		allocator: allocator,
		validator: validator,
		lifecycle: lifecycle,
	}
}

// Preview corre el selector de elegibilidad sin asignar nada.
// GET /api/batches/preview?collection_date=YYYY-MM-DD&member_id=&chapter=&due_before=
func (h *BatchHandler) Preview(c *fiber.Ctx) error {
	collectionDate, err := time.Parse("2006-01-02", c.Query("collection_date"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "collection_date debe ser YYYY-MM-DD"})
	}
	filter := repository.InvoiceFilter{MemberID: c.Query("member_id"), Chapter: c.Query("chapter")}
	if due := c.Query("due_before"); due != "" {
		t, err := time.Parse("2006-01-02", due)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "due_before debe ser YYYY-MM-DD"})
		}
		filter.DueBefore = &t
	}

	selection, err := h.selector.Select(c.Context(), collectionDate, filter)
	if err != nil {
		return batchError(c, err)
	}

	resp := dto.PreviewResponse{CollectionDate: collectionDate.Format("2006-01-02")}
	for _, cand := range selection.Eligible {
		resp.Eligible = append(resp.Eligible, dto.PreviewCandidate{
			InvoiceID: cand.InvoiceID,
			MemberID:  cand.MemberID,
			MandateID: cand.MandateID,
			Amount:    cand.Amount,
			Currency:  cand.Currency,
			DueDate:   cand.DueDate.Format("2006-01-02"),
		})
	}
	for _, ex := range selection.Excluded {
		resp.Excluded = append(resp.Excluded, dto.PreviewExcluded{InvoiceID: ex.InvoiceID, Reason: ex.Reason})
	}
	return c.JSON(resp)
}

// Create asigna las facturas pedidas a un lote Draft nuevo.
// POST /api/batches
func (h *BatchHandler) Create(c *fiber.Ctx) error {
	var in dto.CreateBatchRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	collectionDate, err := time.Parse("2006-01-02", in.CollectionDate)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "collection_date debe ser YYYY-MM-DD"})
	}
	if len(in.InvoiceIDs) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "invoice_ids requerido"})
	}

	selection, err := h.selector.ResolveCandidates(c.Context(), in.InvoiceIDs)
	if err != nil {
		return batchError(c, err)
	}
	resp := dto.CreateBatchResponse{Requested: len(in.InvoiceIDs)}
	for _, ex := range selection.Excluded {
		resp.Dropped = append(resp.Dropped, dto.DroppedCandidate{InvoiceID: ex.InvoiceID, Reason: ex.Reason})
	}
	if len(selection.Eligible) == 0 {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(resp)
	}

	final := make(map[string]bool, len(in.FinalInvoices))
	for _, id := range in.FinalInvoices {
		final[id] = true
	}

	result, err := h.allocator.Allocate(c.Context(), selection.Eligible, collectionDate, final)
	if err != nil {
		return batchError(c, err)
	}
	for _, d := range result.Dropped {
		resp.Dropped = append(resp.Dropped, dto.DroppedCandidate{InvoiceID: d.InvoiceID, Reason: d.Reason})
	}
	resp.Claimed = result.Claimed()
	if result.Batch == nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(resp)
	}
	resp.BatchID = result.Batch.ID
	return c.Status(fiber.StatusCreated).JSON(resp)
}

// Validate corre la validación completa del lote Draft.
// POST /api/batches/:id/validate
func (h *BatchHandler) Validate(c *fiber.Ctx) error {
	report, err := h.validator.Validate(c.Context(), c.Params("id"))
	if err != nil {
		return batchError(c, err)
	}
	resp := dto.ValidationReportResponse{BatchID: c.Params("id"), Passed: report.Passed()}
	for _, v := range report.Violations {
		resp.Violations = append(resp.Violations, dto.ViolationResponse{
			EntryID:   v.EntryID,
			InvoiceID: v.InvoiceID,
			Code:      string(v.Code),
			Message:   v.Message,
		})
	}
	if !resp.Passed {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(resp)
	}
	return c.JSON(resp)
}

// GenerateXML emite el pain.008 y transiciona a Submitted. Regenerar un lote
// Submitted devuelve el mismo archivo byte a byte.
// POST /api/batches/:id/xml
func (h *BatchHandler) GenerateXML(c *fiber.Ctx) error {
	xml, err := h.lifecycle.GenerateXML(c.Context(), c.Params("id"))
	if err != nil {
		return batchError(c, err)
	}
	c.Set(fiber.HeaderContentType, "application/xml; charset=utf-8")
	return c.Send(xml)
}

// GetByID vista del lote con sus entradas.
// GET /api/batches/:id
func (h *BatchHandler) GetByID(c *fiber.Ctx) error {
	b, err := h.lifecycle.GetBatch(c.Context(), c.Params("id"))
	if err != nil {
		return batchError(c, err)
	}
	return c.JSON(toBatchResponse(b, true))
}

// List lotes por estado.
// GET /api/batches?status=Draft
func (h *BatchHandler) List(c *fiber.Ctx) error {
	status := entity.BatchStatus(c.Query("status", string(entity.BatchDraft)))
	list, err := h.lifecycle.ListByStatus(c.Context(), status)
	if err != nil {
		return batchError(c, err)
	}
	resp := make([]dto.BatchResponse, 0, len(list))
	for _, b := range list {
		resp = append(resp, toBatchResponse(b, false))
	}
	return c.JSON(resp)
}

// Cancel cancela un lote Draft o Validated y libera sus facturas.
// POST /api/batches/:id/cancel
func (h *BatchHandler) Cancel(c *fiber.Ctx) error {
	if err := h.lifecycle.Cancel(c.Context(), c.Params("id")); err != nil {
		return batchError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// SetBankStatus aplica el callback del banco (Processing, Completed, Failed).
// POST /api/batches/:id/status
func (h *BatchHandler) SetBankStatus(c *fiber.Ctx) error {
	var in struct {
		Status string `json:"status"`
	}
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	if err := h.lifecycle.SetBankStatus(c.Context(), c.Params("id"), entity.BatchStatus(in.Status)); err != nil {
		return batchError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func batchError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "lote no encontrado"})
	case errors.Is(err, domain.ErrInvalidTransition):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "INVALID_TRANSITION", Message: err.Error()})
	case errors.Is(err, domain.ErrConcurrencyConflict):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "CONCURRENCY_CONFLICT", Message: "conflicto de concurrencia, reintente con una lista fresca"})
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrValidation):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
	case errors.Is(err, domain.ErrEncodingContract):
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "ENCODING_CONTRACT", Message: err.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
}

func toBatchResponse(b *entity.DirectDebitBatch, withEntries bool) dto.BatchResponse {
	resp := dto.BatchResponse{
		ID:             b.ID,
		Status:         string(b.Status),
		CollectionDate: b.CollectionDate.Format("2006-01-02"),
		Currency:       b.Currency,
		TotalAmount:    b.TotalAmount,
		EntryCount:     b.EntryCount,
		MessageID:      b.MessageID,
	}
	if withEntries {
		for _, e := range b.Entries {
			resp.Entries = append(resp.Entries, dto.EntryResponse{
				ID:           e.ID,
				InvoiceID:    e.InvoiceID,
				MandateID:    e.MandateID,
				DebtorName:   e.DebtorName,
				IBAN:         e.IBAN,
				Amount:       e.Amount,
				Currency:     e.Currency,
				SequenceType: string(e.SequenceType),
				Status:       e.Status,
			})
		}
	}
	return resp
}
