package http

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/tu-usuario/sepa-incasso/internal/application/dto"
	"github.com/tu-usuario/sepa-incasso/internal/application/mandate"
	"github.com/tu-usuario/sepa-incasso/internal/domain"
	"github.com/tu-usuario/sepa-incasso/internal/domain/entity"
)

// MandateHandler maneja el ciclo de vida de mandatos.
type MandateHandler struct {
	uc *mandate.UseCase
}

// NewMandateHandler construye el handler.
func NewMandateHandler(uc *mandate.UseCase) *MandateHandler {
	return &MandateHandler{uc: uc}
}

// Create da de alta un mandato en borrador.
// POST /api/mandates
func (h *MandateHandler) Create(c *fiber.Ctx) error {
	var in dto.CreateMandateRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	m, err := h.uc.CreateDraft(c.Context(), in.MemberID, in.HolderName, in.IBAN, in.BIC, in.OneOff)
	if err != nil {
		return mandateError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toMandateResponse(m))
}

// Activate registra la firma: fija mandate_id y pasa a Active.
// POST /api/mandates/:id/activate
func (h *MandateHandler) Activate(c *fiber.Ctx) error {
	var in dto.ActivateMandateRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	signDate, err := time.Parse("2006-01-02", in.SignDate)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "sign_date debe ser YYYY-MM-DD"})
	}
	m, err := h.uc.Activate(c.Context(), c.Params("id"), in.MandateID, signDate)
	if err != nil {
		return mandateError(c, err)
	}
	return c.JSON(toMandateResponse(m))
}

// Suspend pausa temporalmente el mandato.
// POST /api/mandates/:id/suspend
func (h *MandateHandler) Suspend(c *fiber.Ctx) error {
	if err := h.uc.Suspend(c.Context(), c.Params("id")); err != nil {
		return mandateError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Resume reactiva un mandato suspendido.
// POST /api/mandates/:id/resume
func (h *MandateHandler) Resume(c *fiber.Ctx) error {
	if err := h.uc.Resume(c.Context(), c.Params("id")); err != nil {
		return mandateError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Cancel revoca el mandato de forma definitiva.
// POST /api/mandates/:id/cancel
func (h *MandateHandler) Cancel(c *fiber.Ctx) error {
	if err := h.uc.Cancel(c.Context(), c.Params("id")); err != nil {
		return mandateError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetByID vista del mandato.
// GET /api/mandates/:id
func (h *MandateHandler) GetByID(c *fiber.Ctx) error {
	m, err := h.uc.GetByID(c.Context(), c.Params("id"))
	if err != nil {
		return mandateError(c, err)
	}
	return c.JSON(toMandateResponse(m))
}

func mandateError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "mandato no encontrado"})
	case errors.Is(err, domain.ErrInvalidTransition):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "INVALID_TRANSITION", Message: err.Error()})
	case errors.Is(err, domain.ErrDuplicate):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "DUPLICATE", Message: err.Error()})
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrValidation):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
}

func toMandateResponse(m *entity.Mandate) dto.MandateResponse {
	resp := dto.MandateResponse{
		ID:        m.ID,
		MandateID: m.MandateID,
		MemberID:  m.MemberID,
		IBAN:      m.IBAN,
		BIC:       m.BIC,
		Type:      string(m.Type),
		Status:    string(m.Status),
	}
	if m.SignDate != nil {
		resp.SignDate = m.SignDate.Format("2006-01-02")
	}
	return resp
}
