package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/billforge/invoicing-api/internal/application/billing"
	"github.com/billforge/invoicing-api/internal/application/dto"
	"github.com/billforge/invoicing-api/internal/domain"
)

// DraftHandler handles the draft lifecycle endpoints (protected).
type DraftHandler struct {
	uc *billing.DraftUseCase
}

// NewDraftHandler builds the handler.
func NewDraftHandler(uc *billing.DraftUseCase) *DraftHandler {
	return &DraftHandler{uc: uc}
}

// draftError maps domain sentinels shared by every draft endpoint.
func draftError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrInvalidLineItem):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "invalid draft payload"})
	case errors.Is(err, domain.ErrMissingJurisdiction):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "MISSING_JURISDICTION", Message: "seller and buyer state are required"})
	case errors.Is(err, domain.ErrUnauthorized):
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "invalid token"})
	case errors.Is(err, domain.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Code: "FORBIDDEN", Message: "access denied"})
	case errors.Is(err, domain.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "draft not found"})
	case errors.Is(err, domain.ErrDraftSubmitted):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "ALREADY_SUBMITTED", Message: "draft was already submitted"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
}

// Create stores a new draft and assigns its identifier.
// POST /api/drafts
func (h *DraftHandler) Create(c *fiber.Ctx) error {
	ownerID := GetUserID(c)
	if ownerID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "invalid token"})
	}
	var in dto.SaveDraftRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "invalid body"})
	}
	env, err := h.uc.CreateDraft(c.Context(), ownerID, in)
	if err != nil {
		return draftError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(env)
}

// Update merges a partial update into an existing draft's payload.
// PATCH /api/drafts/:id
func (h *DraftHandler) Update(c *fiber.Ctx) error {
	ownerID := GetUserID(c)
	if ownerID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "invalid token"})
	}
	id := c.Params("id")
	var in dto.PatchDraftRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "invalid body"})
	}
	env, err := h.uc.UpdateDraft(c.Context(), ownerID, id, in)
	if err != nil {
		return draftError(c, err)
	}
	return c.JSON(env)
}

// GetByID fetches a draft envelope.
// GET /api/drafts/:id
func (h *DraftHandler) GetByID(c *fiber.Ctx) error {
	ownerID := GetUserID(c)
	if ownerID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "invalid token"})
	}
	env, err := h.uc.GetDraft(c.Context(), ownerID, c.Params("id"))
	if err != nil {
		return draftError(c, err)
	}
	return c.JSON(env)
}

// Delete discards a draft.
// DELETE /api/drafts/:id
func (h *DraftHandler) Delete(c *fiber.Ctx) error {
	ownerID := GetUserID(c)
	if ownerID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "invalid token"})
	}
	if err := h.uc.DeleteDraft(c.Context(), ownerID, c.Params("id")); err != nil {
		return draftError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// List pages through the owner's drafts, most recently updated first.
// GET /api/drafts
func (h *DraftHandler) List(c *fiber.Ctx) error {
	ownerID := GetUserID(c)
	if ownerID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "invalid token"})
	}
	var page dto.PageRequest
	if err := c.QueryParser(&page); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "invalid pagination"})
	}
	out, err := h.uc.ListDrafts(c.Context(), ownerID, page)
	if err != nil {
		return draftError(c, err)
	}
	return c.JSON(out)
}

// Submit finalizes a draft into an invoice. One-way.
// POST /api/drafts/:id/submit
func (h *DraftHandler) Submit(c *fiber.Ctx) error {
	ownerID := GetUserID(c)
	if ownerID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "invalid token"})
	}
	out, err := h.uc.SubmitDraft(c.Context(), ownerID, c.Params("id"))
	if err != nil {
		return draftError(c, err)
	}
	return c.JSON(out)
}

// CalculateTax authoritative stateless tax computation.
// POST /api/invoices/calculate-tax
func (h *DraftHandler) CalculateTax(c *fiber.Ctx) error {
	var in dto.CalculateTaxRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "invalid body"})
	}
	out, err := h.uc.CalculateTax(c.Context(), in)
	if err != nil {
		return draftError(c, err)
	}
	return c.JSON(out)
}

// GetCustomer customer lookup for the draft flow's buyer merge.
// GET /api/customers/:id
func (h *DraftHandler) GetCustomer(c *fiber.Ctx) error {
	ownerID := GetUserID(c)
	if ownerID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "invalid token"})
	}
	out, err := h.uc.GetCustomer(c.Context(), ownerID, c.Params("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "customer not found"})
		}
		return draftError(c, err)
	}
	return c.JSON(out)
}
