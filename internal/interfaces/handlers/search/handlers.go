package search

import (
	"encoding/json"

	searchsvc "carmatch-backend/internal/application/search"
	"carmatch-backend/internal/domain"
	"carmatch-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Service *searchsvc.Service
}

type matchRequest struct {
	Profile domain.PreferenceProfile `json:"profile"`
	Limit   int                      `json:"limit"`
}

type refineRequest struct {
	Profile   domain.PreferenceProfile `json:"profile"`
	Directive string                   `json:"directive"`
	Limit     int                      `json:"limit"`
}

// POST /api/v1/search/match
func (h *Handlers) Match(c *fiber.Ctx) error {
	var body matchRequest
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	result, err := h.Service.Match(c.Context(), body.Profile, body.Limit)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Matches computed successfully", result, fiber.Map{"cached": result.Cached})
}

// POST /api/v1/search/refine
func (h *Handlers) Refine(c *fiber.Ctx) error {
	var body refineRequest
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	if body.Directive == "" {
		return response.Error(c, "directive is required", fiber.StatusBadRequest, nil)
	}
	result, err := h.Service.Refine(c.Context(), body.Profile, body.Directive, body.Limit)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Refined matches computed successfully", result, fiber.Map{"directive": body.Directive})
}
