package listings

import (
	"encoding/json"
	"errors"

	normsvc "carmatch-backend/internal/application/normalizer"
	"carmatch-backend/internal/domain"
	"carmatch-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type Handlers struct {
	Service *normsvc.Service
}

// POST /api/v1/listings/ingest-listing
func (h *Handlers) IngestListing(c *fiber.Ctx) error {
	var raw normsvc.RawListing
	if err := json.Unmarshal(c.Body(), &raw); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	outcome, err := h.Service.Ingest(c.Context(), raw)
	if err != nil {
		// Ambiguity is reported, not failed: the listing is persisted and
		// eligible for rematch once the catalog can disambiguate it.
		if errors.Is(err, domain.ErrAmbiguousMatch) {
			return response.SuccessCreated(c, "Listing ingested but match is ambiguous", outcome, nil)
		}
		return response.FromError(c, err)
	}
	return response.SuccessCreated(c, "Listing ingested successfully", outcome, nil)
}

// POST /api/v1/listings/rematch
func (h *Handlers) Rematch(c *fiber.Ctx) error {
	force := c.QueryBool("force")
	stats, err := h.Service.RematchAll(c.Context(), force)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Rematch completed", stats, fiber.Map{"force": force})
}

// GET /api/v1/listings/match-stats
func (h *Handlers) MatchStats(c *fiber.Ctx) error {
	stats, err := h.Service.Stats(c.Context())
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Match stats fetched successfully", stats, nil)
}

// GET /api/v1/listings/:listing_id/events
func (h *Handlers) Events(c *fiber.Ctx) error {
	idStr := c.Params("listing_id")
	if _, err := uuid.Parse(idStr); err != nil {
		return response.Error(c, "Invalid listing_id format", fiber.StatusBadRequest, nil)
	}
	events, err := h.Service.Events(c.Context(), idStr)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Listing events fetched successfully", events, nil)
}
