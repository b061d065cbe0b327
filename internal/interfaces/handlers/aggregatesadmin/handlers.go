package aggregatesadmin

import (
	"encoding/json"

	aggsvc "carmatch-backend/internal/application/aggregates"
	catsvc "carmatch-backend/internal/application/catalog"
	"carmatch-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Aggregates *aggsvc.Service
	Catalog    *catsvc.Service
}

type rebuildRequest struct {
	RecordIDs []uint `json:"record_ids"`
	All       bool   `json:"all"`
}

// POST /api/v1/aggregates/rebuild
// Explicit record_ids rebuild just those; {"all": true} sweeps the whole
// active catalog; an empty body rebuilds only dirty profiles.
func (h *Handlers) Rebuild(c *fiber.Ctx) error {
	var body rebuildRequest
	if len(c.Body()) > 0 {
		if err := json.Unmarshal(c.Body(), &body); err != nil {
			return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
		}
	}

	if len(body.RecordIDs) > 0 {
		if err := h.Aggregates.RebuildAll(c.Context(), body.RecordIDs); err != nil {
			return response.FromError(c, err)
		}
		return response.Success(c, "Profiles rebuilt", fiber.Map{"rebuilt": len(body.RecordIDs)}, nil)
	}

	if body.All {
		records, err := h.Catalog.ActiveRecords(c.Context())
		if err != nil {
			return response.FromError(c, err)
		}
		ids := make([]uint, 0, len(records))
		for _, r := range records {
			ids = append(ids, r.ID)
		}
		if err := h.Aggregates.RebuildAll(c.Context(), ids); err != nil {
			return response.FromError(c, err)
		}
		return response.Success(c, "All profiles rebuilt", fiber.Map{"rebuilt": len(ids)}, nil)
	}

	ids, err := h.Aggregates.RebuildDirty(c.Context())
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Dirty profiles rebuilt", fiber.Map{"rebuilt": len(ids), "record_ids": ids}, nil)
}
