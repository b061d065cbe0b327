package catalog

import (
	"encoding/json"
	"errors"
	"strconv"

	catsvc "carmatch-backend/internal/application/catalog"
	"carmatch-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Service *catsvc.Service
}

// POST /api/v1/catalog/create-record
func (h *Handlers) CreateRecord(c *fiber.Ctx) error {
	var input catsvc.CreateRecordInput
	if err := json.Unmarshal(c.Body(), &input); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	record, err := h.Service.CreateRecord(c.Context(), input)
	if err != nil {
		if errors.Is(err, catsvc.ErrDuplicateRecord) {
			return response.Error(c, err.Error(), fiber.StatusConflict, nil)
		}
		return response.FromError(c, err)
	}
	return response.SuccessCreated(c, "Catalog record created successfully", record, nil)
}

// GET /api/v1/catalog/search
func (h *Handlers) Search(c *fiber.Ctx) error {
	filter := catsvc.SearchFilter{
		Make:       c.Query("make"),
		Model:      c.Query("model"),
		BodyType:   c.Query("body_type"),
		Drivetrain: c.Query("drivetrain"),
		YearMin:    c.QueryInt("year_min"),
		YearMax:    c.QueryInt("year_max"),
		PriceMax:   c.QueryInt("price_max"),
		Page:       c.QueryInt("page", 1),
		PageSize:   c.QueryInt("page_size", 20),
	}
	results, total, err := h.Service.Search(c.Context(), filter)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Catalog search completed", results, fiber.Map{
		"total":     total,
		"page":      filter.Page,
		"page_size": filter.PageSize,
	})
}

// GET /api/v1/catalog/makes
func (h *Handlers) Makes(c *fiber.Ctx) error {
	makes, err := h.Service.Makes(c.Context())
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Makes fetched successfully", makes, nil)
}

// GET /api/v1/catalog/models/:make
func (h *Handlers) Models(c *fiber.Ctx) error {
	makeName := c.Params("make")
	if makeName == "" {
		return response.Error(c, "make is required", fiber.StatusBadRequest, nil)
	}
	models, err := h.Service.Models(c.Context(), makeName)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Models fetched successfully", models, nil)
}

// GET /api/v1/catalog/stats
func (h *Handlers) Stats(c *fiber.Ctx) error {
	stats, err := h.Service.Stats(c.Context())
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Catalog stats fetched successfully", stats, nil)
}

// GET /api/v1/catalog/:record_id
func (h *Handlers) Get(c *fiber.Ctx) error {
	id, err := recordID(c)
	if err != nil {
		return response.Error(c, "Invalid record_id format", fiber.StatusBadRequest, nil)
	}
	detail, err := h.Service.Get(c.Context(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Record fetched successfully", detail, nil)
}

// POST /api/v1/catalog/:record_id/supersede
func (h *Handlers) Supersede(c *fiber.Ctx) error {
	id, err := recordID(c)
	if err != nil {
		return response.Error(c, "Invalid record_id format", fiber.StatusBadRequest, nil)
	}
	if err := h.Service.Supersede(c.Context(), id); err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Record superseded successfully", fiber.Map{"record_id": id}, nil)
}

func recordID(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("record_id"), 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid record_id")
	}
	return uint(id), nil
}
