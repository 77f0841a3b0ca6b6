package gamedata

import (
	"errors"
	"path"

	"gamedata-sync/core/logger"
	"gamedata-sync/core/retry"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for decoded game data.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the gamedata routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/gamedata")
	group.Get("/tables", h.HandleSummary)
	group.Get("/tables/:name", h.HandleTable)
	group.Get("/text/:hash", h.HandleText)
	group.Get("/assets/*", h.HandleAsset)
}

// HandleSummary describes the published snapshot.
// @Summary Snapshot Summary
// @Description Lists the tables, languages and assets of the published snapshot.
// @Tags gamedata
// @Produce json
// @Success 200 {object} gamedata.Summary "Snapshot summary"
// @Failure 503 {object} map[string]string "No snapshot yet"
// @Router /gamedata/tables [get]
func (h *Handler) HandleSummary(c *fiber.Ctx) error {
	sum, err := h.service.Summary()
	if errors.Is(err, ErrNoSnapshot) {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(sum)
}

// HandleTable returns one decoded table.
// @Summary Get Table
// @Description Returns a table from the published snapshot with canonical keys.
// @Tags gamedata
// @Produce json
// @Param name path string true "Table name (e.g. 'Weapon')"
// @Success 200 {object} interface{} "Decoded table"
// @Failure 404 {object} map[string]string "Not Found"
// @Router /gamedata/tables/{name} [get]
func (h *Handler) HandleTable(c *fiber.Ctx) error {
	name := c.Params("name")
	table, ok := h.service.Table(name)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "table " + name + " is not in the snapshot"})
	}
	return c.JSON(table)
}

// HandleText resolves a text-map hash.
// @Summary Resolve Text
// @Tags gamedata
// @Produce json
// @Param hash path string true "Text map hash"
// @Param lang query string false "Language (defaults to the first configured language)"
// @Success 200 {object} map[string]string "Resolved text"
// @Failure 400 {object} map[string]string "Bad Request"
// @Failure 404 {object} map[string]string "Not Found"
// @Router /gamedata/text/{hash} [get]
func (h *Handler) HandleText(c *fiber.Ctx) error {
	raw := c.Params("hash")
	hash, err := ParseHash(raw)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "hash must be a 64-bit integer"})
	}

	text, lang, ok := h.service.Text(c.Query("lang"), hash)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no text for hash " + raw + " in " + lang})
	}
	return c.JSON(fiber.Map{"hash": raw, "lang": lang, "text": text})
}

// HandleAsset serves a verified asset.
// @Summary Get Asset
// @Description Serves a manifest asset from the cache, fetching it again when the cached copy is corrupted.
// @Tags gamedata
// @Produce octet-stream
// @Param path path string true "Asset name"
// @Success 200 {file} binary "Asset"
// @Failure 404 {object} map[string]string "Not Found"
// @Failure 502 {object} map[string]string "Upstream failure"
// @Router /gamedata/assets/{path} [get]
func (h *Handler) HandleAsset(c *fiber.Ctx) error {
	name := c.Params("*")
	data, err := h.service.Asset(c.Context(), name)
	if err != nil {
		if retry.IsCategory(err, retry.CategoryNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
		}
		logger.WithRayID(h.service.logger, c).Error("Failed to serve asset",
			zap.String("asset", name),
			zap.String("category", string(retry.Classify(err))),
			zap.Error(err),
		)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}

	c.Type(path.Ext(name))
	return c.Send(data)
}
