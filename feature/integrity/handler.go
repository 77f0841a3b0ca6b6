package integrity

import (
	"errors"

	"gamedata-sync/core/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for integrity checks.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the integrity routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/integrity")
	group.Get("/", h.HandleIntegrityCheck)
	group.Get("/cache", h.HandleCacheCheck)
	group.Get("/templates", h.HandleTemplateCheck)
	group.Get("/structure", h.HandleStructureCheck)
	group.Get("/schema", h.HandleSchemaCheck)
}

func section(v any, err error) any {
	if errors.Is(err, ErrNotApplicable) {
		return fiber.Map{"status": "skipped"}
	}
	if err != nil {
		return fiber.Map{"status": "error", "error": err.Error()}
	}
	return v
}

// HandleIntegrityCheck runs every check.
// @Summary Run All Integrity Checks
// @Description Verifies the cache, the templates, the bucket layout and the history schema. With fix=true corrupted cache files are removed.
// @Tags integrity
// @Produce json
// @Param fix query boolean false "Remove corrupted cache files"
// @Success 200 {object} map[string]interface{} "Combined Report"
// @Router /integrity [get]
func (h *Handler) HandleIntegrityCheck(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)
	l.Info("Triggering all integrity checks")

	ctx := c.Context()
	report := make(map[string]any)

	cache, err := h.service.CheckCache(ctx, c.QueryBool("fix"))
	report["cache"] = section(cache, err)

	templates, err := h.service.CheckTemplates(ctx)
	report["templates"] = section(templates, err)

	missing, err := h.service.CheckStructure(ctx)
	report["structure"] = section(fiber.Map{"status": "checked", "missing": missing}, err)

	schema, err := h.service.CheckSchema()
	report["schema"] = section(schema, err)

	return c.JSON(report)
}

// HandleCacheCheck verifies the cache.
// @Summary Check Cache
// @Description Checks every cached table, text map and asset against its format markers. Optionally removes corrupted files so the next sync fetches them again.
// @Tags integrity
// @Produce json
// @Param fix query boolean false "Remove corrupted files"
// @Success 200 {object} synchronizer.Report "Cache Report"
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Router /integrity/cache [get]
func (h *Handler) HandleCacheCheck(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	report, err := h.service.CheckCache(c.Context(), c.QueryBool("fix"))
	if err != nil {
		l.Error("Cache check failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if !report.Healthy() {
		l.Warn("Cache problems detected",
			zap.Strings("corrupted", report.Corrupted),
			zap.Strings("missing", report.Missing),
			zap.Strings("removed", report.Removed),
		)
	}
	return c.JSON(report)
}

// HandleTemplateCheck verifies the templates.
// @Summary Check Templates
// @Description Verifies that every obfuscated table has a template that parses and compiles.
// @Tags integrity
// @Produce json
// @Success 200 {object} checks.TemplateReport "Template Report"
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Router /integrity/templates [get]
func (h *Handler) HandleTemplateCheck(c *fiber.Ctx) error {
	report, err := h.service.CheckTemplates(c.Context())
	if err != nil {
		logger.WithRayID(h.service.logger, c).Error("Template check failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(report)
}

// HandleStructureCheck checks and optionally fixes the bucket layout.
// @Summary Check Structure
// @Description Checks that the cache and template prefixes exist in the bucket. Optionally creates them.
// @Tags integrity
// @Produce json
// @Param fix query boolean false "Create missing prefixes"
// @Success 200 {object} map[string]interface{} "Structure Report"
// @Failure 404 {object} map[string]string "Not using the s3 backend"
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Router /integrity/structure [get]
func (h *Handler) HandleStructureCheck(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	missing, err := h.service.CheckStructure(c.Context())
	if errors.Is(err, ErrNotApplicable) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "cache does not use object storage"})
	}
	if err != nil {
		l.Error("Structure check failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	if len(missing) > 0 && c.QueryBool("fix") {
		l.Info("Attempting to fix missing prefixes", zap.Strings("missing", missing))
		if err := h.service.FixStructure(c.Context(), missing); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error":   "Failed to fix structure",
				"details": err.Error(),
				"missing": missing,
			})
		}
		return c.JSON(fiber.Map{"status": "fixed", "fixed": missing})
	}

	return c.JSON(fiber.Map{"status": "checked", "missing": missing})
}

// HandleSchemaCheck compares the history table with its model.
// @Summary Check History Schema
// @Tags integrity
// @Produce json
// @Success 200 {object} checks.SchemaReport "Schema Report"
// @Failure 404 {object} map[string]string "No database configured"
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Router /integrity/schema [get]
func (h *Handler) HandleSchemaCheck(c *fiber.Ctx) error {
	report, err := h.service.CheckSchema()
	if errors.Is(err, ErrNotApplicable) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no database configured"})
	}
	if err != nil {
		logger.WithRayID(h.service.logger, c).Error("Schema check failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(report)
}
