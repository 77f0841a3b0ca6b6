package history

import (
	"errors"

	"gamedata-sync/core/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Handler handles HTTP requests for the sync history.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates a new HTTP handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

// RegisterRoutes registers the history routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/history")
	group.Get("/", h.HandleList)
	group.Get("/:id", h.HandleGet)
}

// HandleList returns the latest sync runs.
// @Summary List Sync Runs
// @Description Returns the latest sync runs, newest first.
// @Tags history
// @Produce json
// @Param limit query int false "Maximum number of runs (default 20, max 200)"
// @Param status query string false "Only runs with this status (published, up_to_date, failed)"
// @Success 200 {array} models.SyncRun "Sync runs"
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Router /history [get]
func (h *Handler) HandleList(c *fiber.Ctx) error {
	l := logger.WithRayID(h.logger, c)

	runs, err := h.repo.List(c.Context(), c.Query("status"), c.QueryInt("limit", DefaultLimit))
	if err != nil {
		l.Error("Failed to list sync runs", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(runs)
}

// HandleGet returns one sync run.
// @Summary Get Sync Run
// @Tags history
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} models.SyncRun "Sync run"
// @Failure 404 {object} map[string]string "Not Found"
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Router /history/{id} [get]
func (h *Handler) HandleGet(c *fiber.Ctx) error {
	run, err := h.repo.Get(c.Context(), c.Params("id"))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "run not found"})
	}
	if err != nil {
		logger.WithRayID(h.logger, c).Error("Failed to load sync run", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(run)
}
