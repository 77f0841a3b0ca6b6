package refresh

import (
	"gamedata-sync/core/logger"
	"gamedata-sync/core/retry"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler handles HTTP requests that drive the synchronizer.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the sync routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/sync")
	group.Post("/", h.HandleSync)
	group.Get("/status", h.HandleStatus)
	group.Get("/check", h.HandleCheck)
}

// HandleSync starts a sync.
// @Summary Trigger Sync
// @Description Syncs every table, text map and asset the configured consumers need. Runs in the background unless wait=true.
// @Tags sync
// @Produce json
// @Param wait query boolean false "Wait for the run to finish"
// @Success 200 {object} synchronizer.Status "Status after the run"
// @Success 202 {object} map[string]string "Run started"
// @Failure 502 {object} map[string]string "Sync failed"
// @Router /sync [post]
func (h *Handler) HandleSync(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	if !c.QueryBool("wait") {
		l.Info("Starting background sync")
		h.service.Start()
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "started"})
	}

	if err := h.service.Run(c.Context()); err != nil {
		l.Error("Sync failed", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error":    err.Error(),
			"category": string(retry.Classify(err)),
		})
	}
	return c.JSON(h.service.Status())
}

// HandleStatus reports the synchronizer status.
// @Summary Sync Status
// @Tags sync
// @Produce json
// @Success 200 {object} synchronizer.Status "Status"
// @Router /sync/status [get]
func (h *Handler) HandleStatus(c *fiber.Ctx) error {
	return c.JSON(h.service.Status())
}

// HandleCheck queries the upstream revision without syncing.
// @Summary Check For Update
// @Tags sync
// @Produce json
// @Success 200 {object} map[string]interface{} "Whether the revision changed"
// @Failure 502 {object} map[string]string "Upstream failure"
// @Router /sync/check [get]
func (h *Handler) HandleCheck(c *fiber.Ctx) error {
	changed, err := h.service.Check(c.Context())
	if err != nil {
		logger.WithRayID(h.service.logger, c).Warn("Revision check failed", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{
		"changed":  changed,
		"upstream": h.service.Status().Upstream,
	})
}
