package handler

import (
	"context"
	"errors"

	"fulfillment-pipeline/internal/features/pipeline/service"

	"github.com/gofiber/fiber/v2"
)

// PipelineHandler exposes the ops API: health, cycle status, manual
// cycle trigger and label reprocessing.
type PipelineHandler struct {
	// appCtx outlives individual requests; triggered background cycles
	// run under it so application shutdown cancels them.
	appCtx       context.Context
	orchestrator *service.Orchestrator
}

// NewPipelineHandler creates a new PipelineHandler.
func NewPipelineHandler(appCtx context.Context, orchestrator *service.Orchestrator) *PipelineHandler {
	return &PipelineHandler{
		appCtx:       appCtx,
		orchestrator: orchestrator,
	}
}

// ErrorResponse represents an error response with Ray ID.
type ErrorResponse struct {
	// Message is the error description.
	Message string `json:"message"`
	// RayID is the unique request identifier for tracing.
	RayID string `json:"ray_id,omitempty"`
}

// Register attaches the ops routes to the Fiber app.
func (h *PipelineHandler) Register(app *fiber.App) {
	app.Get("/healthz", h.Health)
	app.Get("/status", h.Status)
	app.Post("/cycle", h.TriggerCycle)
	app.Post("/orders/:id/reprocess", h.ReprocessOrder)
}

// Health reports process liveness.
func (h *PipelineHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// Status returns the last completed cycle report.
func (h *PipelineHandler) Status(c *fiber.Ctx) error {
	report := h.orchestrator.LastReport()
	if report == nil {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
			Message: "no pipeline cycle has completed yet",
			RayID:   c.Locals("requestid").(string),
		})
	}
	return c.JSON(report)
}

// TriggerCycle starts a pipeline cycle in the background.
func (h *PipelineHandler) TriggerCycle(c *fiber.Ctx) error {
	if err := h.orchestrator.TriggerCycle(h.appCtx); err != nil {
		if errors.Is(err, service.ErrCycleRunning) {
			return c.Status(fiber.StatusConflict).JSON(ErrorResponse{
				Message: err.Error(),
				RayID:   c.Locals("requestid").(string),
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Message: err.Error(),
			RayID:   c.Locals("requestid").(string),
		})
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "cycle started"})
}

// ReprocessOrder voids an order's current shipping label and issues a
// replacement.
func (h *PipelineHandler) ReprocessOrder(c *fiber.Ctx) error {
	orderID := c.Params("id")
	if orderID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Message: "order id is required",
			RayID:   c.Locals("requestid").(string),
		})
	}

	if err := h.orchestrator.Reprocess(c.Context(), orderID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Message: err.Error(),
			RayID:   c.Locals("requestid").(string),
		})
	}
	return c.JSON(fiber.Map{"status": "label reprocessed", "order_id": orderID})
}
