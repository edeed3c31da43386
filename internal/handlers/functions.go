package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/memebase/internal/functions"
	"github.com/localnerve/memebase/internal/middleware"
	"github.com/localnerve/memebase/internal/services"
	"github.com/localnerve/memebase/internal/types"
	"github.com/localnerve/memebase/internal/utils"
)

// FunctionHandler exposes the background functions over HTTP
type FunctionHandler struct {
	Usage     *services.UsageService
	Scheduler *functions.TrendingScheduler
}

// MemeCreatedRequest names the meme a webhook call is about
type MemeCreatedRequest struct {
	MemeID string `json:"memeId" validate:"required"`
}

// RecordUsage handles POST /api/documents/memes/:id/usage
// @Summary Record meme usage
// @Description Count a view, download, share or copy against the meme and every tag, object and mood it references
// @Tags Functions
// @Accept json
// @Produce json
// @Param id path string true "Meme id"
// @Param usage body services.UsageInput true "Event"
// @Success 200 {object} services.UsageResult
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Security BearerAuth
// @Router /documents/memes/{id}/usage [post]
func (h *FunctionHandler) RecordUsage(c *fiber.Ctx) error {
	var in services.UsageInput
	if err := parseBody(c, &in, "usage.validation"); err != nil {
		return err
	}
	if err := utils.ValidateStruct(in, "usage.validation"); err != nil {
		return err
	}

	var userID string
	if claims := middleware.Claims(c); claims != nil {
		userID = claims.Subject
	}
	result, err := h.Usage.RecordUsage(c.UserContext(), c.Params("id"), in.EventType, userID)
	if err != nil {
		return err
	}
	return c.JSON(result)
}

// Trending handles POST /api/functions/trending
// @Summary Calculate trending scores
// @Description Recalculate trendingScore of every tracked entity now
// @Tags Functions
// @Produce json
// @Success 200 {object} services.TrendingSummary
// @Failure 409 {object} utils.ErrorResponseStruct
// @Security BearerAuth
// @Router /functions/trending [post]
func (h *FunctionHandler) Trending(c *fiber.Ctx) error {
	summary, err := h.Scheduler.Trigger(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(summary)
}

// MemeCreated handles POST /api/functions/meme-created
// @Summary Meme creation webhook
// @Description Count a new meme against every tag, object and mood it references
// @Tags Functions
// @Accept json
// @Produce json
// @Param meme body MemeCreatedRequest true "Meme"
// @Success 200 {object} services.UsageResult
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Security BearerAuth
// @Router /functions/meme-created [post]
func (h *FunctionHandler) MemeCreated(c *fiber.Ctx) error {
	var req MemeCreatedRequest
	if err := parseBody(c, &req, "functions.validation"); err != nil {
		return err
	}
	if req.MemeID == "" {
		return types.BadRequest("memeId is required", "functions.validation")
	}
	result, err := h.Usage.RecordMemeCreated(c.UserContext(), req.MemeID)
	if err != nil {
		return err
	}
	return c.JSON(result)
}
