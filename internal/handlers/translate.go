package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/memebase/internal/services"
	"github.com/localnerve/memebase/internal/utils"
)

// TranslateHandler handles text translation
type TranslateHandler struct {
	Translator *services.Translator
}

// Translate handles POST /api/simple-translate
// @Summary Translate text
// @Description Translate text with the public Google Translate endpoint. from defaults to auto detection.
// @Tags Translate
// @Accept json
// @Produce json
// @Param request body services.TranslateInput true "Text and languages"
// @Success 200 {object} services.TranslateResult
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 429 {object} utils.ErrorResponseStruct
// @Failure 503 {object} utils.ErrorResponseStruct
// @Router /simple-translate [post]
func (h *TranslateHandler) Translate(c *fiber.Ctx) error {
	var in services.TranslateInput
	if err := parseBody(c, &in, "translate.validation"); err != nil {
		return err
	}
	if err := utils.ValidateStruct(in, "translate.validation"); err != nil {
		return err
	}
	result, err := h.Translator.Translate(c.UserContext(), in)
	if err != nil {
		return err
	}
	return c.JSON(result)
}
