package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/memebase/internal/services"
	"github.com/localnerve/memebase/internal/utils"
)

// ImageHandler proxies the ImageKit media API
type ImageHandler struct {
	Images *services.ImageKitClient
}

// ListImages handles GET /api/images
// @Summary List images
// @Tags Images
// @Produce json
// @Param path query string false "Folder path"
// @Param search query string false "ImageKit search query"
// @Param skip query int false "Skip"
// @Param limit query int false "Limit" default(25)
// @Success 200 {array} services.ImageFile
// @Failure 500 {object} utils.ErrorResponseStruct
// @Failure 503 {object} utils.ErrorResponseStruct
// @Router /images [get]
func (h *ImageHandler) ListImages(c *fiber.Ctx) error {
	skip, err := queryInt(c, "skip", 0)
	if err != nil {
		return err
	}
	limit, err := queryInt(c, "limit", 25)
	if err != nil {
		return err
	}
	files, err := h.Images.List(c.UserContext(), services.ImageListOptions{
		Path:   c.Query("path"),
		Search: c.Query("search"),
		Skip:   skip,
		Limit:  min(max(limit, 1), 1000),
	})
	if err != nil {
		return err
	}
	return c.JSON(files)
}

// UploadImage handles POST /api/images
// @Summary Upload an image
// @Description Upload a file (multipart field "file") to ImageKit
// @Tags Images
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Image"
// @Param folder formData string false "Target folder"
// @Param tags formData string false "Comma-separated tags"
// @Success 201 {object} services.ImageFile
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Security BearerAuth
// @Router /images [post]
func (h *ImageHandler) UploadImage(c *fiber.Ctx) error {
	up, closer, err := formUpload(c)
	if err != nil {
		return err
	}
	defer closer.Close()

	var tags []string
	for _, tag := range strings.Split(c.FormValue("tags"), ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}

	file, err := h.Images.Upload(c.UserContext(), up, services.ImageUploadOptions{
		Folder: c.FormValue("folder"),
		Tags:   tags,
	})
	if err != nil {
		return err
	}
	return utils.CreatedResponse(c, file)
}

// GetImage handles GET /api/images/:id
// @Summary Get image details
// @Tags Images
// @Produce json
// @Param id path string true "ImageKit file id"
// @Success 200 {object} services.ImageFile
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /images/{id} [get]
func (h *ImageHandler) GetImage(c *fiber.Ctx) error {
	file, err := h.Images.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(file)
}

// DeleteImage handles DELETE /api/images/:id
// @Summary Delete an image
// @Tags Images
// @Produce json
// @Param id path string true "ImageKit file id"
// @Success 200 {object} utils.MutationResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Security BearerAuth
// @Router /images/{id} [delete]
func (h *ImageHandler) DeleteImage(c *fiber.Ctx) error {
	if err := h.Images.Delete(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return utils.MutationSuccessResponse(c, 1)
}

// AuthParams handles GET /api/images/auth
// @Summary Client upload signature
// @Description Token, expiry and HMAC-SHA1 signature for direct uploads from the browser
// @Tags Images
// @Produce json
// @Success 200 {object} services.ImageAuthParams
// @Failure 500 {object} utils.ErrorResponseStruct
// @Security BearerAuth
// @Router /images/auth [get]
func (h *ImageHandler) AuthParams(c *fiber.Ctx) error {
	params, err := h.Images.AuthParams()
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.JSON(params)
}
