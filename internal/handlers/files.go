package handlers

import (
	"fmt"
	"mime"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/memebase/internal/models"
	"github.com/localnerve/memebase/internal/services"
	"github.com/localnerve/memebase/internal/utils"
)

// FileHandler handles bucket file routes
type FileHandler struct {
	Files *services.FileService
}

// FileList is one page of a bucket
type FileList struct {
	Total int64               `json:"total"`
	Files []models.StoredFile `json:"files"`
}

// ListFiles handles GET /api/files/:bucket
// @Summary List files
// @Tags Files
// @Produce json
// @Param bucket path string true "Bucket"
// @Param limit query int false "Page size" default(25)
// @Param offset query int false "Offset"
// @Success 200 {object} FileList
// @Failure 400 {object} utils.ErrorResponseStruct
// @Router /files/{bucket} [get]
func (h *FileHandler) ListFiles(c *fiber.Ctx) error {
	limit, err := queryInt(c, "limit", 25)
	if err != nil {
		return err
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		return err
	}
	files, total, err := h.Files.List(c.UserContext(), c.Params("bucket"), min(max(limit, 1), 100), offset)
	if err != nil {
		return err
	}
	return c.JSON(FileList{Total: total, Files: files})
}

// UploadFile handles POST /api/files/:bucket
// @Summary Upload a file
// @Description Upload a file (multipart field "file"). Type and size are checked.
// @Tags Files
// @Accept multipart/form-data
// @Produce json
// @Param bucket path string true "Bucket"
// @Param file formData file true "File"
// @Success 201 {object} models.StoredFile
// @Failure 400 {object} utils.ErrorResponseStruct
// @Security BearerAuth
// @Router /files/{bucket} [post]
func (h *FileHandler) UploadFile(c *fiber.Ctx) error {
	up, closer, err := formUpload(c)
	if err != nil {
		return err
	}
	defer closer.Close()

	file, err := h.Files.Upload(c.UserContext(), c.Params("bucket"), up)
	if err != nil {
		return err
	}
	return utils.CreatedResponse(c, file)
}

// GetFile handles GET /api/files/:bucket/:id
// @Summary Get file metadata
// @Tags Files
// @Produce json
// @Param bucket path string true "Bucket"
// @Param id path string true "File id"
// @Success 200 {object} models.StoredFile
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /files/{bucket}/{id} [get]
func (h *FileHandler) GetFile(c *fiber.Ctx) error {
	file, err := h.Files.Get(c.UserContext(), c.Params("bucket"), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(file)
}

// ViewFile handles GET /api/files/:bucket/:id/view
// @Summary View a file
// @Description Serve the file content inline
// @Tags Files
// @Produce octet-stream
// @Param bucket path string true "Bucket"
// @Param id path string true "File id"
// @Success 200 {file} file
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /files/{bucket}/{id}/view [get]
func (h *FileHandler) ViewFile(c *fiber.Ctx) error {
	return h.serve(c, "inline")
}

// DownloadFile handles GET /api/files/:bucket/:id/download
// @Summary Download a file
// @Description Serve the file content as an attachment
// @Tags Files
// @Produce octet-stream
// @Param bucket path string true "Bucket"
// @Param id path string true "File id"
// @Success 200 {file} file
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /files/{bucket}/{id}/download [get]
func (h *FileHandler) DownloadFile(c *fiber.Ctx) error {
	return h.serve(c, "attachment")
}

func (h *FileHandler) serve(c *fiber.Ctx, disposition string) error {
	file, err := h.Files.Get(c.UserContext(), c.Params("bucket"), c.Params("id"))
	if err != nil {
		return err
	}

	c.Set(fiber.HeaderContentType, file.MimeType)
	c.Set(fiber.HeaderContentDisposition, mime.FormatMediaType(disposition, map[string]string{"filename": file.Name}))
	c.Set(fiber.HeaderCacheControl, "public, max-age=31536000, immutable")
	if err := c.SendFile(h.Files.LocalPath(file)); err != nil {
		return fmt.Errorf("send file %s: %w", file.ID, err)
	}
	// SendFile sets its own content type from the extension, and stored files have none
	c.Set(fiber.HeaderContentType, file.MimeType)
	return nil
}

// DeleteFile handles DELETE /api/files/:bucket/:id
// @Summary Delete a file
// @Tags Files
// @Produce json
// @Param bucket path string true "Bucket"
// @Param id path string true "File id"
// @Success 200 {object} utils.MutationResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Security BearerAuth
// @Router /files/{bucket}/{id} [delete]
func (h *FileHandler) DeleteFile(c *fiber.Ctx) error {
	if err := h.Files.Delete(c.UserContext(), c.Params("bucket"), c.Params("id")); err != nil {
		return err
	}
	return utils.MutationSuccessResponse(c, 1)
}
