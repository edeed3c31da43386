package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/memebase/internal/services"
	"github.com/localnerve/memebase/internal/utils"
)

// CollectionHandler handles collection schema routes
type CollectionHandler struct {
	Collections *services.CollectionService
}

// ListCollections handles GET /api/collections
// @Summary List collections
// @Description List all collection schemas ordered by name
// @Tags Collections
// @Produce json
// @Success 200 {array} models.CollectionSchema
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /collections [get]
func (h *CollectionHandler) ListCollections(c *fiber.Ctx) error {
	colls, err := h.Collections.List(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(colls)
}

// GetCollection handles GET /api/collections/:slug
// @Summary Get a collection
// @Tags Collections
// @Produce json
// @Param slug path string true "Collection slug or id"
// @Success 200 {object} models.CollectionSchema
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /collections/{slug} [get]
func (h *CollectionHandler) GetCollection(c *fiber.Ctx) error {
	coll, err := h.Collections.Get(c.UserContext(), c.Params("slug"))
	if err != nil {
		return err
	}
	return c.JSON(coll)
}

// CreateCollection handles POST /api/collections
// @Summary Create a collection
// @Tags Collections
// @Accept json
// @Produce json
// @Param collection body services.CollectionInput true "Collection schema"
// @Success 201 {object} models.CollectionSchema
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Security BearerAuth
// @Router /collections [post]
func (h *CollectionHandler) CreateCollection(c *fiber.Ctx) error {
	var in services.CollectionInput
	if err := parseBody(c, &in, "collection.validation"); err != nil {
		return err
	}
	coll, err := h.Collections.Create(c.UserContext(), in)
	if err != nil {
		return err
	}
	return utils.CreatedResponse(c, coll)
}

// UpdateCollection handles PUT /api/collections/:slug
// @Summary Update a collection
// @Description Rename a collection and/or replace its fields
// @Tags Collections
// @Accept json
// @Produce json
// @Param slug path string true "Collection slug or id"
// @Param collection body services.CollectionUpdateInput true "Changes"
// @Success 200 {object} models.CollectionSchema
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Security BearerAuth
// @Router /collections/{slug} [put]
func (h *CollectionHandler) UpdateCollection(c *fiber.Ctx) error {
	var in services.CollectionUpdateInput
	if err := parseBody(c, &in, "collection.validation"); err != nil {
		return err
	}
	coll, err := h.Collections.Update(c.UserContext(), c.Params("slug"), in)
	if err != nil {
		return err
	}
	return c.JSON(coll)
}

// DeleteCollection handles DELETE /api/collections/:slug
// @Summary Delete a collection
// @Description Delete a collection and all of its documents
// @Tags Collections
// @Produce json
// @Param slug path string true "Collection slug or id"
// @Success 200 {object} utils.MutationResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Security BearerAuth
// @Router /collections/{slug} [delete]
func (h *CollectionHandler) DeleteCollection(c *fiber.Ctx) error {
	removed, err := h.Collections.Delete(c.UserContext(), c.Params("slug"))
	if err != nil {
		return err
	}
	return utils.MutationSuccessResponse(c, removed)
}
