// documents.go
//
// memebase, a meme management platform backend
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of memebase.
// memebase is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// memebase is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with memebase.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/memebase/internal/services"
	"github.com/localnerve/memebase/internal/types"
	"github.com/localnerve/memebase/internal/utils"
)

// DocumentHandler handles document routes of every collection
type DocumentHandler struct {
	Documents *services.DocumentService
}

// BatchRequest is the body of a batch create
type BatchRequest struct {
	Documents          types.FlexList[map[string]interface{}] `json:"documents"`
	SkipDuplicateSlugs types.FlexBool                         `json:"skipDuplicateSlugs"`
	ChunkSize          int                                    `json:"chunkSize"`
}

// DeleteManyRequest is the body of a bulk delete
type DeleteManyRequest struct {
	IDs types.FlexList[string] `json:"ids"`
}

// ListDocuments handles GET /api/documents/:collection
// @Summary List documents
// @Description List documents of a collection. queries take the form field,operator,value and may repeat.
// @Tags Documents
// @Produce json
// @Param collection path string true "Collection slug"
// @Param queries query []string false "Filters: field,operator,value" collectionFormat(multi)
// @Param limit query int false "Page size (max 100)" default(25)
// @Param offset query int false "Offset"
// @Param orderBy query string false "Field to order by" default(createdAt)
// @Param orderDir query string false "asc or desc" default(desc)
// @Param search query string false "Substring search over text fields"
// @Success 200 {object} services.DocumentList
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /documents/{collection} [get]
func (h *DocumentHandler) ListDocuments(c *fiber.Ctx) error {
	opts, err := parseListOptions(c)
	if err != nil {
		return err
	}
	list, err := h.Documents.List(c.UserContext(), c.Params("collection"), opts)
	if err != nil {
		return err
	}
	return c.JSON(list)
}

// GetDocument handles GET /api/documents/:collection/:id
// @Summary Get a document
// @Tags Documents
// @Produce json
// @Param collection path string true "Collection slug"
// @Param id path string true "Document id"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /documents/{collection}/{id} [get]
func (h *DocumentHandler) GetDocument(c *fiber.Ctx) error {
	doc, err := h.Documents.Get(c.UserContext(), c.Params("collection"), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(doc)
}

// CreateDocument handles POST /api/documents/:collection
// @Summary Create a document
// @Tags Documents
// @Accept json
// @Produce json
// @Param collection path string true "Collection slug"
// @Param document body map[string]interface{} true "Document data, optionally with a slug"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Security BearerAuth
// @Router /documents/{collection} [post]
func (h *DocumentHandler) CreateDocument(c *fiber.Ctx) error {
	var data map[string]interface{}
	if err := parseBody(c, &data, "document.validation"); err != nil {
		return err
	}
	doc, err := h.Documents.Create(c.UserContext(), c.Params("collection"), data)
	if err != nil {
		return err
	}
	return utils.CreatedResponse(c, doc)
}

// CreateDocuments handles POST /api/documents/:collection/batch
// @Summary Create documents in a batch
// @Description Documents are created in chunks. Duplicate slugs are reported as failed with skipDuplicateSlugs, otherwise the batch is rejected.
// @Tags Documents
// @Accept json
// @Produce json
// @Param collection path string true "Collection slug"
// @Param batch body BatchRequest true "Documents and options"
// @Success 200 {object} services.BatchResult
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Security BearerAuth
// @Router /documents/{collection}/batch [post]
func (h *DocumentHandler) CreateDocuments(c *fiber.Ctx) error {
	var req BatchRequest
	if err := parseBody(c, &req, "document.validation"); err != nil {
		return err
	}
	result, err := h.Documents.CreateBatch(c.UserContext(), c.Params("collection"), req.Documents.Slice(), services.BatchOptions{
		SkipDuplicateSlugs: bool(req.SkipDuplicateSlugs),
		ChunkSize:          req.ChunkSize,
	})
	if err != nil {
		return err
	}
	return c.JSON(result)
}

// UpdateDocument handles PUT /api/documents/:collection/:id
// @Summary Update a document
// @Description Merge the given fields into a document
// @Tags Documents
// @Accept json
// @Produce json
// @Param collection path string true "Collection slug"
// @Param id path string true "Document id"
// @Param document body map[string]interface{} true "Fields to change"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Security BearerAuth
// @Router /documents/{collection}/{id} [put]
func (h *DocumentHandler) UpdateDocument(c *fiber.Ctx) error {
	var data map[string]interface{}
	if err := parseBody(c, &data, "document.validation"); err != nil {
		return err
	}
	doc, err := h.Documents.Update(c.UserContext(), c.Params("collection"), c.Params("id"), data)
	if err != nil {
		return err
	}
	return c.JSON(doc)
}

// DeleteDocument handles DELETE /api/documents/:collection/:id
// @Summary Delete a document
// @Tags Documents
// @Produce json
// @Param collection path string true "Collection slug"
// @Param id path string true "Document id"
// @Success 200 {object} utils.MutationResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Security BearerAuth
// @Router /documents/{collection}/{id} [delete]
func (h *DocumentHandler) DeleteDocument(c *fiber.Ctx) error {
	if err := h.Documents.Delete(c.UserContext(), c.Params("collection"), c.Params("id")); err != nil {
		return err
	}
	return utils.MutationSuccessResponse(c, 1)
}

// DeleteDocuments handles DELETE /api/documents/:collection
// @Summary Delete documents
// @Description Delete the listed documents of a collection
// @Tags Documents
// @Accept json
// @Produce json
// @Param collection path string true "Collection slug"
// @Param ids body DeleteManyRequest true "Document ids"
// @Success 200 {object} utils.MutationResponseStruct
// @Failure 400 {object} utils.ErrorResponseStruct
// @Security BearerAuth
// @Router /documents/{collection} [delete]
func (h *DocumentHandler) DeleteDocuments(c *fiber.Ctx) error {
	var req DeleteManyRequest
	if err := parseBody(c, &req, "document.validation"); err != nil {
		return err
	}
	removed, err := h.Documents.DeleteMany(c.UserContext(), c.Params("collection"), req.IDs.Slice())
	if err != nil {
		return err
	}
	return utils.MutationSuccessResponse(c, removed)
}

// IncreaseOverTime handles GET /api/documents/:collection/stats/increase
// @Summary Document growth over time
// @Description Documents created per period, oldest first, ending with the current period
// @Tags Documents
// @Produce json
// @Param collection path string true "Collection slug"
// @Param duration query string false "day, week, month or year" default(day)
// @Param limit query int false "Number of periods (1-366)" default(7)
// @Success 200 {array} services.PeriodCount
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /documents/{collection}/stats/increase [get]
func (h *DocumentHandler) IncreaseOverTime(c *fiber.Ctx) error {
	limit, err := queryInt(c, "limit", services.DefaultPeriods)
	if err != nil {
		return err
	}
	if limit == 0 {
		return types.BadRequest("limit must be between 1 and 366", "query.invalid")
	}
	periods, err := h.Documents.IncreaseOverTime(c.UserContext(), c.Params("collection"), c.Query("duration", services.DurationDay), limit)
	if err != nil {
		return err
	}
	return c.JSON(periods)
}
