// common.go
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
	"io"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/memebase/internal/query"
	"github.com/localnerve/memebase/internal/services"
	"github.com/localnerve/memebase/internal/types"
)

// queryValues collects every value of the given query keys, in order.
// Repeated keys and the "key[]" form are both accepted.
func queryValues(c *fiber.Ctx, key string) []string {
	var values []string
	args := c.Context().QueryArgs()
	for k, v := range args.All() {
		name := string(k)
		if name == key || name == key+"[]" {
			if s := strings.TrimSpace(string(v)); s != "" {
				values = append(values, s)
			}
		}
	}
	return values
}

// queryInt reads a non-negative integer query parameter
func queryInt(c *fiber.Ctx, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, types.BadRequest(key+" must be a non-negative integer", "query.invalid")
	}
	return n, nil
}

// parseListOptions reads queries, limit, offset, orderBy, orderDir and search
func parseListOptions(c *fiber.Ctx) (query.Options, error) {
	limit, err := queryInt(c, "limit", query.DefaultLimit)
	if err != nil {
		return query.Options{}, err
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		return query.Options{}, err
	}
	return query.Parse(queryValues(c, "queries"), limit, offset, c.Query("orderBy"), c.Query("orderDir"), c.Query("search"))
}

// parseBody decodes a JSON body into out
func parseBody(c *fiber.Ctx, out interface{}, errorType string) error {
	if len(c.Body()) == 0 {
		return types.BadRequest("request body is required", errorType)
	}
	if err := c.BodyParser(out); err != nil {
		return types.Wrap(err, fiber.StatusBadRequest, "invalid JSON body", errorType)
	}
	return nil
}

// formUpload opens the multipart "file" field as a FileUpload. The caller
// must close the returned closer.
func formUpload(c *fiber.Ctx) (services.FileUpload, io.Closer, error) {
	header, err := c.FormFile("file")
	if err != nil {
		return services.FileUpload{}, nil, types.NewFileError("multipart field 'file' is required")
	}
	f, err := header.Open()
	if err != nil {
		return services.FileUpload{}, nil, types.Wrap(err, fiber.StatusBadRequest, "cannot read uploaded file", "file")
	}
	return services.FileUpload{
		Name:        header.Filename,
		ContentType: header.Header.Get(fiber.HeaderContentType),
		Size:        header.Size,
		Content:     f,
	}, f, nil
}
