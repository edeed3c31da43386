// middleware_test.go
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

package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/memebase/internal/services"
	"github.com/localnerve/memebase/internal/testutil"
	"github.com/localnerve/memebase/internal/types"
	"github.com/localnerve/memebase/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAuth struct {
	admins map[string]bool
}

func (f fakeAuth) ValidateToken(token string) (*services.Claims, error) {
	if token == "" || token == "bad" {
		return nil, types.NewAppError(http.StatusUnauthorized, "invalid token", "auth.unauthorized")
	}
	claims := &services.Claims{}
	claims.Subject = token
	return claims, nil
}

func (f fakeAuth) IsAdmin(_ context.Context, userID string) (bool, error) {
	if userID == "broken" {
		return false, errors.New("db down")
	}
	return f.admins[userID], nil
}

func newTestApp() *fiber.App {
	auth := fakeAuth{admins: map[string]bool{"alice": true}}

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Use(VersionMiddleware())
	app.Get("/me", Authenticate(auth), func(c *fiber.Ctx) error {
		return c.SendString(Claims(c).Subject)
	})
	app.Get("/admin", Authenticate(auth), RequireAdmin(auth), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	app.Get("/fail", func(c *fiber.Ctx) error {
		return fmt.Errorf("query failed: %w", types.NewFileError("too big"))
	})
	app.Get("/boom", func(c *fiber.Ctx) error {
		return errors.New("secret internal detail")
	})
	app.Use(NotFound)
	return app
}

func get(t *testing.T, app *fiber.App, path, token string, headers ...string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func TestAuthenticate(t *testing.T) {
	app := newTestApp()

	testutil.AssertStatus(t, get(t, app, "/me", ""), http.StatusUnauthorized)
	testutil.AssertStatus(t, get(t, app, "/me", "bad"), http.StatusUnauthorized)
	testutil.AssertStatus(t, get(t, app, "/me", "bob"), http.StatusOK)
}

func TestRequireAdmin(t *testing.T) {
	app := newTestApp()

	testutil.AssertStatus(t, get(t, app, "/admin", "alice"), http.StatusOK)

	resp := get(t, app, "/admin", "bob")
	testutil.AssertStatus(t, resp, http.StatusForbidden)
	var body utils.ErrorResponseStruct
	testutil.ParseJSON(t, resp, &body)
	assert.Equal(t, "auth.forbidden", body.Type)
	assert.False(t, body.Ok)

	testutil.AssertStatus(t, get(t, app, "/admin", "broken"), http.StatusInternalServerError)
}

func TestErrorHandler(t *testing.T) {
	app := newTestApp()

	resp := get(t, app, "/fail", "")
	testutil.AssertStatus(t, resp, http.StatusBadRequest)
	var body utils.ErrorResponseStruct
	testutil.ParseJSON(t, resp, &body)
	assert.Equal(t, "file", body.Type)
	assert.Equal(t, "too big", body.Message)
	assert.Equal(t, "/fail", body.URL)

	resp = get(t, app, "/boom", "")
	testutil.AssertStatus(t, resp, http.StatusInternalServerError)
	body = utils.ErrorResponseStruct{}
	testutil.ParseJSON(t, resp, &body)
	assert.NotContains(t, body.Message, "secret")

	testutil.AssertStatus(t, get(t, app, "/nowhere", ""), http.StatusNotFound)
}

func TestNotFound(t *testing.T) {
	app := newTestApp()

	resp := get(t, app, "/nowhere?x=1", "")
	testutil.AssertStatus(t, resp, http.StatusNotFound)
	var body utils.ErrorResponseStruct
	testutil.ParseJSON(t, resp, &body)
	assert.Equal(t, http.StatusNotFound, body.Status)
	assert.Equal(t, "not_found", body.Type)
	assert.Equal(t, "[404] Resource Not Found", body.Message)
	assert.Equal(t, "/nowhere?x=1", body.URL)
	assert.False(t, body.Ok)
}

func TestVersionMiddleware(t *testing.T) {
	app := newTestApp()

	resp := get(t, app, "/me", "bob", "X-Api-Version", "1.0")
	testutil.AssertStatus(t, resp, http.StatusOK)
	assert.Equal(t, APIVersion, resp.Header.Get("X-Api-Version"))

	testutil.AssertStatus(t, get(t, app, "/me", "bob", "X-Api-Version", "2.0.0"), http.StatusBadRequest)
}
