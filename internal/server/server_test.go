package server

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/memebase/internal/config"
	"github.com/localnerve/memebase/internal/services"
	"github.com/localnerve/memebase/internal/testutil"
	"github.com/localnerve/memebase/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	app   *fiber.App
	svc   *Services
	admin string
	user  string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	translate := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[[["Con mèo","The cat",null,null,10]],null,"en"]`))
	}))
	t.Cleanup(translate.Close)

	cfg := &config.Config{
		CORSOrigins:         "*",
		DBType:              "sqlite-pure",
		JWTSecret:           "test-secret",
		JWTExpiry:           time.Hour,
		JWTRefreshWindow:    time.Hour,
		AdminTeamID:         "admins",
		StorageDir:          t.TempDir(),
		MaxFileSize:         1024,
		AllowedFileTypes:    []string{"image/png"},
		TranslateURL:        translate.URL + "/translate_a/single",
		TranslateRate:       100,
		TranslateBurst:      10,
		TrendingInterval:    time.Hour,
		TrendingConcurrency: 2,
		TrendingCollections: []string{"tags", "objects", "moods"},
		BatchChunkSize:      2,
	}

	db := testutil.SetupTestDB(t)
	svc := NewServices(cfg, db, nil, translate.Client())
	ctx := context.Background()
	require.NoError(t, svc.Collections.EnsureCollections(ctx, services.DefaultCollections()))

	require.NoError(t, svc.Auth.GrantMembership(ctx, cfg.AdminTeamID, "admin-1", "admin"))
	admin, err := svc.Auth.IssueToken("admin-1", "admin@example.com", "Admin")
	require.NoError(t, err)
	user, err := svc.Auth.IssueToken("user-1", "user@example.com", "User")
	require.NoError(t, err)

	return &testServer{app: New(cfg, svc), svc: svc, admin: admin.Token, user: user.Token}
}

func (s *testServer) do(t *testing.T, method, target, token string, body interface{}) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(testutil.MustJSON(t, body))
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func (s *testServer) createMeme(t *testing.T, slug, title string) services.DocumentDTO {
	t.Helper()
	resp := s.do(t, http.MethodPost, "/api/documents/memes", s.admin, map[string]interface{}{
		"slug":     slug,
		"title_en": title,
		"type":     "image",
	})
	testutil.AssertStatus(t, resp, http.StatusCreated)

	var doc services.DocumentDTO
	testutil.ParseJSON(t, resp, &doc)
	return doc
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, http.MethodGet, "/api/health", "", nil)
	testutil.AssertStatus(t, resp, http.StatusOK)
	assert.Equal(t, "1.0.0", resp.Header.Get("X-Api-Version"))

	var result services.HealthCheckResult
	testutil.ParseJSON(t, resp, &result)
	assert.Equal(t, "ok", result.Database)
	assert.Equal(t, "ok", result.Storage)
	assert.Equal(t, "disabled", result.ImageKit)
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, http.MethodGet, "/nowhere", "", nil)
	testutil.AssertStatus(t, resp, http.StatusNotFound)

	var body utils.ErrorResponseStruct
	testutil.ParseJSON(t, resp, &body)
	assert.False(t, body.Ok)
	assert.Equal(t, "/nowhere", body.URL)
	assert.Equal(t, "not_found", body.Type)
}

func TestUnsupportedVersion(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/collections", nil)
	req.Header.Set("X-Api-Version", "2.0.0")
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	testutil.AssertStatus(t, resp, http.StatusBadRequest)
}

func TestWritesRequireAdmin(t *testing.T) {
	s := newTestServer(t)
	body := map[string]interface{}{"title_en": "Cat", "type": "image"}

	resp := s.do(t, http.MethodPost, "/api/documents/memes", "", body)
	testutil.AssertStatus(t, resp, http.StatusUnauthorized)

	resp = s.do(t, http.MethodPost, "/api/documents/memes", "not-a-token", body)
	testutil.AssertStatus(t, resp, http.StatusUnauthorized)

	resp = s.do(t, http.MethodPost, "/api/documents/memes", s.user, body)
	testutil.AssertStatus(t, resp, http.StatusForbidden)

	var errBody utils.ErrorResponseStruct
	testutil.ParseJSON(t, resp, &errBody)
	assert.Equal(t, "auth.forbidden", errBody.Type)
}

func TestCollectionsRoutes(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, http.MethodGet, "/api/collections", "", nil)
	testutil.AssertStatus(t, resp, http.StatusOK)
	var list []map[string]interface{}
	testutil.ParseJSON(t, resp, &list)
	assert.Len(t, list, 4)

	resp = s.do(t, http.MethodPost, "/api/collections", s.admin, map[string]interface{}{
		"name": "Templates",
		"slug": "templates",
		"fields": []map[string]interface{}{
			{"name": "title_en", "type": "string", "required": true},
		},
	})
	testutil.AssertStatus(t, resp, http.StatusCreated)

	resp = s.do(t, http.MethodGet, "/api/collections/templates", "", nil)
	testutil.AssertStatus(t, resp, http.StatusOK)

	resp = s.do(t, http.MethodDelete, "/api/collections/templates", s.admin, nil)
	testutil.AssertStatus(t, resp, http.StatusOK)

	resp = s.do(t, http.MethodGet, "/api/collections/templates", "", nil)
	testutil.AssertStatus(t, resp, http.StatusNotFound)
}

func TestDocumentLifecycle(t *testing.T) {
	s := newTestServer(t)

	doc := s.createMeme(t, "grumpy-cat", "Grumpy cat")
	id, _ := doc["id"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, "grumpy-cat", doc["slug"])
	assert.EqualValues(t, 0, doc["usageCount"], "defaults are applied")

	resp := s.do(t, http.MethodPost, "/api/documents/memes", s.admin, map[string]interface{}{
		"slug": "grumpy-cat", "title_en": "Again", "type": "image",
	})
	testutil.AssertStatus(t, resp, http.StatusConflict)

	resp = s.do(t, http.MethodPost, "/api/documents/memes", s.admin, map[string]interface{}{
		"title_en": "Bad type", "type": "sticker",
	})
	testutil.AssertStatus(t, resp, http.StatusBadRequest)

	resp = s.do(t, http.MethodPut, "/api/documents/memes/"+id, s.admin, map[string]interface{}{"title_vi": "Mèo cau có"})
	testutil.AssertStatus(t, resp, http.StatusOK)
	var updated services.DocumentDTO
	testutil.ParseJSON(t, resp, &updated)
	assert.Equal(t, "Mèo cau có", updated["title_vi"])
	assert.Equal(t, "Grumpy cat", updated["title_en"])

	resp = s.do(t, http.MethodGet, "/api/documents/memes?queries=title_en,equal,Grumpy%20cat", "", nil)
	testutil.AssertStatus(t, resp, http.StatusOK)
	var list services.DocumentList
	testutil.ParseJSON(t, resp, &list)
	assert.EqualValues(t, 1, list.Total)

	resp = s.do(t, http.MethodDelete, "/api/documents/memes/"+id, s.admin, nil)
	testutil.AssertStatus(t, resp, http.StatusOK)

	resp = s.do(t, http.MethodGet, "/api/documents/memes/"+id, "", nil)
	testutil.AssertStatus(t, resp, http.StatusNotFound)
}

func TestBatchRoute(t *testing.T) {
	s := newTestServer(t)
	s.createMeme(t, "cat", "Cat")

	docs := []map[string]interface{}{
		{"slug": "dog", "title_en": "Dog", "type": "image"},
		{"slug": "cat", "title_en": "Cat again", "type": "image"},
		{"slug": "bird", "title_en": "Bird", "type": "gif"},
	}

	resp := s.do(t, http.MethodPost, "/api/documents/memes/batch", s.admin, map[string]interface{}{"documents": docs})
	testutil.AssertStatus(t, resp, http.StatusConflict)

	resp = s.do(t, http.MethodPost, "/api/documents/memes/batch", s.admin, map[string]interface{}{
		"documents":          docs,
		"skipDuplicateSlugs": "true",
	})
	testutil.AssertStatus(t, resp, http.StatusOK)

	var result services.BatchResult
	testutil.ParseJSON(t, resp, &result)
	require.Len(t, result.Successful, 2)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, 1, result.Failed[0].Index)
	assert.Equal(t, "cat", result.Failed[0].Slug)
}

func TestIncreaseOverTimeRoute(t *testing.T) {
	s := newTestServer(t)
	s.createMeme(t, "cat", "Cat")

	resp := s.do(t, http.MethodGet, "/api/documents/memes/stats/increase?duration=day&limit=3", "", nil)
	testutil.AssertStatus(t, resp, http.StatusOK)

	var periods []services.PeriodCount
	testutil.ParseJSON(t, resp, &periods)
	require.Len(t, periods, 3)
	assert.True(t, periods[0].Start.Before(periods[2].Start))
	assert.EqualValues(t, 1, periods[2].Count)
	assert.EqualValues(t, 1, periods[2].Total)

	resp = s.do(t, http.MethodGet, "/api/documents/memes/stats/increase?limit=0", "", nil)
	testutil.AssertStatus(t, resp, http.StatusBadRequest)

	resp = s.do(t, http.MethodGet, "/api/documents/memes/stats/increase?duration=decade", "", nil)
	testutil.AssertStatus(t, resp, http.StatusBadRequest)
}

func TestUsageAndTrendingRoutes(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, http.MethodPost, "/api/documents/tags", s.admin, map[string]interface{}{"title_en": "Cats"})
	testutil.AssertStatus(t, resp, http.StatusCreated)
	var tag services.DocumentDTO
	testutil.ParseJSON(t, resp, &tag)

	resp = s.do(t, http.MethodPost, "/api/documents/memes", s.admin, map[string]interface{}{
		"title_en": "Cat", "type": "image", "tags": []string{tag["id"].(string)},
	})
	testutil.AssertStatus(t, resp, http.StatusCreated)
	var meme services.DocumentDTO
	testutil.ParseJSON(t, resp, &meme)
	memeID := meme["id"].(string)

	resp = s.do(t, http.MethodPost, "/api/documents/memes/"+memeID+"/usage", "", map[string]interface{}{"eventType": "view"})
	testutil.AssertStatus(t, resp, http.StatusUnauthorized)

	resp = s.do(t, http.MethodPost, "/api/documents/memes/"+memeID+"/usage", s.user, map[string]interface{}{"eventType": "teleport"})
	testutil.AssertStatus(t, resp, http.StatusBadRequest)

	resp = s.do(t, http.MethodPost, "/api/documents/memes/"+memeID+"/usage", s.user, map[string]interface{}{"eventType": "view"})
	testutil.AssertStatus(t, resp, http.StatusOK)
	var usage services.UsageResult
	testutil.ParseJSON(t, resp, &usage)
	require.Len(t, usage.Entities, 2)
	for _, e := range usage.Entities {
		assert.True(t, e.Success, e.Error)
		assert.EqualValues(t, 1, e.UsageCount)
	}

	resp = s.do(t, http.MethodPost, "/api/functions/meme-created", s.admin, map[string]interface{}{"memeId": memeID})
	testutil.AssertStatus(t, resp, http.StatusOK)

	resp = s.do(t, http.MethodPost, "/api/functions/trending", s.user, nil)
	testutil.AssertStatus(t, resp, http.StatusForbidden)

	resp = s.do(t, http.MethodPost, "/api/functions/trending", s.admin, nil)
	testutil.AssertStatus(t, resp, http.StatusOK)
	var summary services.TrendingSummary
	testutil.ParseJSON(t, resp, &summary)
	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 0, summary.Failed)
	require.Len(t, summary.Results, 1)
	assert.Greater(t, summary.Results[0].Score, 0.0)
}

func TestFileRoutes(t *testing.T) {
	s := newTestServer(t)
	png := append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 64)...)

	upload := func(content []byte) *http.Response {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="file"; filename="cat.png"`)
		h.Set("Content-Type", "image/png")
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/api/files/memes", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+s.admin)
		resp, err := s.app.Test(req, -1)
		require.NoError(t, err)
		return resp
	}

	resp := upload(bytes.Repeat(png, 20))
	testutil.AssertStatus(t, resp, http.StatusBadRequest)
	var errBody utils.ErrorResponseStruct
	testutil.ParseJSON(t, resp, &errBody)
	assert.Equal(t, "file", errBody.Type)

	resp = upload(png)
	testutil.AssertStatus(t, resp, http.StatusCreated)
	var stored map[string]interface{}
	testutil.ParseJSON(t, resp, &stored)
	id := stored["id"].(string)

	resp = s.do(t, http.MethodGet, "/api/files/memes/"+id+"/download", "", nil)
	testutil.AssertStatus(t, resp, http.StatusOK)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Disposition"), "attachment"))
	content, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, png, content)

	resp = s.do(t, http.MethodGet, "/api/files/memes", "", nil)
	testutil.AssertStatus(t, resp, http.StatusOK)

	resp = s.do(t, http.MethodDelete, "/api/files/memes/"+id, s.admin, nil)
	testutil.AssertStatus(t, resp, http.StatusOK)

	resp = s.do(t, http.MethodGet, "/api/files/memes/"+id, "", nil)
	testutil.AssertStatus(t, resp, http.StatusNotFound)
}

func TestImagesNotConfigured(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, http.MethodGet, "/api/images", "", nil)
	testutil.AssertStatus(t, resp, http.StatusInternalServerError)

	var errBody utils.ErrorResponseStruct
	testutil.ParseJSON(t, resp, &errBody)
	assert.Equal(t, "config", errBody.Type)
}

func TestTranslateRoute(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, http.MethodPost, "/api/simple-translate", "", map[string]interface{}{"text": "The cat", "to": "vi"})
	testutil.AssertStatus(t, resp, http.StatusOK)
	var result services.TranslateResult
	testutil.ParseJSON(t, resp, &result)
	assert.Equal(t, "Con mèo", result.Translation)
	assert.Equal(t, "en", result.From)

	resp = s.do(t, http.MethodPost, "/api/simple-translate", "", map[string]interface{}{"text": "The cat"})
	testutil.AssertStatus(t, resp, http.StatusBadRequest)
}

func TestAuthRoutes(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, http.MethodGet, "/api/auth/me", s.admin, nil)
	testutil.AssertStatus(t, resp, http.StatusOK)
	var me services.AuthUser
	testutil.ParseJSON(t, resp, &me)
	assert.Equal(t, "admin-1", me.ID)
	assert.True(t, me.IsAdmin)

	resp = s.do(t, http.MethodGet, "/api/auth/admin", s.user, nil)
	testutil.AssertStatus(t, resp, http.StatusOK)
	var status map[string]interface{}
	testutil.ParseJSON(t, resp, &status)
	assert.Equal(t, false, status["isAdmin"])

	resp = s.do(t, http.MethodPost, "/api/auth/refresh", s.user, nil)
	testutil.AssertStatus(t, resp, http.StatusOK)
	var tok services.TokenResponse
	testutil.ParseJSON(t, resp, &tok)
	assert.NotEmpty(t, tok.Token)

	resp = s.do(t, http.MethodPost, "/api/auth/refresh", "", nil)
	testutil.AssertStatus(t, resp, http.StatusUnauthorized)
}
