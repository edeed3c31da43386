//go:build integration

package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/localnerve/memebase/internal/database"
	"github.com/localnerve/memebase/internal/services"
	"github.com/localnerve/memebase/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestWithMariaDB runs the API against a real MariaDB container
func TestWithMariaDB(t *testing.T) {
	runIntegration(t, testutil.DatabaseOptions{DBType: "mysql", Image: os.Getenv("DB_IMAGE")})
}

// TestWithPostgreSQL runs the API against a real PostgreSQL container
func TestWithPostgreSQL(t *testing.T) {
	runIntegration(t, testutil.DatabaseOptions{DBType: "postgres", Image: os.Getenv("POSTGRES_IMAGE")})
}

func runIntegration(t *testing.T, opts testutil.DatabaseOptions) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	ctx := context.Background()

	container, err := testutil.StartDatabase(ctx, opts)
	require.NoError(t, err)
	defer func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	}()

	cfg := container.Config
	cfg.CORSOrigins = "*"
	cfg.JWTSecret = "integration-secret"
	cfg.JWTExpiry = time.Hour
	cfg.JWTRefreshWindow = time.Hour
	cfg.AdminTeamID = "admins"
	cfg.StorageDir = t.TempDir()
	cfg.MaxFileSize = 1 << 20
	cfg.AllowedFileTypes = []string{"image/png"}
	cfg.TrendingCollections = []string{"tags", "objects", "moods"}
	cfg.TrendingConcurrency = 4
	cfg.BatchChunkSize = 3

	db, err := database.Connect(cfg)
	require.NoError(t, err)
	defer database.Close(db)
	require.NoError(t, database.AutoMigrate(db))

	svc := NewServices(cfg, db, nil, nil)
	require.NoError(t, svc.Collections.EnsureCollections(ctx, services.DefaultCollections()))
	require.NoError(t, svc.Auth.GrantMembership(ctx, cfg.AdminTeamID, "admin-1"))
	tok, err := svc.Auth.IssueToken("admin-1", "", "")
	require.NoError(t, err)

	s := &testServer{app: New(cfg, svc), svc: svc, admin: tok.Token, user: tok.Token}

	t.Run("BatchAndUsage", func(t *testing.T) {
		resp := s.do(t, http.MethodPost, "/api/documents/tags/batch", s.admin, map[string]interface{}{
			"documents": []map[string]interface{}{
				{"slug": "cats", "title_en": "Cats"},
				{"slug": "dogs", "title_en": "Dogs"},
				{"slug": "cats", "title_en": "Cats again"},
				{"slug": "birds", "title_en": "Birds"},
			},
			"skipDuplicateSlugs": true,
		})
		testutil.AssertStatus(t, resp, http.StatusOK)
		var batch services.BatchResult
		testutil.ParseJSON(t, resp, &batch)
		require.Len(t, batch.Successful, 3)
		require.Len(t, batch.Failed, 1)

		var tagIDs []string
		for _, d := range batch.Successful {
			tagIDs = append(tagIDs, d["id"].(string))
		}
		resp = s.do(t, http.MethodPost, "/api/documents/memes", s.admin, map[string]interface{}{
			"title_en": "Cat and dog", "type": "video", "tags": tagIDs,
		})
		testutil.AssertStatus(t, resp, http.StatusCreated)
		var meme services.DocumentDTO
		testutil.ParseJSON(t, resp, &meme)

		for i := 0; i < 3; i++ {
			resp = s.do(t, http.MethodPost, "/api/documents/memes/"+meme["id"].(string)+"/usage", s.user, map[string]interface{}{"eventType": "share"})
			testutil.AssertStatus(t, resp, http.StatusOK)
		}

		resp = s.do(t, http.MethodPost, "/api/functions/trending", s.admin, nil)
		testutil.AssertStatus(t, resp, http.StatusOK)
		var summary services.TrendingSummary
		testutil.ParseJSON(t, resp, &summary)
		assert.Equal(t, 3, summary.Processed)
		for _, r := range summary.Results {
			assert.Greater(t, r.Score, 0.0, r.ID)
		}
	})

	t.Run("Health", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		resp, err := s.app.Test(req, -1)
		require.NoError(t, err)
		testutil.AssertStatus(t, resp, http.StatusOK)
	})
}
