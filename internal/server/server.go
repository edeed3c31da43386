// server.go
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

// Package server builds the Fiber application: services, middleware and
// routes.
package server

import (
	"net/http"
	"sync"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	swagger "github.com/gofiber/swagger"
	"github.com/localnerve/memebase/internal/config"
	"github.com/localnerve/memebase/internal/events"
	"github.com/localnerve/memebase/internal/functions"
	"github.com/localnerve/memebase/internal/handlers"
	"github.com/localnerve/memebase/internal/middleware"
	"github.com/localnerve/memebase/internal/services"
	"gorm.io/gorm"

	_ "github.com/localnerve/memebase/docs/api" // Swagger docs
)

// Services is everything the routes need
type Services struct {
	Collections *services.CollectionService
	Documents   *services.DocumentService
	Files       *services.FileService
	Images      *services.ImageKitClient
	Translator  *services.Translator
	Auth        *services.AuthService
	Usage       *services.UsageService
	Trending    *services.TrendingService
	Health      *services.HealthService
	Scheduler   *functions.TrendingScheduler
}

// NewServices wires the services over db. publisher may be nil when no
// event consumers run. client is used for ImageKit and translation.
func NewServices(cfg *config.Config, db *gorm.DB, publisher events.Publisher, client *http.Client) *Services {
	collections := &services.CollectionService{DB: db}
	images := services.NewImageKitClient(cfg, client)
	translator := services.NewTranslator(cfg, client)
	trending := services.NewTrendingService(db, collections, cfg.TrendingCollections, cfg.TrendingConcurrency)

	return &Services{
		Collections: collections,
		Documents: &services.DocumentService{
			DB:          db,
			Collections: collections,
			Events:      publisher,
			ChunkSize:   cfg.BatchChunkSize,
		},
		Files: &services.FileService{
			DB:           db,
			StorageDir:   cfg.StorageDir,
			MaxFileSize:  cfg.MaxFileSize,
			AllowedTypes: cfg.AllowedFileTypes,
		},
		Images:     images,
		Translator: translator,
		Auth:       services.NewAuthService(cfg, db),
		Usage:      services.NewUsageService(db, collections),
		Trending:   trending,
		Health:     &services.HealthService{Config: cfg, DB: db, Images: images, Translator: translator},
		Scheduler:  functions.NewTrendingScheduler(trending, cfg.TrendingInterval, true),
	}
}

// the collectors register globally, so every app shares one instance
var (
	promOnce sync.Once
	prom     *fiberprometheus.FiberPrometheus
)

func prometheusMiddleware() *fiberprometheus.FiberPrometheus {
	promOnce.Do(func() {
		prom = fiberprometheus.New("memebase")
	})
	return prom
}

// New creates the Fiber app with all middleware and routes
func New(cfg *config.Config, svc *Services) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler:          middleware.ErrorHandler,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		BodyLimit:             bodyLimit(cfg.MaxFileSize),
		DisableStartupMessage: true,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.RequestContext())
	app.Use(logger.New(logger.Config{
		Format: "${time} | ${status} | ${latency} | ${method} ${path} | ${locals:requestid}\n",
	}))
	app.Use(compress.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:  cfg.CORSOrigins,
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, X-Api-Version",
		ExposeHeaders: "X-Api-Version, X-Request-ID",
	}))

	// Prometheus metrics
	prometheus := prometheusMiddleware()
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)

	// Swagger documentation
	app.Get("/swagger/*", swagger.HandlerDefault)

	// API routes under /api
	api := app.Group("/api")
	api.Use(middleware.VersionMiddleware())

	RegisterRoutes(api, svc)

	// 404 handler
	app.Use(middleware.NotFound)

	return app
}

// RegisterRoutes mounts every resource on router. Reads are public, writes
// need an admin bearer token.
func RegisterRoutes(router fiber.Router, svc *Services) {
	authn := middleware.Authenticate(svc.Auth)
	admin := middleware.RequireAdmin(svc.Auth)

	collections := &handlers.CollectionHandler{Collections: svc.Collections}
	documents := &handlers.DocumentHandler{Documents: svc.Documents}
	files := &handlers.FileHandler{Files: svc.Files}
	images := &handlers.ImageHandler{Images: svc.Images}
	translate := &handlers.TranslateHandler{Translator: svc.Translator}
	auth := &handlers.AuthHandler{Auth: svc.Auth}
	fns := &handlers.FunctionHandler{Usage: svc.Usage, Scheduler: svc.Scheduler}
	health := &handlers.HealthHandler{Service: svc.Health}

	router.Get("/health", health.Health)

	// Collection schemas
	router.Get("/collections", collections.ListCollections)
	router.Post("/collections", authn, admin, collections.CreateCollection)
	router.Get("/collections/:slug", collections.GetCollection)
	router.Put("/collections/:slug", authn, admin, collections.UpdateCollection)
	router.Delete("/collections/:slug", authn, admin, collections.DeleteCollection)

	// Documents
	docs := router.Group("/documents")
	docs.Post("/memes/:id/usage", authn, fns.RecordUsage)
	docs.Get("/:collection/stats/increase", documents.IncreaseOverTime)
	docs.Get("/:collection", documents.ListDocuments)
	docs.Post("/:collection", authn, admin, documents.CreateDocument)
	docs.Delete("/:collection", authn, admin, documents.DeleteDocuments)
	docs.Post("/:collection/batch", authn, admin, documents.CreateDocuments)
	docs.Get("/:collection/:id", documents.GetDocument)
	docs.Put("/:collection/:id", authn, admin, documents.UpdateDocument)
	docs.Delete("/:collection/:id", authn, admin, documents.DeleteDocument)

	// Local file storage
	router.Get("/files/:bucket", files.ListFiles)
	router.Post("/files/:bucket", authn, admin, files.UploadFile)
	router.Get("/files/:bucket/:id", files.GetFile)
	router.Delete("/files/:bucket/:id", authn, admin, files.DeleteFile)
	router.Get("/files/:bucket/:id/view", files.ViewFile)
	router.Get("/files/:bucket/:id/download", files.DownloadFile)

	// ImageKit, /auth before /:id
	router.Get("/images/auth", authn, admin, images.AuthParams)
	router.Get("/images", images.ListImages)
	router.Post("/images", authn, admin, images.UploadImage)
	router.Get("/images/:id", images.GetImage)
	router.Delete("/images/:id", authn, admin, images.DeleteImage)

	// Auth
	router.Get("/auth/me", authn, auth.Me)
	router.Post("/auth/refresh", auth.Refresh)
	router.Get("/auth/admin", authn, auth.Admin)

	router.Post("/simple-translate", translate.Translate)

	// Functions
	router.Post("/functions/trending", authn, admin, fns.Trending)
	router.Post("/functions/meme-created", authn, admin, fns.MemeCreated)
}

// bodyLimit leaves room for the multipart envelope around the largest file
func bodyLimit(maxFileSize int64) int {
	return int(max(maxFileSize+1<<20, 4<<20))
}
