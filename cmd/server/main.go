// main.go
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

package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/localnerve/memebase/internal/config"
	"github.com/localnerve/memebase/internal/database"
	"github.com/localnerve/memebase/internal/events"
	"github.com/localnerve/memebase/internal/functions"
	"github.com/localnerve/memebase/internal/logging"
	"github.com/localnerve/memebase/internal/server"
	"github.com/localnerve/memebase/internal/services"
)

// @title memebase API
// @version 1.0.0
// @description Meme management platform backend: collections, documents, files, images, translation and background functions
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.url https://github.com/localnerve/memebase
// @contact.email info@localnerve.com

// @license.name AGPL-3.0
// @license.url https://www.gnu.org/licenses/agpl-3.0.html

// @host localhost:3000
// @BasePath /api
// @schemes http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	// Connect to database
	db, err := database.Connect(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer database.Close(db)

	// Run auto-migrations
	if err := database.AutoMigrate(db); err != nil {
		logging.Fatal().Err(err).Msg("Failed to run migrations")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Event bus for document lifecycle events
	bus, err := events.NewBus()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create event bus")
	}

	svc := server.NewServices(cfg, db, bus, nil)
	if err := svc.Collections.EnsureCollections(ctx, services.DefaultCollections()); err != nil {
		logging.Fatal().Err(err).Msg("Failed to seed collections")
	}

	// Background functions
	functions.Register(bus, svc.Usage)
	go func() {
		if err := bus.Run(ctx); err != nil {
			logging.Error().Err(err).Msg("Event router stopped")
		}
	}()
	go func() {
		if err := svc.Scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Trending scheduler stopped")
		}
	}()

	app := server.New(cfg, svc)

	// Graceful shutdown
	go func() {
		<-ctx.Done()
		logging.Info().Msg("Gracefully shutting down...")
		if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
			logging.Error().Err(err).Msg("Server shutdown failed")
		}
		if err := bus.Close(); err != nil {
			logging.Error().Err(err).Msg("Event bus close failed")
		}
	}()

	// Start server
	logging.Info().Str("port", cfg.Port).Msg("Starting server")
	if err := app.Listen(":" + cfg.Port); err != nil {
		logging.Fatal().Err(err).Msg("Failed to start server")
	}

	logging.Info().Msg("Server stopped")
}
