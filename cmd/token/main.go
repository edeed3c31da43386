package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/localnerve/memebase/internal/config"
	"github.com/localnerve/memebase/internal/database"
	"github.com/localnerve/memebase/internal/logging"
	"github.com/localnerve/memebase/internal/services"
)

func main() {
	var (
		userID     string
		email      string
		name       string
		grantAdmin bool
		showHelp   bool
	)
	flag.StringVar(&userID, "user", "", "user id (token subject)")
	flag.StringVar(&email, "email", "", "user email")
	flag.StringVar(&name, "name", "", "user display name")
	flag.BoolVar(&grantAdmin, "grant-admin", false, "add the user to ADMIN_TEAM_ID before minting")
	flag.BoolVar(&showHelp, "h", false, "show help")
	flag.Parse()

	usage := `
Mint a bearer token for a memebase user with the configured JWT_SECRET.

Usage:

token -user USER_ID [-email EMAIL] [-name NAME] [-grant-admin]

example
  token -user 42 -email ops@example.com -grant-admin
`
	if showHelp || userID == "" {
		fmt.Println(usage)
		if !showHelp {
			os.Exit(2)
		}
		return
	}

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: "console"})

	db, err := database.Connect(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer database.Close(db)

	auth := services.NewAuthService(cfg, db)
	if grantAdmin {
		if err := database.AutoMigrate(db); err != nil {
			logging.Fatal().Err(err).Msg("Failed to run migrations")
		}
		if err := auth.GrantMembership(context.Background(), auth.AdminTeam(), userID, "admin"); err != nil {
			logging.Fatal().Err(err).Msg("Failed to grant admin membership")
		}
		logging.Info().Str("user", userID).Str("team", auth.AdminTeam()).Msg("Admin membership granted")
	}

	tok, err := auth.IssueToken(userID, email, name)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to issue token")
	}
	fmt.Println(tok.Token)
}
