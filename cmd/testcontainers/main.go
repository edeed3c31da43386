package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/localnerve/memebase/internal/logging"
	"github.com/localnerve/memebase/internal/testutil"
)

func main() {
	var showHelp bool
	flag.BoolVar(&showHelp, "h", false, "show help")
	var envFilename string
	flag.StringVar(&envFilename, "f", "", "path to the .env file")
	flag.Parse()

	usage := `
Run a memebase database container with the environment variables from the .env file.
Prints the DB_* variables to reach it and runs until interrupted.

Usage:

testcontainers [-h] [-f ENV_FILE_PATH]

ENV_FILE_PATH: path to the .env file (DB_TYPE, DB_IMAGE, DB_DATABASE, DB_USER, DB_PASSWORD)

example
  testcontainers -f /path/to/something/.env
`
	// if -h flag print usage and return
	if showHelp {
		fmt.Println(usage)
		return
	}

	logging.Init(logging.Config{Format: "console"})

	if envFilename != "" {
		logging.Info().Str("file", envFilename).Msg("Loading environment variables")
		if err := godotenv.Load(envFilename); err != nil {
			logging.Fatal().Err(err).Msg("Failed to load environment variables")
		}
	} else {
		logging.Info().Msg("No environment file specified, using current environment variables")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	db, err := testutil.StartDatabase(ctx, testutil.DatabaseOptions{
		DBType:   os.Getenv("DB_TYPE"),
		Image:    os.Getenv("DB_IMAGE"),
		Database: os.Getenv("DB_DATABASE"),
		User:     os.Getenv("DB_USER"),
		Password: os.Getenv("DB_PASSWORD"),
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create test container")
	}

	cfg := db.Config
	fmt.Printf("DB_TYPE=%s\nDB_HOST=%s\nDB_PORT=%s\nDB_DATABASE=%s\nDB_USER=%s\nDB_PASSWORD=%s\n",
		cfg.DBType, cfg.DBHost, cfg.DBPort, cfg.DBDatabase, cfg.DBUser, cfg.DBPassword)

	<-ctx.Done()
	logging.Info().Msg("Received signal, terminating test container...")
	if err := db.Terminate(context.Background()); err != nil {
		logging.Error().Err(err).Msg("Failed to terminate test container")
	}
}
