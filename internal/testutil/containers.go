// This file starts database containers with testcontainers.
// It is used by the integration tests and by cmd/testcontainers.
//

package testutil

import (
	"context"
	"fmt"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/localnerve/memebase/internal/config"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// DatabaseContainer is a running database plus the config to reach it
type DatabaseContainer struct {
	Container testcontainers.Container
	Config    *config.Config
}

// Terminate stops and removes the container
func (d *DatabaseContainer) Terminate(ctx context.Context) error {
	if d == nil || d.Container == nil {
		return nil
	}
	return d.Container.Terminate(ctx)
}

// DatabaseOptions selects the engine and credentials
type DatabaseOptions struct {
	DBType   string // mysql (MariaDB image) or postgres
	Image    string
	Database string
	User     string
	Password string
}

func (o *DatabaseOptions) defaults() {
	if o.DBType == "" || o.DBType == "mariadb" {
		o.DBType = "mysql"
	}
	if o.Image == "" {
		o.Image = "mariadb:11"
		if o.DBType == "postgres" {
			o.Image = "postgres:17-alpine"
		}
	}
	if o.Database == "" {
		o.Database = "memebase"
	}
	if o.User == "" {
		o.User = "memebase"
	}
	if o.Password == "" {
		o.Password = "memebase"
	}
}

// StartDatabase starts a database container and waits until it listens
func StartDatabase(ctx context.Context, opts DatabaseOptions) (*DatabaseContainer, error) {
	opts.defaults()

	var (
		port    nat.Port
		env     map[string]string
		waitFor wait.Strategy
		err     error
	)
	switch opts.DBType {
	case "postgres":
		port, err = nat.NewPort("tcp", "5432")
		env = map[string]string{
			"POSTGRES_PASSWORD": opts.Password,
			"POSTGRES_USER":     opts.User,
			"POSTGRES_DB":       opts.Database,
		}
		waitFor = wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second)
	case "mysql":
		port, err = nat.NewPort("tcp", "3306")
		env = map[string]string{
			"MYSQL_ROOT_PASSWORD": opts.Password,
			"MYSQL_DATABASE":      opts.Database,
			"MYSQL_USER":          opts.User,
			"MYSQL_PASSWORD":      opts.Password,
		}
		waitFor = wait.ForListeningPort(port).WithStartupTimeout(60 * time.Second)
	default:
		return nil, fmt.Errorf("unsupported container database type %q", opts.DBType)
	}
	if err != nil {
		return nil, fmt.Errorf("database port: %w", err)
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        opts.Image,
			ExposedPorts: []string{string(port)},
			Env:          env,
			WaitingFor:   waitFor,
		},
		Started: true,
	})
	if err != nil {
		return nil, fmt.Errorf("start %s container: %w", opts.DBType, err)
	}
	db := &DatabaseContainer{Container: container}

	host, err := container.Host(ctx)
	if err != nil {
		_ = db.Terminate(ctx)
		return nil, fmt.Errorf("container host: %w", err)
	}
	mapped, err := container.MappedPort(ctx, port)
	if err != nil {
		_ = db.Terminate(ctx)
		return nil, fmt.Errorf("container port: %w", err)
	}

	db.Config = &config.Config{
		DBType:            opts.DBType,
		DBHost:            host,
		DBPort:            mapped.Port(),
		DBDatabase:        opts.Database,
		DBUser:            opts.User,
		DBPassword:        opts.Password,
		DBConnectionLimit: 5,
	}
	return db, nil
}
