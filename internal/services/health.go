package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/localnerve/memebase/internal/config"
	"github.com/localnerve/memebase/internal/logging"
	"github.com/localnerve/memebase/internal/utils"
	gobreaker "github.com/sony/gobreaker/v2"
	"gorm.io/gorm"
)

// HealthCheckResult represents the result of a health check
type HealthCheckResult struct {
	Status       string            `json:"status"`
	Database     string            `json:"database"`
	Storage      string            `json:"storage"`
	ImageKit     string            `json:"imagekit"`
	Translate    string            `json:"translate"`
	Details      map[string]string `json:"details,omitempty"`
	ErrorMessage string            `json:"error,omitempty"`
}

// HealthService checks the database, the file store and the upstream APIs
type HealthService struct {
	Config     *config.Config
	DB         *gorm.DB
	Images     *ImageKitClient
	Translator *Translator
}

// HealthCheck performs a comprehensive health check of the service.
// Upstream APIs only degrade the status when their breaker is open.
func (s *HealthService) HealthCheck(ctx context.Context) HealthCheckResult {
	result := HealthCheckResult{
		Status:  "healthy",
		Details: make(map[string]string),
	}
	fail := func(msg string) {
		result.Status = "unhealthy"
		if result.ErrorMessage == "" {
			result.ErrorMessage = msg
		} else {
			result.ErrorMessage += "; " + msg
		}
	}

	// Check database connectivity
	sqlDB, err := s.DB.DB()
	if err != nil {
		result.Database = "error"
		result.Details["database_error"] = err.Error()
		fail(fmt.Sprintf("Database connection error: %v", err))
		logging.Warn().Err(err).Msg("Health check failed - database connection")
	} else if err := sqlDB.PingContext(ctx); err != nil {
		result.Database = "unreachable"
		result.Details["database_ping_error"] = err.Error()
		fail(fmt.Sprintf("Database ping failed: %v", err))
		logging.Warn().Err(err).Msg("Health check failed - database ping")
	} else {
		result.Database = "ok"
		result.Details["database_type"] = s.Config.DBType
		result.Details["database_name"] = s.Config.DBDatabase
	}

	// Check the file store is writable
	if err := checkWritable(s.Config.StorageDir); err != nil {
		result.Storage = "unwritable"
		result.Details["storage_error"] = err.Error()
		fail(fmt.Sprintf("Storage check failed: %v", err))
		logging.Warn().Err(err).Msg("Health check failed - storage")
	} else {
		result.Storage = "ok"
	}

	result.ImageKit = "disabled"
	if s.Images.Enabled() {
		result.ImageKit = upstreamHealth(s.Images.upstream, s.Config.ImageKitAPIURL, result.Details, "imagekit")
	}

	result.Translate = "disabled"
	if s.Translator != nil {
		result.Translate = upstreamHealth(s.Translator.upstream, s.Config.TranslateURL, result.Details, "translate")
	}

	if result.Status == "healthy" && (result.ImageKit == "open" || result.Translate == "open") {
		result.Status = "degraded"
	}

	if result.Status == "healthy" {
		logging.Debug().Msg("Health check passed - all systems operational")
	}
	return result
}

func upstreamHealth(u *upstream, rawURL string, details map[string]string, key string) string {
	if u.State() == gobreaker.StateOpen {
		return "open"
	}
	if err := utils.PingUpstream(rawURL); err != nil {
		details[key+"_error"] = err.Error()
		return "unreachable"
	}
	return "ok"
}

func checkWritable(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".health-*")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(filepath.Clean(name))
}
