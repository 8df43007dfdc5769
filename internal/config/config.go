package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server         ServerConfig
	Pipeline       PipelineConfig
	Regularization RegularizationConfig
	Vexcel         VexcelConfig
	Database       DatabaseConfig
	CORS           CORSConfig
}

// ServerConfig holds the HTTP control surface configuration.
type ServerConfig struct {
	Host string
	Port string
	Env  string
}

// PipelineConfig holds the extraction run configuration.
type PipelineConfig struct {
	// DataRoot is the directory holding the per-region source partitions.
	DataRoot string

	// AOIPath is the AOI candidates GeoJSON file, written by fetch-aois and
	// read by extract and serve.
	AOIPath string

	// OutputDir receives batch archives and descriptors.
	OutputDir string

	// Source selects the layer-store backend, "file" or "postgres".
	Source string

	// Dedup enables multi-frame duplicate removal after the join.
	Dedup bool
}

// RegularizationConfig parameterizes the footprint regularizer.
type RegularizationConfig struct {
	Enabled                    bool
	ParallelThreshold          float64
	SimplifyTolerance          float64
	Allow45                    bool
	DiagonalThresholdReduction float64
	AllowCircles               bool
	Workers                    int
}

// VexcelConfig holds the imagery-provider API configuration.
type VexcelConfig struct {
	BaseURL  string
	Username string
	Password string
}

// DatabaseConfig holds the PostgreSQL connection configuration, used only
// when the source is "postgres".
type DatabaseConfig struct {
	URL     string
	PoolMin int
	PoolMax int
}

// CORSConfig holds CORS configuration for the HTTP control surface.
type CORSConfig struct {
	Origins []string
}

// Source backends.
const (
	SourceFile     = "file"
	SourcePostgres = "postgres"
)

// Load reads configuration from environment variables.
// It uses viper to read values and provides sensible defaults for development.
// A .env file in the working directory is folded into the environment first;
// its absence is not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()

	// Set defaults for development
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("DATA_ROOT", "./data")
	v.SetDefault("AOI_PATH", "./aois.geojson")
	v.SetDefault("OUTPUT_DIR", "./output")
	v.SetDefault("SOURCE", SourceFile)
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DB_POOL_MIN", 2)
	v.SetDefault("DB_POOL_MAX", 10)
	v.SetDefault("REGULARIZATION_ENABLED", true)
	v.SetDefault("REG_PARALLEL_THRESHOLD", 1.0)
	v.SetDefault("REG_SIMPLIFY_TOLERANCE", 0.5)
	v.SetDefault("REG_ALLOW_45", true)
	v.SetDefault("REG_DIAGONAL_THRESHOLD", 15.0)
	v.SetDefault("REG_ALLOW_CIRCLES", false)
	v.SetDefault("REG_WORKERS", 0)
	v.SetDefault("MFD_DEDUP_ENABLED", true)
	v.SetDefault("VEXCEL_BASE_URL", "https://api.vexcelgroup.com/v2")
	v.SetDefault("VEXCEL_USERNAME", "")
	v.SetDefault("VEXCEL_PASSWORD", "")
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")

	// Bind environment variables
	v.AutomaticEnv()

	// Build configuration
	cfg := &Config{
		Server: ServerConfig{
			Host: v.GetString("SERVER_HOST"),
			Port: v.GetString("SERVER_PORT"),
			Env:  v.GetString("ENVIRONMENT"),
		},
		Pipeline: PipelineConfig{
			DataRoot:  v.GetString("DATA_ROOT"),
			AOIPath:   v.GetString("AOI_PATH"),
			OutputDir: v.GetString("OUTPUT_DIR"),
			Source:    v.GetString("SOURCE"),
			Dedup:     v.GetBool("MFD_DEDUP_ENABLED"),
		},
		Regularization: RegularizationConfig{
			Enabled:                    v.GetBool("REGULARIZATION_ENABLED"),
			ParallelThreshold:          v.GetFloat64("REG_PARALLEL_THRESHOLD"),
			SimplifyTolerance:          v.GetFloat64("REG_SIMPLIFY_TOLERANCE"),
			Allow45:                    v.GetBool("REG_ALLOW_45"),
			DiagonalThresholdReduction: v.GetFloat64("REG_DIAGONAL_THRESHOLD"),
			AllowCircles:               v.GetBool("REG_ALLOW_CIRCLES"),
			Workers:                    v.GetInt("REG_WORKERS"),
		},
		Vexcel: VexcelConfig{
			BaseURL:  v.GetString("VEXCEL_BASE_URL"),
			Username: v.GetString("VEXCEL_USERNAME"),
			Password: v.GetString("VEXCEL_PASSWORD"),
		},
		Database: DatabaseConfig{
			URL:     v.GetString("DATABASE_URL"),
			PoolMin: v.GetInt("DB_POOL_MIN"),
			PoolMax: v.GetInt("DB_POOL_MAX"),
		},
		CORS: CORSConfig{
			Origins: parseOrigins(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("SERVER_PORT is required")
	}

	// Validate pipeline config
	if c.Pipeline.DataRoot == "" {
		return fmt.Errorf("DATA_ROOT is required")
	}
	if c.Pipeline.AOIPath == "" {
		return fmt.Errorf("AOI_PATH is required")
	}
	if c.Pipeline.OutputDir == "" {
		return fmt.Errorf("OUTPUT_DIR is required")
	}
	if c.Pipeline.Source != SourceFile && c.Pipeline.Source != SourcePostgres {
		return fmt.Errorf("SOURCE must be %q or %q, got %q", SourceFile, SourcePostgres, c.Pipeline.Source)
	}

	// Validate regularization config
	if c.Regularization.ParallelThreshold <= 0 {
		return fmt.Errorf("REG_PARALLEL_THRESHOLD must be positive")
	}
	if c.Regularization.SimplifyTolerance < 0 {
		return fmt.Errorf("REG_SIMPLIFY_TOLERANCE must be non-negative")
	}
	if c.Regularization.DiagonalThresholdReduction < 0 {
		return fmt.Errorf("REG_DIAGONAL_THRESHOLD must be non-negative")
	}
	if c.Regularization.Workers < 0 {
		return fmt.Errorf("REG_WORKERS must be non-negative")
	}

	// Validate database config, only load-bearing for the postgres source
	if c.Pipeline.Source == SourcePostgres {
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required when SOURCE=postgres")
		}
	}
	if c.Database.PoolMin < 0 {
		return fmt.Errorf("DB_POOL_MIN must be non-negative")
	}
	if c.Database.PoolMax < 1 {
		return fmt.Errorf("DB_POOL_MAX must be at least 1")
	}
	if c.Database.PoolMin > c.Database.PoolMax {
		return fmt.Errorf("DB_POOL_MIN must be less than or equal to DB_POOL_MAX")
	}

	// Validate CORS config
	if len(c.CORS.Origins) == 0 {
		return fmt.Errorf("CORS_ALLOWED_ORIGINS is required")
	}

	return nil
}

// parseOrigins splits a comma-separated string of origins into a slice.
func parseOrigins(origins string) []string {
	if origins == "" {
		return []string{}
	}

	parts := strings.Split(origins, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
