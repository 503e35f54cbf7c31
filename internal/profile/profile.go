package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Profile is configuration to start the main server.
type Profile struct {
	// Mode can be "prod", "dev" or "demo".
	Mode string
	// Addr is the binding address for the server.
	Addr string
	// Port is the binding port for the server.
	Port int
	// Data is the directory for sqlite data files.
	Data string
	// Driver is the database driver: sqlite or postgres.
	Driver string
	// DSN is the database connection string.
	DSN string
	// InstanceURL is the public URL of the instance, used by the healthcheck
	// subcommand and surfaced to SDK clients as RAL_SERVER_URL.
	InstanceURL string
	// BusURL is the Redis-style URL of an external resolution bus. It is
	// only logged at startup; the in-process broker is used either way.
	BusURL string
	// CORSOrigins is the comma-separated list of allowed CORS origins.
	CORSOrigins string
	// SecretKey signs nothing in the core but is threaded through so the
	// auth collaborator can share one profile.
	SecretKey string
	// Version is the current version of the server.
	Version string

	// Context engine thresholds, overridable via environment.
	DefaultConfidenceThreshold float64
	HighConfidenceThreshold    float64
	ContextDecayHours          int
	EphemeralTTLSeconds        int
	MaxContextTokens           int
	MinRelevanceScore          float64
	SlowPathTimeoutMillis      int
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

func (p *Profile) CORSOriginList() []string {
	if p.CORSOrigins == "" {
		return nil
	}
	parts := strings.Split(p.CORSOrigins, ",")
	origins := make([]string, 0, len(parts))
	for _, part := range parts {
		if origin := strings.TrimSpace(part); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvOrDefaultFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// FromEnv loads configuration from environment variables.
func (p *Profile) FromEnv() {
	if p.InstanceURL == "" {
		p.InstanceURL = getEnvOrDefault("RAL_SERVER_URL", "")
	}
	if p.DSN == "" {
		p.DSN = getEnvOrDefault("RAL_DATABASE_URL", "")
	}
	if p.BusURL == "" {
		p.BusURL = getEnvOrDefault("RAL_BUS_URL", "")
	}
	if p.CORSOrigins == "" {
		p.CORSOrigins = getEnvOrDefault("RAL_CORS_ORIGINS", "")
	}
	if p.SecretKey == "" {
		p.SecretKey = getEnvOrDefault("RAL_SECRET_KEY", "")
	}

	p.DefaultConfidenceThreshold = getEnvOrDefaultFloat("DEFAULT_CONFIDENCE_THRESHOLD", 0.5)
	p.HighConfidenceThreshold = getEnvOrDefaultFloat("HIGH_CONFIDENCE_THRESHOLD", 0.8)
	p.ContextDecayHours = getEnvOrDefaultInt("CONTEXT_DECAY_HOURS", 24)
	p.EphemeralTTLSeconds = getEnvOrDefaultInt("EPHEMERAL_CONTEXT_TTL_SECONDS", 3600)
	p.MaxContextTokens = getEnvOrDefaultInt("MAX_CONTEXT_TOKENS", 500)
	p.MinRelevanceScore = getEnvOrDefaultFloat("MIN_RELEVANCE_SCORE", 0.3)
	p.SlowPathTimeoutMillis = getEnvOrDefaultInt("RAL_SLOW_PATH_TIMEOUT_MS", 150)
}

// Validate checks the profile for obvious misconfiguration and fills
// derived defaults.
func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.Mode == "prod" && p.Data == "" {
		p.Data = "/var/opt/ralcore"
	}

	if p.Driver == "" {
		p.Driver = "sqlite"
	}
	if p.Driver != "sqlite" && p.Driver != "postgres" {
		return errors.Errorf("unsupported database driver %q", p.Driver)
	}
	if p.Driver == "postgres" && p.DSN == "" {
		return errors.New("dsn is required for postgres driver")
	}

	if p.Data == "" {
		p.Data = "."
	}
	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		return errors.Wrap(err, "failed to check data directory")
	}
	p.Data = dataDir

	if p.Driver == "sqlite" && p.DSN == "" {
		dbFile := fmt.Sprintf("ralcore_%s.db", p.Mode)
		p.DSN = filepath.Join(p.Data, dbFile)
	}

	if p.DefaultConfidenceThreshold < 0 || p.DefaultConfidenceThreshold > 1 {
		return errors.Errorf("confidence threshold out of range: %f", p.DefaultConfidenceThreshold)
	}
	if p.ContextDecayHours <= 0 {
		p.ContextDecayHours = 24
	}
	if p.EphemeralTTLSeconds <= 0 {
		p.EphemeralTTLSeconds = 3600
	}

	return nil
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}
	dataDir = strings.TrimSuffix(dataDir, "/")

	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data directory %q", dataDir)
	}

	return dataDir, nil
}
