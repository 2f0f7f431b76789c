package app

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/coursekit/coursemap/pkg/constants"
)

// Config holds the application configuration loaded from flags, environment
// variables, .env files, and defaults.
type Config struct {
	// Global flags
	Verbose bool
	Quiet   bool
	NoColor bool
	Format  string

	// Engine configuration
	CatalogPath         string
	StorePath           string
	PrefixLength        int
	ConfidenceThreshold int
	MaxBatchSize        int
	MatchTimeout        time.Duration

	// Semantic matching
	GeminiAPIKey string
	GeminiModel  string

	// Logging configuration
	LogLevel  string
	LogFormat string
}

// LoadConfig loads configuration from all sources in order of precedence:
// command-line flags (handled by cobra), environment variables, .env files,
// then defaults.
func LoadConfig() (*Config, error) {
	loadEnvFiles()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	bindAPIKeys()

	config := &Config{
		Verbose: viper.GetBool("verbose"),
		Quiet:   viper.GetBool("quiet"),
		NoColor: viper.GetBool("no-color"),
		Format:  viper.GetString("format"),

		CatalogPath:         viper.GetString("coursemap_catalog"),
		StorePath:           viper.GetString("coursemap_store"),
		PrefixLength:        viper.GetInt("coursemap_prefix_length"),
		ConfidenceThreshold: viper.GetInt("coursemap_confidence_threshold"),
		MaxBatchSize:        viper.GetInt("coursemap_max_batch_size"),
		MatchTimeout:        viper.GetDuration("coursemap_match_timeout"),

		GeminiAPIKey: firstNonEmpty(viper.GetString("GEMINI_API_KEY"), viper.GetString("GOOGLE_API_KEY")),
		GeminiModel:  viper.GetString("coursemap_gemini_model"),

		LogLevel:  getEnvOrDefault("LOG_LEVEL", ""),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "auto"),
	}

	if config.PrefixLength == 0 {
		config.PrefixLength = constants.DefaultPrefixLength
	}
	if config.ConfidenceThreshold == 0 {
		config.ConfidenceThreshold = constants.DefaultConfidenceThreshold
	}
	if config.MaxBatchSize == 0 {
		config.MaxBatchSize = constants.DefaultMaxBatchSize
	}
	if config.MatchTimeout == 0 {
		config.MatchTimeout = constants.DefaultMatchTimeout
	}

	return config, nil
}

// loadEnvFiles loads environment variables from .env files.
// .env.local overrides .env.
func loadEnvFiles() {
	for _, envFile := range []string{".env", ".env.local"} {
		_ = godotenv.Load(envFile)
	}
}

// bindAPIKeys explicitly binds the semantic matching API key environment
// variables to Viper so .env values are visible through viper.GetString.
func bindAPIKeys() {
	for _, key := range []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"} {
		_ = viper.BindEnv(key)
	}
}

// getEnvOrDefault returns the environment variable value or the default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
