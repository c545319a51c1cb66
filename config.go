package conformsql

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

// ErrConfigValidation is returned when configuration validation fails
var ErrConfigValidation = errors.New("configuration validation failed")

// NoTableSpecified is the table designator meaning "create a throwaway table".
const NoTableSpecified = "no_table_specified"

// Config represents the conformsql configuration
type Config struct {
	Driver          string       `yaml:"driver"`
	Dialect         string       `yaml:"dialect"`
	Host            string       `yaml:"host"`
	Connection      string       `yaml:"connection"` // DSN template; {host} and {port} are substituted
	DefaultDatabase string       `yaml:"default_database"`
	Run             RunConfig    `yaml:"run"`
	Output          OutputConfig `yaml:"output"`
}

// RunConfig represents per-query execution defaults
type RunConfig struct {
	MaxBatchRows int `yaml:"max_batch_rows"`
}

// OutputConfig represents diagnostic output settings
type OutputConfig struct {
	Color *bool `yaml:"color"` // nil means auto-detect
}

// LoadConfig loads configuration from the specified file
func LoadConfig(configPath string) (*Config, error) {
	// Load .env files first
	err := loadEnvFiles()
	if err != nil {
		return nil, fmt.Errorf("failed to load environment files: %w", err)
	}

	// Check if config file exists
	_, err = os.Stat(configPath)
	if os.IsNotExist(err) {
		// Return default configuration if file doesn't exist
		config := getDefaultConfig()
		expandConfigEnvVars(config)

		return config, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return ParseConfig(data)
}

// ParseConfig decodes, validates and completes a configuration document.
func ParseConfig(data []byte) (*Config, error) {
	// Parse YAML with strict mode to detect unknown fields
	var config Config

	err := yaml.UnmarshalWithOptions(data, &config, yaml.Strict())
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	expandConfigEnvVars(&config)
	applyDefaults(&config)

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// validateConfig validates the configuration for common errors and inconsistencies
func validateConfig(config *Config) error {
	if _, ok := DialectForDriver(config.Driver); !ok {
		return fmt.Errorf("%w: unknown driver '%s': must be one of pgx, mysql, sqlite3, sqlite", ErrConfigValidation, config.Driver)
	}

	validDialects := map[Dialect]bool{
		DialectPostgres: true,
		DialectMySQL:    true,
		DialectSQLite:   true,
		DialectMariaDB:  true,
	}
	if !validDialects[Dialect(config.Dialect)] {
		return fmt.Errorf("%w: invalid dialect '%s': must be one of postgres, mysql, mariadb, sqlite", ErrConfigValidation, config.Dialect)
	}

	if config.Run.MaxBatchRows < 0 {
		return fmt.Errorf("%w: run.max_batch_rows must be non-negative, got %d", ErrConfigValidation, config.Run.MaxBatchRows)
	}

	if strings.Contains(config.DefaultDatabase, ".") {
		return fmt.Errorf("%w: default_database '%s' must not contain a dot", ErrConfigValidation, config.DefaultDatabase)
	}

	return nil
}

// getDefaultConfig returns the default configuration
func getDefaultConfig() *Config {
	config := &Config{}
	applyDefaults(config)

	return config
}

// applyDefaults applies default values to missing configuration fields
func applyDefaults(config *Config) {
	if config.Driver == "" {
		config.Driver = "sqlite3"
	}

	if config.Dialect == "" {
		dialect, _ := DialectForDriver(config.Driver)
		config.Dialect = string(dialect)
	}

	if config.Host == "" {
		config.Host = "localhost"
	}

	if config.Connection == "" {
		config.Connection = "file:conformsql?mode=memory&cache=shared"
	}

	if config.DefaultDatabase == "" {
		config.DefaultDatabase = "test"
	}

	if config.Run.MaxBatchRows == 0 {
		config.Run.MaxBatchRows = 3
	}
}

// DataSourceName renders the connection template for the given server port.
func (c *Config) DataSourceName(port int) string {
	dsn := strings.ReplaceAll(c.Connection, "{host}", c.Host)
	return strings.ReplaceAll(dsn, "{port}", strconv.Itoa(port))
}

// OverrideDriver replaces the driver and derives the dialect from it.
func (c *Config) OverrideDriver(driver string) error {
	dialect, ok := DialectForDriver(driver)
	if !ok {
		return fmt.Errorf("%w: unknown driver '%s': must be one of pgx, mysql, sqlite3, sqlite", ErrConfigValidation, driver)
	}

	c.Driver = driver
	c.Dialect = string(dialect)

	return nil
}

// ResolvedDialect returns the dialect to render SQL for.
func (c *Config) ResolvedDialect() Dialect {
	return Dialect(c.Dialect)
}

// loadEnvFiles loads .env files if they exist
func loadEnvFiles() error {
	if fileExists(".env") {
		err := godotenv.Load(".env")
		if err != nil {
			return fmt.Errorf("failed to load .env file: %w", err)
		}
	}

	return nil
}

var (
	bracedEnvVar = regexp.MustCompile(`\$\{([^}]+)\}`)
	bareEnvVar   = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)
)

// expandEnvVars expands environment variables in the format ${VAR} or $VAR
func expandEnvVars(s string) string {
	s = bracedEnvVar.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(match[2 : len(match)-1])
	})

	return bareEnvVar.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(match[1:])
	})
}

// expandConfigEnvVars expands environment variables in string settings
func expandConfigEnvVars(config *Config) {
	config.Driver = expandEnvVars(config.Driver)
	config.Host = expandEnvVars(config.Host)
	config.Connection = expandEnvVars(config.Connection)
	config.DefaultDatabase = expandEnvVars(config.DefaultDatabase)
}

// fileExists checks if a file exists
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}
