package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	envPrefix                   = "UNIPILOT"
	defaultHTTPAddress          = "127.0.0.1:8080"
	defaultDatabasePath         = "unipilot.db"
	defaultLogLevel             = "info"
	defaultTokenTTLMinutes      = 30
	defaultBackendURL           = "http://127.0.0.1:8080"
	defaultBackendTimeoutSecond = 15
	defaultTimezone             = "Local"
	defaultWeekStart            = "sunday"
	defaultDocumentsDir         = "documents"

	// TokenIssuer and TokenAudience identify backend tokens. The CLI and the
	// server share them along with the signing secret.
	TokenIssuer   = "unipilot-backend"
	TokenAudience = "unipilot-api"
)

// AppConfig captures runtime configuration for the backend and the CLI.
type AppConfig struct {
	HTTPAddress    string
	DatabasePath   string
	LogLevel       string
	LogFile        string
	SigningSecret  string
	TokenTTL       time.Duration
	BackendURL     string
	BackendTimeout time.Duration
	Location       *time.Location
	WeekStart      time.Weekday
	DocumentsDir   string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("log.file", "")
	configViper.SetDefault("token.ttl_minutes", defaultTokenTTLMinutes)
	configViper.SetDefault("backend.url", defaultBackendURL)
	configViper.SetDefault("backend.timeout_seconds", defaultBackendTimeoutSecond)
	configViper.SetDefault("calendar.timezone", defaultTimezone)
	configViper.SetDefault("calendar.week_start", defaultWeekStart)
	configViper.SetDefault("documents.dir", defaultDocumentsDir)
}

// LoadEnvFile exports the variables of a dotenv file into the process
// environment without overriding variables that are already set. A missing
// file is ignored unless required is set.
func LoadEnvFile(path string, required bool) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	err := godotenv.Load(path)
	if err != nil && !required && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	location, err := time.LoadLocation(strings.TrimSpace(configViper.GetString("calendar.timezone")))
	if err != nil {
		return AppConfig{}, fmt.Errorf("calendar.timezone: %w", err)
	}
	weekStart, err := parseWeekday(configViper.GetString("calendar.week_start"))
	if err != nil {
		return AppConfig{}, err
	}

	cfg := AppConfig{
		HTTPAddress:    configViper.GetString("http.address"),
		DatabasePath:   configViper.GetString("database.path"),
		LogLevel:       configViper.GetString("log.level"),
		LogFile:        configViper.GetString("log.file"),
		SigningSecret:  configViper.GetString("auth.signing_secret"),
		TokenTTL:       time.Duration(configViper.GetInt("token.ttl_minutes")) * time.Minute,
		BackendURL:     configViper.GetString("backend.url"),
		BackendTimeout: time.Duration(configViper.GetInt("backend.timeout_seconds")) * time.Second,
		Location:       location,
		WeekStart:      weekStart,
		DocumentsDir:   configViper.GetString("documents.dir"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.SigningSecret) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if strings.TrimSpace(c.BackendURL) == "" {
		return fmt.Errorf("backend.url is required")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("token.ttl_minutes must be positive")
	}
	if c.BackendTimeout <= 0 {
		return fmt.Errorf("backend.timeout_seconds must be positive")
	}
	return nil
}

func parseWeekday(raw string) (time.Weekday, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	for day := time.Sunday; day <= time.Saturday; day++ {
		if strings.ToLower(day.String()) == value {
			return day, nil
		}
	}
	return time.Sunday, fmt.Errorf("calendar.week_start: unknown weekday %q", raw)
}
