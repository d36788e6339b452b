package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/MarcoPoloResearchLab/unipilot/internal/config"
	"github.com/MarcoPoloResearchLab/unipilot/internal/logging"
)

const defaultEnvFile = ".env"

var (
	cfgFile string
	envFile string
)

func main() {
	rootCmd := newRootCommand()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "unipilot",
		Short:        "Course, assignment, and document planner",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
	}

	setupFlags(rootCmd)
	rootCmd.AddCommand(newServeCommand(), newAgendaCommand(), newStatusCommand())
	return rootCmd
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	flags := cmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Path to configuration file")
	flags.StringVar(&envFile, "env-file", defaultEnvFile, "Dotenv file exported before reading UNIPILOT_* variables")
	flags.String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	flags.String("database-path", defaults.GetString("database.path"), "SQLite database path")
	flags.String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	flags.String("log-file", defaults.GetString("log.file"), "Also write logs to this rotating file")
	flags.String("signing-secret", "", "Backend signing secret (overrides env)")
	flags.Int("token-ttl-minutes", defaults.GetInt("token.ttl_minutes"), "Backend token TTL in minutes")
	flags.String("backend-url", defaults.GetString("backend.url"), "Backend base URL used by client commands")
	flags.Int("backend-timeout-seconds", defaults.GetInt("backend.timeout_seconds"), "Backend request timeout in seconds")
	flags.String("timezone", defaults.GetString("calendar.timezone"), "IANA zone for deadlines without an offset")
	flags.String("week-start", defaults.GetString("calendar.week_start"), "First day of the week")
	flags.String("documents-dir", defaults.GetString("documents.dir"), "Directory holding local document copies")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "log.file", "log-file")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
	bindFlag(cmd, "token.ttl_minutes", "token-ttl-minutes")
	bindFlag(cmd, "backend.url", "backend-url")
	bindFlag(cmd, "backend.timeout_seconds", "backend-timeout-seconds")
	bindFlag(cmd, "calendar.timezone", "timezone")
	bindFlag(cmd, "calendar.week_start", "week-start")
	bindFlag(cmd, "documents.dir", "documents-dir")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if err := config.LoadEnvFile(envFile, envFile != defaultEnvFile); err != nil {
		return err
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

// loadRuntime resolves configuration and the logger shared by every command.
func loadRuntime() (config.AppConfig, *zap.Logger, error) {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return config.AppConfig{}, nil, err
	}
	logger, err := logging.New(logging.Options{Level: appConfig.LogLevel, File: appConfig.LogFile})
	if err != nil {
		return config.AppConfig{}, nil, err
	}
	return appConfig, logger, nil
}
