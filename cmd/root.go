package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile     string
	dbPath      string
	redisURL    string
	logLevel    string
	backendMode string
	sessionPath string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "casedesk",
	Short: "Terminal-first legal case management",
	Long: `CaseDesk is a terminal client for managing legal cases.

Features:
- Account registration and sign in with a persisted session
- Dashboard of your cases with instant search
- Case creation with title, description and status
- Upgrade to the Pro plan through a simulated checkout
- Embedded SQLite backend or a hosted REST backend
- Optional Redis Streams activity feed`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.casedesk.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "./data/casedesk.db", "SQLite database path for the embedded backend")
	rootCmd.PersistentFlags().StringVar(&redisURL, "redis", "", "Redis connection URL for the activity feed (empty disables it)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&backendMode, "backend", "embedded", "Backend to use (embedded, rest)")
	rootCmd.PersistentFlags().StringVar(&sessionPath, "session", "", "session file (default is $HOME/.casedesk/session.json)")

	// Bind flags to viper
	viper.BindPFlag("database.path", rootCmd.PersistentFlags().Lookup("db"))
	viper.BindPFlag("redis.url", rootCmd.PersistentFlags().Lookup("redis"))
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("backend.mode", rootCmd.PersistentFlags().Lookup("backend"))
	viper.BindPFlag("session.path", rootCmd.PersistentFlags().Lookup("session"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	home, _ := os.UserHomeDir()

	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Search config in home directory with name ".casedesk" (without extension).
		if home != "" {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".casedesk")
	}

	// CASEDESK_BACKEND_URL overrides backend.url and so on.
	viper.SetEnvPrefix("casedesk")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	// Set defaults
	viper.SetDefault("backend.mode", "embedded")
	viper.SetDefault("backend.url", "")
	viper.SetDefault("backend.anon_key", "")
	viper.SetDefault("database.path", "./data/casedesk.db")
	viper.SetDefault("redis.url", "")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("session.path", defaultSessionPath(home))
	viper.SetDefault("upgrade.delay", 2*time.Second)
	viper.SetDefault("ui.theme", "dark")
}

func defaultSessionPath(home string) string {
	if home == "" {
		home = getWorkingDir()
	}
	return filepath.Join(home, ".casedesk", "session.json")
}

// GetConfig returns the current configuration values
func GetConfig() Config {
	cfg := Config{
		Backend: BackendConfig{
			Mode:    strings.ToLower(strings.TrimSpace(viper.GetString("backend.mode"))),
			URL:     viper.GetString("backend.url"),
			AnonKey: viper.GetString("backend.anon_key"),
		},
		Database: DatabaseConfig{
			Path: viper.GetString("database.path"),
		},
		Redis: RedisConfig{
			URL: viper.GetString("redis.url"),
		},
		Log: LogConfig{
			Level: viper.GetString("log.level"),
		},
		Session: SessionConfig{
			Path: viper.GetString("session.path"),
		},
		Upgrade: UpgradeConfig{
			Delay: viper.GetDuration("upgrade.delay"),
		},
		UI: UIConfig{
			Theme: viper.GetString("ui.theme"),
		},
	}
	if cfg.Session.Path == "" {
		home, _ := os.UserHomeDir()
		cfg.Session.Path = defaultSessionPath(home)
	}
	return cfg
}

// Config represents the application configuration
type Config struct {
	Backend  BackendConfig  `mapstructure:"backend"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Log      LogConfig      `mapstructure:"log"`
	Session  SessionConfig  `mapstructure:"session"`
	Upgrade  UpgradeConfig  `mapstructure:"upgrade"`
	UI       UIConfig       `mapstructure:"ui"`
}

// Backend modes.
const (
	ModeEmbedded = "embedded"
	ModeREST     = "rest"
)

type BackendConfig struct {
	Mode    string `mapstructure:"mode"`
	URL     string `mapstructure:"url"`
	AnonKey string `mapstructure:"anon_key"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type SessionConfig struct {
	Path string `mapstructure:"path"`
}

type UpgradeConfig struct {
	Delay time.Duration `mapstructure:"delay"`
}

type UIConfig struct {
	Theme string `mapstructure:"theme"`
}
