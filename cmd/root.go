package cmd

import (
	"context"
	"io"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/thoughtnest/thoughtnest/internal/config"
)

var rootCmdPersistentFlags struct {
	LogFile    string
	ConfigFile string
	LogLevel   string
	EnvFile    string
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootCmdPersistentFlags.LogFile, "log-file", "", "File to write logs to")
	rootCmd.PersistentFlags().StringVarP(&rootCmdPersistentFlags.ConfigFile, "config", "c", "", "Path to config file (default: search for config.yml in current dir, ~/.thoughtnest, /etc/thoughtnest)")
	rootCmd.PersistentFlags().StringVar(&rootCmdPersistentFlags.LogLevel, "log-level", "", "Log level (debug, info, warn, error) - overrides config file setting")
	rootCmd.PersistentFlags().StringVar(&rootCmdPersistentFlags.EnvFile, "env-file", ".env", "Optional dotenv file with THOUGHTNEST_* variables")
}

var rootCmd = &cobra.Command{
	Use:   "thoughtnest",
	Short: "ThoughtNest is a multi-user blog with comments, likes and an admin dashboard",
	Long:  `ThoughtNest serves a multi-user blog: accounts and profiles, posts with categories and tags, comments, likes, site settings and a staff dashboard.`,
	Example: `thoughtnest serve --config config.yml
  thoughtnest migrate -c /path/to/config.yml
  thoughtnest create-admin --username root --email root@example.com`,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		loadEnvFile()
		setLogLevel(rootCmdPersistentFlags.LogLevel)
		logToFile()
	},
}

// loadConfig reads the config file and applies the log level from it
// unless one was given on the command line.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(rootCmdPersistentFlags.ConfigFile)
	if err != nil {
		return nil, err
	}
	if rootCmdPersistentFlags.LogLevel == "" && cfg.LogLevel != "" {
		setLogLevel(cfg.LogLevel)
	}
	return cfg, nil
}

func loadEnvFile() {
	if rootCmdPersistentFlags.EnvFile == "" {
		return
	}
	if err := godotenv.Load(rootCmdPersistentFlags.EnvFile); err != nil {
		if !os.IsNotExist(err) {
			log.Warn("failed to load env file", "file", rootCmdPersistentFlags.EnvFile, "error", err)
		}
		return
	}
	log.Debug("loaded env file", "file", rootCmdPersistentFlags.EnvFile)
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "info", "":
		log.SetLevel(log.InfoLevel)
	case "warn":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	default:
		log.Warnf("unknown log level %s, defaulting to info", level)
		log.SetLevel(log.InfoLevel)
	}
}

func logToFile() {
	if rootCmdPersistentFlags.LogFile == "" {
		return
	}
	file, err := os.OpenFile(rootCmdPersistentFlags.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644) //nolint:gosec
	if err != nil {
		log.Errorf("failed to open log file: %v", err)
		return
	}

	multiWriter := io.MultiWriter(os.Stdout, file)
	log.SetOutput(multiWriter)
	log.Info("logging to both console and file", "file", rootCmdPersistentFlags.LogFile)
}

func Execute(ctx context.Context) error {
	return fang.Execute(ctx, rootCmd)
}
