package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/grae/internal/config"
	"github.com/zjrosen/grae/internal/log"
)

const localConfigPath = ".grae/config.yaml"

var (
	version = "dev"
	cfgFile string
	cfg     config.Config

	// appFs is the filesystem every command reads and writes through.
	appFs afero.Fs = afero.NewOsFs()

	closeLog = func() {}
)

var rootCmd = &cobra.Command{
	Use:   "grae",
	Short: "Gen files and typed resource loading",
	Long: `grae works with Gen, a small nested key-value format used to describe
assets, and loads assets through a typed resource registry that falls back
to a per-type default when a file is missing or broken.`,
	Version:           version,
	SilenceUsage:      true,
	PersistentPreRunE: setupLogging,
	PersistentPostRun: func(*cobra.Command, []string) { closeLog() },
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: .grae/config.yaml or ~/.config/grae/config.yaml)")
	rootCmd.PersistentFlags().String("root", "",
		"resource root directory")
	rootCmd.PersistentFlags().String("log-level", "",
		"log level: verbose, debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-file", "",
		"write logs to a file instead of stderr")

	bindFlags()
}

// bindFlags binds persistent flags to viper
func bindFlags() {
	_ = viper.BindPFlag("root_dir", rootCmd.PersistentFlags().Lookup("root"))
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.file", rootCmd.PersistentFlags().Lookup("log-file"))
}

func initConfig() {
	viper.SetFs(appFs)
	viper.SetEnvPrefix("GRAE")
	viper.AutomaticEnv()

	defaults := config.Defaults()
	viper.SetDefault("root_dir", defaults.RootDir)
	viper.SetDefault("log.level", defaults.Log.Level)
	viper.SetDefault("metrics.enabled", defaults.Metrics.Enabled)
	viper.SetDefault("watch.debounce", defaults.Watch.Debounce)
	viper.SetDefault("watch.extensions", defaults.Watch.Extensions)
	viper.SetDefault("tracing.enabled", defaults.Tracing.Enabled)
	viper.SetDefault("tracing.exporter", defaults.Tracing.Exporter)
	viper.SetDefault("tracing.file_path", defaults.Tracing.FilePath)
	viper.SetDefault("tracing.otlp_endpoint", defaults.Tracing.OTLPEndpoint)
	viper.SetDefault("tracing.sample_rate", defaults.Tracing.SampleRate)
	viper.SetDefault("tracing.service_name", defaults.Tracing.ServiceName)

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Config lookup order:
		// 1. .grae/config.yaml (current directory)
		// 2. ~/.config/grae/config.yaml (user config)
		if _, err := appFs.Stat(localConfigPath); err == nil {
			viper.SetConfigFile(localConfigPath)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(filepath.Join(home, ".config", "grae"))
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
	}

	// A missing config file is fine; defaults apply. `grae init` writes one.
	_ = viper.ReadInConfig()

	cfg = defaults
	_ = viper.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
	if cfg.Types == nil {
		cfg.Types = map[string]string{}
	}
}

// setupLogging validates the loaded config and points the package logger at
// stderr or the configured file.
func setupLogging(cmd *cobra.Command, _ []string) error {
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	level, _ := log.ParseLevel(cfg.Log.Level)

	if cfg.Log.File != "" {
		cleanup, err := log.Init(cfg.Log.File, level)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		closeLog = cleanup
		return nil
	}
	log.SetDefault(log.New(log.WithWriter(cmd.ErrOrStderr()), log.WithMinLevel(level)))
	closeLog = func() { log.SetDefault(nil) }
	return nil
}

// configPath returns the config file in use, or the local default when none
// was loaded.
func configPath() string {
	if used := viper.ConfigFileUsed(); used != "" {
		if _, err := appFs.Stat(used); err == nil {
			return used
		}
	}
	return localConfigPath
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
