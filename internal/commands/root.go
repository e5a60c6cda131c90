// internal/commands/root.go
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mwiater/krites/internal/appconfig"
	"github.com/mwiater/krites/internal/logging"
)

var (
	cfgFile       string
	resumeFrom    string
	currentConfig *appconfig.Config
	appVersion    = "dev"
	appCommit     = "none"
	appDate       = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "krites",
	Short: "krites — score how well LLM backends describe API method signatures",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureConfigLoaded(); err != nil {
			return err
		}

		var cfg appconfig.Config
		if err := viper.Unmarshal(&cfg); err != nil {
			return fmt.Errorf("unmarshal config: %w", err)
		}
		cfg.ConfigPath = cfgFile
		cfg.ResumeFrom = resumeFrom
		cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
		currentConfig = &cfg

		// The progress view owns the terminal, so console logging is routed
		// to the log file only for those runs.
		if err := logging.Init(cfg.LogFilePath(), !cfg.Progress); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", appVersion, appCommit, appDate)

	defer logging.Close()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", appconfig.DefaultConfigPath, "config file (e.g., config/config.json)")
	rootCmd.PersistentFlags().StringVar(&resumeFrom, "resume-from", "", "resume from a previous results file")

	rootCmd.PersistentFlags().String("ground-truth", "", "path to the ground truth JSON file")
	rootCmd.PersistentFlags().String("output-dir", "", "output directory for checkpoints and results")
	rootCmd.PersistentFlags().String("log-file", "", "path to the log file")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().Bool("progress", false, "show a live progress view during the run")

	_ = viper.BindPFlag("groundTruthFile", rootCmd.PersistentFlags().Lookup("ground-truth"))
	_ = viper.BindPFlag("outputDir", rootCmd.PersistentFlags().Lookup("output-dir"))
	_ = viper.BindPFlag("logFile", rootCmd.PersistentFlags().Lookup("log-file"))
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("progress", rootCmd.PersistentFlags().Lookup("progress"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
}

// ensureConfigLoaded reads the config file, tolerating its absence so flags
// alone can drive a run.
func ensureConfigLoaded() error {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to load config: %w", err)
	}
	return nil
}

// GetConfig returns the loaded application configuration for other packages.
func GetConfig() *appconfig.Config {
	return currentConfig
}

// SetVersionInfo allows the main package to inject build-time variables.
func SetVersionInfo(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}
