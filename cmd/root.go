package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"agriassist-cli/cmd/config"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var debug bool
var serverURL string = "http://localhost:5000"
var language string = "en"
var location string
var overrideCwd string

var rootCmd = &cobra.Command{
	Use:   "agriassist",
	Short: "AgriAssist CLI - Crop analysis, farming chat and tips from your terminal",
	Long: `AgriAssist CLI talks to an AgriAssist server to analyze crop photos for
diseases, chat with the farming assistant, and fetch farming tips and
market prices.

Getting started:
  # Analyze a crop photo
  agriassist analyze ./leaf.jpg --location "Nakuru"

  # Ask the assistant a one-off question
  agriassist chat "Why are my maize leaves turning yellow?"

  # Start an interactive session
  agriassist chat

  # Farming tips for a crop and season
  agriassist tips --crop beans --season rainy`,

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Flags are parsed at this point; honor --debug
		if debug {
			InitDebugLogger("")
		}
		applyEnvAndConfigDefaults(cmd)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	// Global persistent flags
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug output")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server-url", "", "AgriAssist server URL (default: http://localhost:5000)")
	rootCmd.PersistentFlags().StringVar(&language, "language", "", "Response language, en or sw (default: en)")
	rootCmd.PersistentFlags().StringVar(&overrideCwd, "cwd", "", "Override the current working directory for CLI operations")
}

// applyEnvAndConfigDefaults fills unset globals from .env, the environment,
// and an agriassist config file if one exists. Explicit flags always win.
func applyEnvAndConfigDefaults(cmd *cobra.Command) {
	// Best effort; a missing .env is not an error.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(getEffectiveCWD())
	if err != nil {
		logDebug(fmt.Sprintf("no config file loaded: %v", err))
	}

	if !cmd.Flags().Changed("server-url") || serverURL == "" {
		switch {
		case os.Getenv("AGRIASSIST_SERVER_URL") != "":
			serverURL = os.Getenv("AGRIASSIST_SERVER_URL")
		case cfg != nil && cfg.ServerURL != "":
			serverURL = cfg.ServerURL
		case serverURL == "":
			serverURL = "http://localhost:5000"
		}
	}

	if !cmd.Flags().Changed("language") || language == "" {
		switch {
		case cfg != nil && cfg.Language != "":
			language = cfg.Language
		case language == "":
			language = "en"
		}
	}
	language = normalizeLanguage(language)

	if location == "" && cfg != nil {
		location = cfg.Location
	}
}

// getDataDir returns the directory to store AgriAssist CLI data.
var getDataDir = func() (string, error) {
	dataDir := os.Getenv("AGRIASSIST_DATA_DIR")
	if dataDir != "" {
		return dataDir, nil
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".agriassist"), nil
	} else {
		return "", fmt.Errorf("getDataDir: could not determine home directory: %w", err)
	}
}

// getEffectiveCWD returns the directory to treat as the working directory.
// If the global --cwd flag is provided, it returns its absolute path; otherwise os.Getwd().
func getEffectiveCWD() string {
	if strings.TrimSpace(overrideCwd) != "" {
		if filepath.IsAbs(overrideCwd) {
			return overrideCwd
		}
		abs, err := filepath.Abs(overrideCwd)
		if err != nil {
			return "."
		}
		return abs
	}

	wd, _ := os.Getwd()
	if wd == "" {
		return "."
	}

	return wd
}
