// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the overlap-engine CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/overlap-engine/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API credentials loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// rootCmd is the base command for the overlap-engine CLI.
var rootCmd = &cobra.Command{
	Use:   "overlap-engine",
	Short: "Discover related search phrases by ranked-result overlap",
	Long: `overlap-engine finds phrases related to a seed search phrase by comparing
ranked result sets. It fetches the seed's top-ranking URLs, harvests the
phrases those pages also rank for, and keeps the candidates whose own top
results overlap the seed's above a threshold.

Use discover for a single seed phrase, batch for a CSV of phrases, and
verify to check API credentials.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./overlap-engine.yaml or ~/.config/overlap-engine/config.yaml)")
	rootCmd.PersistentFlags().String("login", "", "API login (overrides .secrets/)")
	rootCmd.PersistentFlags().String("password", "", "API password (overrides .secrets/)")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("overlap-engine")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "overlap-engine"))
		}
	}

	viper.SetEnvPrefix("OVERLAP_ENGINE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
