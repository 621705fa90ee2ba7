// Package cmd is for command line interactions with the uncalled application
package cmd

import (
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// RootCmd represents the base command when called without any subcommands.
var RootCmd = &cobra.Command{
	Use: "uncalled",
	Short: `Map streaming nanopore current signal against a reference genome.
Reads are aligned from raw signal, without basecalling, so off-target
reads can be ejected from the pore as early as possible`,
	Version: "0.1.0",
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		log.Fatalf("%v", err)
	}
}

// readSettings loads the optional settings file bound to the
// "settings" flag into viper, overriding built-in defaults but not
// explicit command line flags
func readSettings() {
	settings := viper.GetString("settings")
	if settings == "" {
		return
	}
	viper.SetConfigFile(settings)
	if err := viper.ReadInConfig(); err != nil {
		log.Fatalf("failed to read settings file %s: %v", settings, err)
	}
}
