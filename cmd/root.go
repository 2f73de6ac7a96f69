package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "squeeze",
	Short: "squeeze 🗜 - fit images under a target file size",
	Long: "squeeze 🗜 re-encodes images so each one lands as close as possible to a target size " +
		"without going over, searching encoder quality with a handful of trial encodes.",
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log every trial encode")
}
