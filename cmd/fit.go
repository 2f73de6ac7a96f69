package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"squeeze/internal/control"
	"squeeze/internal/logger"
	"squeeze/internal/processor"
)

var fitFlags = newSearchFlags()

var fitCmd = &cobra.Command{
	Use:   "fit [flags] <file>",
	Short: "Compress a single image to the target size",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, spec, err := fitFlags.build()
		if err != nil {
			return err
		}
		cfg.InputDir = filepath.Dir(args[0])
		if err := cfg.ValidatePaths(); err != nil {
			return err
		}

		if err := logger.Setup(logger.Options{Verbose: cfg.Verbose, FilePath: cfg.LogPath()}); err != nil {
			return err
		}
		defer logger.Close()

		backend, release, err := openBackend(cfg.Backend, cfg.Format)
		if err != nil {
			return err
		}
		defer release()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		row, err := processor.Fit(ctx, cfg, spec, processor.Deps{Backend: backend, Controller: control.New()}, args[0])
		if err != nil {
			return err
		}

		fmt.Fprintf(os.Stdout, "%s → %s (quality %s, method %s, %.2f KB, -%.1f%%)\n",
			row.File, filepath.Join(cfg.OutputDir, filepath.FromSlash(row.Output)),
			row.QualityLabel(), row.MethodLabel(), row.OutputKB, row.Reduction())
		return nil
	},
}

func init() {
	fitFlags.bind(fitCmd.Flags())
	rootCmd.AddCommand(fitCmd)
}
