package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"squeeze/internal/config"
	"squeeze/internal/control"
	"squeeze/internal/logger"
	"squeeze/internal/metrics"
	"squeeze/internal/processor"
	"squeeze/internal/report"
	"squeeze/internal/tui"
)

var (
	runFlags = newSearchFlags()
	runNoTUI bool
)

var runCmd = &cobra.Command{
	Use:   "run [flags]",
	Short: "Compress every image in the input folder to the target size",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, spec, err := runFlags.build()
		if err != nil {
			return err
		}
		cfg.NoTUI = runNoTUI || !isatty.IsTerminal(os.Stdout.Fd())

		if err := logger.Setup(logger.Options{Verbose: cfg.Verbose, Quiet: !cfg.NoTUI, FilePath: cfg.LogPath()}); err != nil {
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

		ctrl := control.New()
		deps := processor.Deps{Backend: backend, Controller: ctrl}

		var (
			summary processor.Summary
			rows    []report.Row
			runErr  error
		)
		if cfg.NoTUI {
			summary, rows, runErr = processor.Run(ctx, cfg, spec, deps)
		} else {
			updates := make(chan processor.ProgressUpdate, 64)
			deps.Updates = updates
			title := fmt.Sprintf("squeeze → %s KB %s", cfg.TargetLabel(), cfg.Format)
			program := tea.NewProgram(tui.NewModel(title, updates, ctrl))

			uiDone := tui.Start(func() error {
				_, err := program.Run()
				return err
			}, updates)

			summary, rows, runErr = processor.Run(ctx, cfg, spec, deps)
			close(updates)
			<-uiDone
		}
		if runErr != nil {
			return runErr
		}

		return finish(cfg, summary, rows)
	},
}

// finish writes the workbook and metrics for whatever completed, then
// prints the summary.
func finish(cfg config.Config, summary processor.Summary, rows []report.Row) error {
	if err := report.WriteWorkbook(cfg.ReportPath(), rows); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if cfg.MetricsFile != "" {
		if err := metrics.WriteTextfile(cfg.MetricsFile); err != nil {
			logger.Warn("Could not write metrics", "path", cfg.MetricsFile, "error", err)
		}
	}

	fmt.Fprintln(os.Stdout, tui.RenderSummary(tui.BatchSummary(summary)))
	outPath := cfg.OutputDir
	if abs, err := filepath.Abs(outPath); err == nil {
		outPath = abs
	}
	fmt.Fprintf(os.Stdout, "Outputs written to: %s\n", outPath)
	fmt.Fprintf(os.Stdout, "Report: %s\n", cfg.ReportPath())
	return nil
}

func init() {
	runFlags.bind(runCmd.Flags())
	runCmd.Flags().StringVarP(&runFlags.cfg.InputDir, "input", "i", config.DefaultConfig().InputDir, "folder to scan for images")
	runCmd.Flags().BoolVar(&runNoTUI, "no-tui", false, "log progress to the console instead of the interactive view")

	rootCmd.AddCommand(runCmd)
}
