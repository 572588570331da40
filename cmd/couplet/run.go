package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/couplet-run/couplet/internal/logging"
	"github.com/couplet-run/couplet/internal/observability"
	"github.com/couplet-run/couplet/internal/runtime"
	"github.com/couplet-run/couplet/pkg/manifest"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run [manifest]",
	Short: "Execute a pipeline manifest",
	Long:  `Resolves the manifest's channel bindings, starts every model process, and supervises the pipeline until all of them have exited.`,
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		grace, _ := cmd.Flags().GetDuration("grace")
		keep, _ := cmd.Flags().GetBool("keep-products")
		listen, _ := cmd.Flags().GetString("listen")
		verbose, _ := cmd.Flags().GetBool("verbose")

		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		log := logging.New(level)

		m, err := manifest.Load(manifestArg(args))
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(2)
		}

		metrics := observability.NewMetrics()
		run := runtime.New(m,
			runtime.WithLogger(log),
			runtime.WithGrace(grace),
			runtime.WithKeepProducts(keep),
			runtime.WithMetrics(metrics),
		)

		if listen != "" {
			handler := observability.NewHandler(run, metrics)
			go func() {
				if err := http.ListenAndServe(listen, handler); err != nil {
					log.Error("status server", "error", err)
				}
			}()
			log.Info("status server listening", "addr", listen)
		}

		res, err := run.Execute(cmd.Context())
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(2)
		}
		printReport(res)
		os.Exit(res.Outcome.ExitCode())
	},
}

func printReport(res *runtime.Result) {
	for _, m := range res.Models {
		status := fmt.Sprintf("exit=%d", m.ExitCode)
		if m.Forced {
			status += " (force-terminated)"
		}
		if m.Err != nil {
			status = fmt.Sprintf("error: %v", m.Err)
		}
		fmt.Printf("  %-24s %s  %s\n", m.Name, status, m.Duration.Round(time.Millisecond))
	}
	if res.Err != nil {
		fmt.Printf("Error: %v\n", res.Err)
	}
	fmt.Printf("outcome: %s\n", res.Outcome)
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Duration("grace", runtime.DefaultGrace, "How long remaining models get to finish once any sibling has exited")
	runCmd.Flags().Bool("keep-products", false, "Keep declared model products after the run")
	runCmd.Flags().String("listen", "", "Serve run status and metrics on this address (e.g. :8080)")

	// Make 'run' the default command.
	rootCmd.Run = runCmd.Run
	rootCmd.Args = runCmd.Args
	rootCmd.Flags().AddFlagSet(runCmd.Flags())
}
