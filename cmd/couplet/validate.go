package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/couplet-run/couplet/internal/runtime"
	"github.com/couplet-run/couplet/pkg/manifest"
)

var validateCmd = &cobra.Command{
	Use:   "validate [manifest]",
	Short: "Check a manifest without running it",
	Long:  `Parses the manifest, checks it against the schema and semantic rules, and resolves every channel binding without spawning a process.`,
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runValidate(args); err != nil {
			fmt.Printf("Validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Pipeline is valid! ✅")
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(args []string) error {
	m, err := manifest.Load(manifestArg(args))
	if err != nil {
		return err
	}
	return runtime.DryRun(context.Background(), m)
}
