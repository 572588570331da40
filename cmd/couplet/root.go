package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "couplet",
	Short: "Couplet runs pipelines of coupled model processes",
	Long:  `Couplet reads a declarative manifest, wires the declared models together over named channels, and supervises them as one pipeline run.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
}

// manifestArg resolves the manifest path from the positional argument,
// defaulting to couplet.yml in the working directory.
func manifestArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return "couplet.yml"
}
