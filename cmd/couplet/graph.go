package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/couplet-run/couplet/internal/presentation/graph"
	"github.com/couplet-run/couplet/pkg/manifest"
)

var graphCmd = &cobra.Command{
	Use:   "graph [manifest]",
	Short: "Render the pipeline topology as a Mermaid flowchart",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		m, err := manifest.Load(manifestArg(args))
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		out, err := graph.Mermaid(m)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Print(out)
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
}
