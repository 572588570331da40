package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	couplet "github.com/couplet-run/couplet"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of couplet",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("couplet version %s\n", strings.TrimSpace(couplet.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
