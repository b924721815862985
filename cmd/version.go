package main

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func init() {
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the build version",
	Run: func(cmd *cobra.Command, args []string) {
		out := "missionops " + version
		if info, ok := debug.ReadBuildInfo(); ok {
			out += " (" + info.GoVersion + ")"
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
	},
}
