package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/actionsum/focustrack/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("version: %s\n", version.Version)
		fmt.Printf("commit : %s\n", version.Commit)
		fmt.Printf("built  : %s\n", version.Date)
		fmt.Printf("go     : %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
