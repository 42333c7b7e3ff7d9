package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	red    = color.New(color.FgRed, color.Bold)
	yellow = color.New(color.FgYellow)
	green  = color.New(color.FgGreen)
)

var rootCmd = &cobra.Command{
	Use:   "loopstretch",
	Short: "Stretch a section of a song to a new length",
	Long: `loopstretch extends the section between two time marks of a recording to a
target duration, either by looping it or by generating new material, and keeps
everything before and after the section untouched.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI and exits non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		red.Fprintf(os.Stderr, "Error: ")
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(extendCmd)
	rootCmd.AddCommand(beatsCmd)
	rootCmd.AddCommand(probeCmd)
}
