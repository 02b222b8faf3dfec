// ABOUTME: Entry point for the agora binary
// ABOUTME: Runs the root command and prints errors in red

package main

import (
	"os"

	"github.com/fatih/color"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}
