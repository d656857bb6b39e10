package cmd

import (
	"fmt"
	"log"
	"os"

	"StudioLink/server"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "studiolink",
	Short: "StudioLink is the backend for the musician booking and beat marketplace app.",
	Run: func(cmd *cobra.Command, args []string) {
		log.Println("Starting StudioLink API server...")
		server.Start()
	},
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
