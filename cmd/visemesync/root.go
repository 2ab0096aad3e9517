package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "visemesync",
	Short: "Real-time lip-sync synchronization engine",
	Long: `visemesync turns phoneme timing data from a TTS server into per-tick
viseme weight vectors and streams them to renderer clients over websocket.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().Bool("no-log-file", false, "Log to console only")
}
