package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "vitals_node",
	Short: "VitalsTrack wearable sensor node",
	Long: `Runs the VitalsTrack sensor node: pulse oximetry, temperature, force and
distance acquisition driven by commands from a host over BLE, MQTT,
WebSocket or serial.`,
	Version: version,
	RunE:    runNode,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Ctrl+C is a normal exit
		if errors.Is(err, context.Canceled) {
			return
		}
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.SilenceErrors = true

	rootCmd.AddCommand(registersCmd)

	rootCmd.PersistentFlags().StringP("config", "c", "vitals_config.txt", "Path to the KEY=VALUE config file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error); overrides LOG_LEVEL")
	rootCmd.Flags().StringP("transport", "t", "", "Host link (ble, mqtt, ws, serial); overrides TRANSPORT")
}
