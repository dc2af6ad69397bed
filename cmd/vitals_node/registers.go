package main

import (
	"github.com/spf13/cobra"

	"github.com/AspiringPianist/515Labs-VitalsTrack/internal/app"
)

var registersJSON bool

var registersCmd = &cobra.Command{
	Use:   "registers",
	Short: "Dump the MAX30100 register map",
	Long: `Reads every non-volatile register of the optical sensor and prints it with
its name. FIFO data and interrupt status are skipped because reading them
changes the sensor state.`,
	RunE: runRegisters,
}

func init() {
	registersCmd.Flags().BoolVar(&registersJSON, "json", false, "Print the dump as JSON")
}

func runRegisters(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true
	return app.RunRegisterDump(cfg, logger, cmd.OutOrStdout(), registersJSON)
}
