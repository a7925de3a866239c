package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Dump aggregated completed-slot statistics",
}

var statsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print every completed-slot record appended to the shared stats file",
	RunE:  runStatsShow,
}

func init() {
	statsCmd.AddCommand(statsShowCmd)
}

func runStatsShow(cmd *cobra.Command, args []string) error {
	records, err := statsAgg.All()
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}
