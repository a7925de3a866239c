package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/packhouse/coordinator/pkg/discovery"
)

var discoveryCmd = &cobra.Command{
	Use:   "discovery",
	Short: "Classify packing sessions discovered on the shared filesystem",
}

var discoveryClientID string

var discoveryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List and classify every slot found for one client, or every client when --client is omitted",
	RunE:  runDiscoveryList,
}

func init() {
	discoveryListCmd.Flags().StringVar(&discoveryClientID, "client", "", "Restrict the scan to a single client (omit to scan every client)")
	discoveryCmd.AddCommand(discoveryListCmd)
}

func runDiscoveryList(cmd *cobra.Command, args []string) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	if discoveryClientID != "" {
		var records []discovery.Record
		var err error
		if cache != nil {
			records, err = scanner.ScanClientCached(discoveryClientID, cache, time.Now())
		} else {
			records, err = scanner.ScanClient(discoveryClientID)
		}
		if err != nil {
			return err
		}
		return enc.Encode(records)
	}

	var all map[string][]discovery.Record
	var err error
	if cache != nil {
		all, err = scanner.ScanAllCached(cache, time.Now())
	} else {
		all, err = scanner.ScanAll()
	}
	if err != nil {
		return err
	}
	return enc.Encode(all)
}
