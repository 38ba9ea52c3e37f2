package main

import (
	"github.com/spf13/cobra"

	"github.com/doomedramen/autopwn-sub005/internal/hashcat"
	"github.com/doomedramen/autopwn-sub005/internal/results"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List the compute devices hashcat can use",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		devices, err := hashcat.NewDetector(cfg.HashcatPath).Devices(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd, devices)
	},
}

var hashTypesCmd = &cobra.Command{
	Use:   "hash-types",
	Short: "List the hash modes hashcat supports",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		hashTypes, err := hashcat.NewDetector(cfg.HashcatPath).HashTypes(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd, hashTypes)
	},
}

var potfileCmd = &cobra.Command{
	Use:   "potfile [path]",
	Short: "Print the records in a potfile (default: the configured one)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfg.Potfile()
		if len(args) == 1 {
			path = args[0]
		}
		records, err := results.ReadPotfile(path)
		if err != nil {
			return err
		}
		if records == nil {
			records = []results.CrackedRecord{}
		}
		return printJSON(cmd, records)
	},
}
