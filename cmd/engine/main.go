package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/doomedramen/autopwn-sub005/internal/config"
	"github.com/doomedramen/autopwn-sub005/pkg/debug"
)

var (
	cfg config.Config

	flagConfigFilePath string // value of --config flag
)

func main() {
	rootCmd.PersistentFlags().StringVar(&flagConfigFilePath, "config", "", "YAML config file; environment variables and .env override it")

	// never print messages
	rootCmd.SilenceErrors = true
	rootCmd.PersistentPreRunE = loadConfig

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(hashTypesCmd)
	rootCmd.AddCommand(potfileCmd)

	if err := rootCmd.Execute(); err != nil {
		debug.Error("engine failed: %v", err)
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "engine",
	Short:        "Runs and tracks hashcat sessions",
	SilenceUsage: true,
}

func loadConfig(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(flagConfigFilePath)
	if err != nil {
		return err
	}
	cfg = loaded
	if wd, err := os.Getwd(); err == nil {
		debug.SetBasePath(wd)
	}
	return nil
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
