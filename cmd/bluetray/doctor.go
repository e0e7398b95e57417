package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"bluetray/internal/config"
	"bluetray/internal/system"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check this host for BlueZ and the configured adapter",
	Long: `Check this host for BlueZ and the configured adapter. Runs locally and
does not need a running daemon.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfgManager := config.NewManager(configPath)
		if err := cfgManager.Load(); err != nil {
			return fmt.Errorf("load config %s: %w", configPath, err)
		}
		report := system.Check(cfgManager.Get().Bluetooth.Adapter)
		if !printReport(cmd.OutOrStdout(), report) {
			return fmt.Errorf("host is missing Bluetooth prerequisites")
		}
		return nil
	},
}

// printReport writes the report and returns whether everything was found.
func printReport(w io.Writer, r system.Report) bool {
	ok := color.GreenString("ok")
	missing := color.RedString("missing")
	healthy := true

	fmt.Fprintf(w, "OS: %s\n", r.OS)
	for _, d := range r.Dependencies {
		if d.Installed {
			fmt.Fprintf(w, "%-14s %s  %s %s\n", d.Name, ok, d.Path, d.Version)
			continue
		}
		healthy = false
		fmt.Fprintf(w, "%-14s %s  install with: %s\n", d.Name, missing, d.InstallCommand)
	}

	if r.Adapter.Present {
		fmt.Fprintf(w, "%-14s %s  %s\n", r.Adapter.Name, ok, r.Adapter.Address)
	} else {
		healthy = false
		fmt.Fprintf(w, "%-14s %s\n", r.Adapter.Name, missing)
	}
	return healthy
}
