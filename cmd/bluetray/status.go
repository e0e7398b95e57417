package main

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"bluetray/internal/api"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := newAPIClient(serverURL).status(cmd.Context())
		if err != nil {
			return err
		}
		printStatus(cmd.OutOrStdout(), status)
		return nil
	},
}

func printStatus(w io.Writer, s api.StatusResponse) {
	refreshing := "idle"
	if s.Refreshing {
		refreshing = color.GreenString("discovering")
	}
	fmt.Fprintf(w, "Version:    %s\n", s.Version)
	fmt.Fprintf(w, "Uptime:     %s\n", time.Duration(s.Uptime)*time.Second)
	fmt.Fprintf(w, "Backend:    %s (%s)\n", s.Backend, s.Adapter)
	fmt.Fprintf(w, "Discovery:  %s\n", refreshing)
	fmt.Fprintf(w, "Devices:    %d known, %d connected\n", s.DeviceCount, s.ConnectedCount)
	fmt.Fprintf(w, "Clients:    %d\n", s.Clients)

	if len(s.Commands) == 0 {
		return
	}
	results := make([]string, 0, len(s.Commands))
	for r := range s.Commands {
		results = append(results, r)
	}
	sort.Strings(results)
	fmt.Fprint(w, "Commands:  ")
	for _, r := range results {
		fmt.Fprintf(w, " %s=%d", r, s.Commands[r])
	}
	fmt.Fprintln(w)
}
