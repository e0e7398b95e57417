package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"bluetray/internal/api"
	"bluetray/internal/device"
)

// ErrNotQueued means the daemon refused the command because its queue was
// full or closed.
var ErrNotQueued = errors.New("command not queued (daemon busy or shutting down)")

var devicesFormat string

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List known devices",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if devicesFormat != "table" && devicesFormat != "json" {
			return fmt.Errorf("invalid format '%s': must be one of [table json]", devicesFormat)
		}
		records, err := newAPIClient(serverURL).devices(cmd.Context())
		if err != nil {
			return err
		}
		return printDevices(cmd.OutOrStdout(), records, devicesFormat)
	},
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Start a discovery session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return reportQueued(cmd, "refresh")(newAPIClient(serverURL).refresh(cmd.Context()))
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running discovery session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return reportQueued(cmd, "stop")(newAPIClient(serverURL).stopRefresh(cmd.Context()))
	},
}

var connectCmd = &cobra.Command{
	Use:   "connect ADDRESS",
	Short: "Connect to a device",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := device.ParseAddress(args[0])
		if err != nil {
			return err
		}
		return reportQueued(cmd, "connect "+addr.String())(newAPIClient(serverURL).connect(cmd.Context(), addr.String()))
	},
}

var disconnectCmd = &cobra.Command{
	Use:   "disconnect ADDRESS",
	Short: "Disconnect a device",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := device.ParseAddress(args[0])
		if err != nil {
			return err
		}
		return reportQueued(cmd, "disconnect "+addr.String())(newAPIClient(serverURL).disconnect(cmd.Context(), addr.String()))
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print the device list whenever it changes",
	Args:  cobra.NoArgs,
	RunE:  runWatch,
}

func init() {
	devicesCmd.Flags().StringVarP(&devicesFormat, "format", "f", "table", "Output format (table, json)")
}

func reportQueued(cmd *cobra.Command, what string) func(bool, error) error {
	return func(queued bool, err error) error {
		if err != nil {
			return err
		}
		if !queued {
			return fmt.Errorf("%s: %w", what, ErrNotQueued)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s queued\n", what)
		return nil
	}
}

func printDevices(w io.Writer, records []device.Record, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if records == nil {
			records = []device.Record{}
		}
		return enc.Encode(records)
	}

	if len(records) == 0 {
		fmt.Fprintln(w, "No devices known. Run 'bluetray refresh' to discover nearby devices.")
		return nil
	}

	green := color.New(color.FgGreen).SprintFunc()
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ADDRESS\tNAME\tCONNECTED")
	for _, r := range records {
		connected := "no"
		if r.IsConnected() {
			connected = green("yes")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Address, r.DisplayName(), connected)
	}
	return tw.Flush()
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := newAPIClient(serverURL)
	wsURL, err := client.wsURL()
	if err != nil {
		return err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("connect %s: %w", wsURL, err)
	}
	defer conn.Close()

	out := cmd.OutOrStdout()
	show := func() error {
		records, err := client.devices(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\n%s %s\n", color.CyanString("==="), time.Now().Format(time.RFC3339))
		return printDevices(out, records, "table")
	}
	if err := show(); err != nil {
		return err
	}

	messages := make(chan api.Message)
	readErr := make(chan error, 1)
	go func() {
		for {
			var msg api.Message
			if err := conn.ReadJSON(&msg); err != nil {
				readErr <- err
				return
			}
			select {
			case messages <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return nil
		case err := <-readErr:
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("watch: %w", err)
		case msg := <-messages:
			if msg.Type != api.MessageUpdateDevices {
				continue
			}
			if err := show(); err != nil {
				return err
			}
		}
	}
}
