package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dogeorg/apscan/cmd/apscan/utils"
	"github.com/spf13/cobra"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List the devices NetworkManager manages and how they classify.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		nm, err := connect(ctx)
		if err != nil {
			log.Errorf("Failed to connect to NetworkManager: %v", err)
			utils.ExitBad(utils.UnderSystemd())
		}
		defer nm.Close()

		devices, err := nm.Devices(ctx)
		if err != nil {
			log.Errorf("Failed to list devices: %v", err)
			utils.ExitBad(utils.UnderSystemd())
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "PATH\tINTERFACE\tKIND\tWIRELESS")
		for _, d := range devices {
			kind := d.KindName
			if d.Error != "" {
				kind = "error: " + d.Error
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%t\n", d.Path, d.Interface, kind, d.Wireless)
		}
		w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}
