package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/dogeorg/apscan/cmd/apscan/utils"
	apscan "github.com/dogeorg/apscan/pkg"
	network_wifi "github.com/dogeorg/apscan/pkg/system/network/wifi"
	"github.com/spf13/cobra"
)

var (
	scanJSON    bool
	scanBackend string
	scanIface   string
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan every wireless device and print the access points found.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		var scans []apscan.DeviceScan
		var err error
		switch scanBackend {
		case "nm":
			scans, err = scanNM(ctx)
		case "iwlist":
			scans, err = scanIWList(ctx, scanIface)
		default:
			err = fmt.Errorf("unknown backend %q, want nm or iwlist", scanBackend)
		}
		if err != nil {
			log.Errorf("Scan failed: %v", err)
			utils.ExitBad(utils.UnderSystemd())
		}

		if scanJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(scans); err != nil {
				log.Errorf("Failed to encode scan: %v", err)
				utils.ExitBad(utils.UnderSystemd())
			}
			return
		}
		printScans(os.Stdout, scans)
	},
}

func scanNM(ctx context.Context) ([]apscan.DeviceScan, error) {
	nm, err := connect(ctx)
	if err != nil {
		return nil, err
	}
	defer nm.Close()
	return nm.Scan(ctx)
}

func scanIWList(ctx context.Context, iface string) ([]apscan.DeviceScan, error) {
	if iface == "" {
		return nil, fmt.Errorf("--iface is required with the iwlist backend")
	}
	ctx, cancel := context.WithTimeout(ctx, config.ScanTimeout)
	defer cancel()
	aps, err := network_wifi.NewWifiScanner().Scan(ctx, iface)
	if err != nil {
		return nil, err
	}
	return []apscan.DeviceScan{{Device: "iwlist:" + iface, Interface: iface, AccessPoints: aps}}, nil
}

// printScans writes one line per access point, in discovery order.
func printScans(out io.Writer, scans []apscan.DeviceScan) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "\tNAME\tGHZ\tINTERFACE")
	for _, s := range scans {
		if s.Err != nil {
			fmt.Fprintf(w, "!\t%s\t\t%s\n", s.Err, s.Interface)
			continue
		}
		for _, ap := range s.AccessPoints {
			mark := ""
			if ap.Active {
				mark = "*"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", mark, ap.Name, ap.FrequencyLabel(), s.Interface)
		}
	}
	w.Flush()
}

func init() {
	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "Print results as JSON")
	scanCmd.Flags().StringVar(&scanBackend, "backend", "nm", "Scan backend: nm or iwlist")
	scanCmd.Flags().StringVar(&scanIface, "iface", "", "Interface for the iwlist backend")
	rootCmd.AddCommand(scanCmd)
}
