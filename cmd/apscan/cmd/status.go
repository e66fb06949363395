package cmd

import (
	"context"
	"fmt"

	"github.com/dogeorg/apscan/cmd/apscan/utils"
	"github.com/dogeorg/apscan/pkg/system"
	"github.com/spf13/cobra"
)

var statusLogs int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of NetworkManager.service.",
	Run: func(cmd *cobra.Command, args []string) {
		status, err := system.NewSystemMonitor(system.NetworkManagerUnit).Status(context.Background())
		if err != nil {
			log.Errorf("Failed to read unit status: %v", err)
			utils.ExitBad(utils.UnderSystemd())
		}

		fmt.Printf("Unit: %s\n", status.Unit)
		fmt.Printf("State: %s (%s)\n", status.ActiveState, status.SubState)
		if status.Running {
			fmt.Printf("PID: %d\n", status.MainPID)
			fmt.Printf("CPU: %.1f%%\n", status.CPUPercent)
			fmt.Printf("Memory: %.1f MB\n", status.MEMMb)
		}

		if statusLogs > 0 {
			lines, err := system.NewJournalReader().Recent(context.Background(), status.Unit, statusLogs)
			if err != nil {
				log.Errorf("Failed to read the journal: %v", err)
				utils.ExitBad(utils.UnderSystemd())
			}
			fmt.Println()
			for _, l := range lines {
				fmt.Println(l)
			}
		}
	},
}

func init() {
	statusCmd.Flags().IntVar(&statusLogs, "logs", 0, "Also print this many recent journal lines for the unit")
	rootCmd.AddCommand(statusCmd)
}
