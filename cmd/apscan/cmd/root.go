package cmd

import (
	"context"
	"os"
	"time"

	apscan "github.com/dogeorg/apscan/pkg"
	"github.com/dogeorg/apscan/pkg/system/network"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
	timeout    time.Duration

	config apscan.ServerConfig
	log    *logrus.Logger
)

var rootCmd = &cobra.Command{
	Use:   "apscan",
	Short: "apscan lists nearby wireless access points through NetworkManager",
	Long: `apscan asks NetworkManager for every managed device, triggers a scan
on each wireless one and prints the access points it found.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := apscan.LoadConfigFile(configPath, apscan.DefaultConfig())
		if err != nil {
			return err
		}
		if verbose {
			c.Verbose = true
		}
		if cmd.Flags().Changed("timeout") {
			c.ScanTimeout = timeout
		}
		config = c
		log = apscan.NewLogger(config, os.Stderr)
		return nil
	},
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "/etc/apscan.yaml", "Path to a YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Be verbose")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", apscan.DefaultScanTimeout, "How long to wait for each device to finish scanning")
}

// connect dials the system bus. The caller closes the manager.
func connect(ctx context.Context) (network.NetworkManagerLinux, error) {
	return network.NewNetworkManager(ctx, config, log)
}
