package apscan

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Bind    string `yaml:"bind"`
	Port    int    `yaml:"port"`
	Verbose bool   `yaml:"verbose"`
	// Forward log entries to journald when it is reachable.
	Journal bool `yaml:"journal"`

	// Upper bound for a single device's wait on LastScan.
	ScanTimeout time.Duration `yaml:"scan_timeout"`
	// Read LastScan before requesting a scan and treat it as the
	// baseline, instead of the first notification.
	PreScanBaseline bool `yaml:"prescan_baseline"`
	// How many wireless devices may scan at once.
	Concurrency int `yaml:"concurrency"`
	// How long an access point property read stays fresh.
	CacheTTL time.Duration `yaml:"cache_ttl"`

	// Zero disables periodic rescans in the daemon.
	RescanInterval time.Duration `yaml:"rescan_interval"`
	ReportURL      string        `yaml:"report_url"`
	// Empty means the system bus.
	BusAddress string `yaml:"bus_address"`
	// Where the daemon keeps its last finished scan across restarts.
	// Empty disables it.
	StateFile string `yaml:"state_file"`
}

const DefaultScanTimeout = 30 * time.Second

func DefaultConfig() ServerConfig {
	return ServerConfig{
		Bind:        "127.0.0.1",
		Port:        8080,
		ScanTimeout: DefaultScanTimeout,
		Concurrency: 4,
		CacheTTL:    10 * time.Second,
	}
}

// LoadConfigFile overlays the YAML file at path onto config. A missing
// file is not an error so that the default path can always be passed.
func LoadConfigFile(path string, config ServerConfig) (ServerConfig, error) {
	if path == "" {
		return config, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return config, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(b, &config); err != nil {
		return config, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return config, config.Validate()
}

func (t ServerConfig) Validate() error {
	if t.ScanTimeout <= 0 {
		return fmt.Errorf("scan_timeout must be positive, got %s", t.ScanTimeout)
	}
	if t.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", t.Concurrency)
	}
	if t.CacheTTL < 0 {
		return fmt.Errorf("cache_ttl must not be negative, got %s", t.CacheTTL)
	}
	if t.RescanInterval < 0 {
		return fmt.Errorf("rescan_interval must not be negative, got %s", t.RescanInterval)
	}
	return nil
}
