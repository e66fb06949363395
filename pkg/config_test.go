package apscan

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFileOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "apscan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: 9090
scan_timeout: 10s
prescan_baseline: true
rescan_interval: 2m
report_url: http://hooks.local/wifi
state_file: /var/lib/apscan/last.gob
`), 0o644))

	config, err := LoadConfigFile(path, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, 9090, config.Port)
	assert.Equal(t, "127.0.0.1", config.Bind)
	assert.Equal(t, 10*time.Second, config.ScanTimeout)
	assert.True(t, config.PreScanBaseline)
	assert.Equal(t, 2*time.Minute, config.RescanInterval)
	assert.Equal(t, "http://hooks.local/wifi", config.ReportURL)
	assert.Equal(t, 4, config.Concurrency)
	assert.Equal(t, "/var/lib/apscan/last.gob", config.StateFile)
}

func TestLoadConfigFileMissingIsFine(t *testing.T) {
	config, err := LoadConfigFile(filepath.Join(t.TempDir(), "nope.yaml"), DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), config)
}

func TestLoadConfigFileRejectsBadValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "apscan.yaml")
	require.NoError(t, os.WriteFile(path, []byte("concurrency: 0\n"), 0o644))

	_, err := LoadConfigFile(path, DefaultConfig())
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("port: [\n"), 0o644))
	_, err = LoadConfigFile(path, DefaultConfig())
	assert.Error(t, err)
}
