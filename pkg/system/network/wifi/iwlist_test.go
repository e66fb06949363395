package network_wifi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const iwlistSample = `wlan0     Scan completed :
          Cell 01 - Address: 00:11:22:33:44:55
                    Channel:1
                    Frequency:2.412 GHz (Channel 1)
                    Quality=70/70  Signal level=-40 dBm
                    Encryption key:on
                    ESSID:"Cafe"
                    IE: IEEE 802.11i/WPA2 Version 1
          Cell 02 - Address: AA:BB:CC:DD:EE:FF
                    Channel:36
                    Frequency:5.18 GHz (Channel 36)
                    Quality=50/70  Signal level=-60 dBm
                    Encryption key:on
                    ESSID:"Cafe-5G"
          Cell 03 - Address: 12:34:56:78:9A:BC
                    Frequency:2.437 GHz (Channel 6)
                    Encryption key:off
                    ESSID:""
          Cell 04 - Address: 01:02:03:04:05:06
                    Frequency:2.462 GHz (Channel 11)
                    Encryption key:off
                    ESSID:"caf\xC3\xA9 \xFF"
          Cell 05 - Address: 0F:0F:0F:0F:0F:0F
                    Encryption key:off
                    ESSID:"no frequency"
`

func TestParseIWListOutput(t *testing.T) {
	aps := parseIWListOutput(iwlistSample)
	require.Len(t, aps, 4)

	assert.Equal(t, "Cafe", aps[0].Name)
	assert.Equal(t, uint32(2412), aps[0].Frequency)
	assert.Equal(t, "2.4", aps[0].FrequencyLabel())
	assert.Equal(t, "iwlist:00:11:22:33:44:55", aps[0].Path)

	assert.Equal(t, "Cafe-5G", aps[1].Name)
	assert.Equal(t, uint32(5180), aps[1].Frequency)
	assert.Equal(t, "5.2", aps[1].FrequencyLabel())

	assert.Equal(t, "", aps[2].Name)
	assert.Equal(t, "café �", aps[3].Name)
}

func TestParseIWListOutputEmpty(t *testing.T) {
	assert.Empty(t, parseIWListOutput("wlan0     No scan results\n"))
	assert.Empty(t, parseIWListOutput(""))
}
