package network_wifi

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	apscan "github.com/dogeorg/apscan/pkg"
)

var _ WifiScanner = &IWListScanner{}

type IWListScanner struct{}

func (s IWListScanner) Scan(ctx context.Context, interfaceName string) ([]apscan.AccessPoint, error) {
	cmd := exec.CommandContext(ctx, "iwlist", interfaceName, "scan")
	var out bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err != nil {
		return nil, fmt.Errorf("iwlist %s scan: %w: %s", interfaceName, err, strings.TrimSpace(stderr.String()))
	}

	return parseIWListOutput(out.String()), nil
}

var (
	ssidRegex      = regexp.MustCompile(`ESSID:"(.*?)"\s*$`)
	addressRegex   = regexp.MustCompile(`Address: ([0-9A-Fa-f:]+)`)
	frequencyRegex = regexp.MustCompile(`Frequency:([0-9.]+) GHz`)
	escapeRegex    = regexp.MustCompile(`\\x([0-9A-Fa-f]{2})`)
)

// parseIWListOutput keeps cells in the order iwlist printed them. Cells
// without an address or a frequency are dropped, hidden networks are kept
// with an empty name.
func parseIWListOutput(output string) []apscan.AccessPoint {
	var networks []apscan.AccessPoint
	cells := strings.Split(output, "Cell ")

	for _, cell := range cells[1:] {
		address := addressRegex.FindStringSubmatch(cell)
		frequency := frequencyRegex.FindStringSubmatch(cell)
		if len(address) < 2 || len(frequency) < 2 {
			continue
		}

		ghz, err := strconv.ParseFloat(frequency[1], 64)
		if err != nil {
			continue
		}

		var name string
		for _, line := range strings.Split(cell, "\n") {
			if m := ssidRegex.FindStringSubmatch(strings.TrimSpace(line)); len(m) > 1 {
				name = apscan.DecodeName(unescapeESSID(m[1]))
				break
			}
		}

		networks = append(networks, apscan.AccessPoint{
			Path:      "iwlist:" + strings.ToLower(address[1]),
			Name:      name,
			Frequency: uint32(math.Round(ghz * 1000)),
		})
	}

	return networks
}

// unescapeESSID undoes iwlist's \xNN escaping of non printable bytes.
func unescapeESSID(s string) []byte {
	return []byte(escapeRegex.ReplaceAllStringFunc(s, func(m string) string {
		b, err := strconv.ParseUint(m[2:], 16, 8)
		if err != nil {
			return m
		}
		return string([]byte{byte(b)})
	}))
}
