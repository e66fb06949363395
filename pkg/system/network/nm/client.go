package network_nm

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/Masterminds/semver"
	apscan "github.com/dogeorg/apscan/pkg"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// LastScan first appeared on Device.Wireless in 1.12.
const minVersion = ">= 1.12"

/* Client drives the whole pass:
 *
 *   GetDevices ─► classify each ─► Wireless? ─► Scan ─► GetAccessPoints ─► Read
 *
 * Unreadable devices are logged and skipped. Every wireless device scans
 * in its own goroutine with its own subscription and cycle state, so one
 * device failing never touches the others.
 */
type Client struct {
	bus         Bus
	dir         Directory
	reader      Reader
	cache       *PropertyCache
	concurrency int
	log         logrus.FieldLogger
	closer      func() error

	versionMu sync.Mutex
	version   string
}

func NewClient(bus Bus, config apscan.ServerConfig, log logrus.FieldLogger) *Client {
	if log == nil {
		log = logrus.StandardLogger()
	}
	opts := ScanOptions{
		Timeout:         config.ScanTimeout,
		PreScanBaseline: config.PreScanBaseline,
		Log:             log,
	}
	cache := NewPropertyCache(config.CacheTTL)
	concurrency := config.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &Client{
		bus:         bus,
		dir:         NewDirectory(bus, opts),
		reader:      NewReader(bus, cache, log),
		cache:       cache,
		concurrency: concurrency,
		log:         log,
	}
}

// Connect dials the configured bus and returns a Client owning it.
func Connect(ctx context.Context, config apscan.ServerConfig, log logrus.FieldLogger) (*Client, error) {
	bus, err := Dial(ctx, config.BusAddress)
	if err != nil {
		return nil, err
	}
	c := NewClient(bus, config, log)
	c.closer = bus.Close
	return c, nil
}

func (t *Client) Close() error {
	if t.closer == nil {
		return nil
	}
	return t.closer()
}

// CheckVersion refuses NetworkManager versions that cannot report
// LastScan. A good answer is remembered, failures are retried.
func (t *Client) CheckVersion(ctx context.Context) (string, error) {
	t.versionMu.Lock()
	defer t.versionMu.Unlock()
	if t.version != "" {
		return t.version, nil
	}
	v, err := t.checkVersion(ctx)
	if err != nil {
		return v, err
	}
	t.version = v
	return v, nil
}

func (t *Client) checkVersion(ctx context.Context) (string, error) {
	v, err := t.bus.Property(ctx, nmPath, nmIface, "Version")
	if err != nil {
		return "", err
	}
	raw, ok := v.Value().(string)
	if !ok {
		return "", fmt.Errorf("unexpected Version type %s", v.Signature())
	}

	// Distro suffixes such as "1.42.2-1ubuntu1" would parse as prereleases.
	clean := strings.SplitN(raw, "-", 2)[0]
	ver, err := semver.NewVersion(clean)
	if err != nil {
		return raw, fmt.Errorf("parsing NetworkManager version %q: %w", raw, err)
	}
	constraint, err := semver.NewConstraint(minVersion)
	if err != nil {
		return raw, err
	}
	if !constraint.Check(ver) {
		return raw, &apscan.ScanError{
			Kind: apscan.ScanUnsupported,
			Err:  fmt.Errorf("NetworkManager %s does not satisfy %s", raw, minVersion),
		}
	}
	return raw, nil
}

// Devices describes every managed device. A device whose properties
// cannot be read is still listed, carrying the error.
func (t *Client) Devices(ctx context.Context) ([]apscan.DeviceInfo, error) {
	paths, err := t.dir.ListDevices(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]apscan.DeviceInfo, 0, len(paths))
	for _, p := range paths {
		info := apscan.DeviceInfo{Path: string(p)}
		kind, err := t.dir.Kind(ctx, p)
		if err != nil {
			t.log.WithField("device", string(p)).WithError(err).Warn("could not classify device")
			info.Error = err.Error()
			out = append(out, info)
			continue
		}
		info.Kind = uint32(kind)
		info.KindName = kind.String()
		info.Wireless = kind == DeviceKindWifi
		if name, err := t.dir.InterfaceName(ctx, p); err == nil {
			info.Interface = name
		}
		out = append(out, info)
	}
	return out, nil
}

// ScanAll runs one scan cycle on every wireless device and returns one
// DeviceScan per wireless device, in directory order. Only failing to
// reach the directory at all is returned as an error.
func (t *Client) ScanAll(ctx context.Context) ([]apscan.DeviceScan, error) {
	if _, err := t.CheckVersion(ctx); err != nil {
		return nil, err
	}

	paths, err := t.dir.ListDevices(ctx)
	if err != nil {
		return nil, err
	}

	var wireless []Wireless
	for _, p := range paths {
		dev, err := t.dir.Classify(ctx, p)
		if err != nil {
			t.log.WithField("device", string(p)).WithError(err).Warn("skipping device, could not classify")
			continue
		}
		switch d := dev.(type) {
		case Wireless:
			wireless = append(wireless, d)
		case Unrecognized:
			t.log.WithField("device", string(p)).Debugf("ignoring %s device", d.Kind())
		}
	}

	results := make([]apscan.DeviceScan, len(wireless))
	var g errgroup.Group
	g.SetLimit(t.concurrency)
	for i, w := range wireless {
		g.Go(func() error {
			results[i] = t.ScanDevice(ctx, w)
			return nil
		})
	}
	_ = g.Wait()

	t.cache.Prune()
	return results, nil
}

// ScanDevice runs a single cycle. Errors end up in DeviceScan.Err.
func (t *Client) ScanDevice(ctx context.Context, w Wireless) apscan.DeviceScan {
	log := t.log.WithField("device", string(w.Path()))
	res := apscan.DeviceScan{Device: string(w.Path())}

	if name, err := t.dir.InterfaceName(ctx, w.Path()); err == nil {
		res.Interface = name
		log = log.WithField("iface", name)
	} else {
		log.WithError(err).Debug("no interface name")
	}

	if err := w.Scan(ctx); err != nil {
		log.WithError(err).Warn("scan failed")
		res.Err = err
		return res
	}

	paths, err := w.AccessPoints(ctx)
	if err != nil {
		log.WithError(err).Warn("listing access points failed")
		res.Err = err
		return res
	}

	aps, err := t.reader.Read(ctx, paths)
	res.AccessPoints = aps
	if err != nil {
		res.Err = err
	}
	log.Infof("found %d access points", len(aps))
	return res
}
