package network_nm

import (
	"context"
	"fmt"
	"sync"
	"time"

	apscan "github.com/dogeorg/apscan/pkg"
	"github.com/godbus/dbus/v5"
	"github.com/sirupsen/logrus"
)

type cacheKey struct {
	path dbus.ObjectPath
	name string
}

type cacheEntry struct {
	value dbus.Variant
	at    time.Time
}

// PropertyCache remembers access point property reads for ttl. It is the
// only state shared between scan cycles, hence the lock.
type PropertyCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[cacheKey]cacheEntry
	now     func() time.Time
}

func NewPropertyCache(ttl time.Duration) *PropertyCache {
	return &PropertyCache{
		ttl:     ttl,
		entries: map[cacheKey]cacheEntry{},
		now:     time.Now,
	}
}

func (t *PropertyCache) Get(path dbus.ObjectPath, name string) (dbus.Variant, bool) {
	if t == nil || t.ttl == 0 {
		return dbus.Variant{}, false
	}
	t.mu.RLock()
	e, ok := t.entries[cacheKey{path, name}]
	t.mu.RUnlock()
	if !ok || t.now().Sub(e.at) > t.ttl {
		return dbus.Variant{}, false
	}
	return e.value, true
}

func (t *PropertyCache) Put(path dbus.ObjectPath, name string, v dbus.Variant) {
	if t == nil || t.ttl == 0 {
		return
	}
	t.mu.Lock()
	t.entries[cacheKey{path, name}] = cacheEntry{value: v, at: t.now()}
	t.mu.Unlock()
}

// Prune drops every stale entry.
func (t *PropertyCache) Prune() {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	for k, e := range t.entries {
		if now.Sub(e.at) > t.ttl {
			delete(t.entries, k)
		}
	}
}

// Reader turns access point object paths into records.
type Reader struct {
	bus   Bus
	cache *PropertyCache
	log   logrus.FieldLogger
}

func NewReader(bus Bus, cache *PropertyCache, log logrus.FieldLogger) Reader {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return Reader{bus: bus, cache: cache, log: log}
}

// Read resolves every path in order. An access point that disappeared
// before it could be read is logged and left out; only ctx ending
// aborts the whole read.
func (t Reader) Read(ctx context.Context, paths []dbus.ObjectPath) ([]apscan.AccessPoint, error) {
	out := make([]apscan.AccessPoint, 0, len(paths))
	for _, p := range paths {
		ap, err := t.readOne(ctx, p)
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			t.log.WithField("path", string(p)).WithError(err).Warn("skipping unreadable access point")
			continue
		}
		out = append(out, ap)
	}
	return out, nil
}

func (t Reader) readOne(ctx context.Context, path dbus.ObjectPath) (apscan.AccessPoint, error) {
	ssid, err := t.property(ctx, path, "Ssid")
	if err != nil {
		return apscan.AccessPoint{}, err
	}
	raw, ok := ssid.Value().([]byte)
	if !ok {
		return apscan.AccessPoint{}, fmt.Errorf("ssid: expected bytes, got %s", ssid.Signature())
	}

	freq, err := t.property(ctx, path, "Frequency")
	if err != nil {
		return apscan.AccessPoint{}, err
	}
	f, ok := freq.Value().(uint32)
	if !ok {
		return apscan.AccessPoint{}, fmt.Errorf("frequency: expected uint32, got %s", freq.Signature())
	}

	return apscan.AccessPoint{
		Path:      string(path),
		Name:      apscan.DecodeName(raw),
		Frequency: f,
	}, nil
}

func (t Reader) property(ctx context.Context, path dbus.ObjectPath, name string) (dbus.Variant, error) {
	if v, ok := t.cache.Get(path, name); ok {
		return v, nil
	}
	v, err := t.bus.Property(ctx, path, apIface, name)
	if err != nil {
		return v, err
	}
	t.cache.Put(path, name, v)
	return v, nil
}
