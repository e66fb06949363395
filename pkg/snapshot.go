package apscan

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/dogeorg/apscan/pkg/gobdb"
)

// SnapshotStore keeps the last finished scan on disk. It is a
// ScanListener, so every pass the Scanner finishes is saved.
type SnapshotStore struct {
	file *gobdb.GobFile[scanSnapshot]
}

// gob cannot carry the error interface, so device errors are kept as text.
type scanSnapshot struct {
	Started  time.Time
	Finished time.Time
	Devices  []deviceSnapshot
}

type deviceSnapshot struct {
	Device       string
	Interface    string
	AccessPoints []AccessPoint
	Err          string
}

func NewSnapshotStore(path string) *SnapshotStore {
	return &SnapshotStore{file: gobdb.NewGobFile[scanSnapshot](path)}
}

func (t *SnapshotStore) Publish(ctx context.Context, u ScanUpdate) error {
	s := scanSnapshot{Started: u.Started, Finished: u.Finished}
	for _, d := range u.Devices {
		ds := deviceSnapshot{Device: d.Device, Interface: d.Interface, AccessPoints: d.AccessPoints}
		if d.Err != nil {
			ds.Err = d.Err.Error()
		}
		s.Devices = append(s.Devices, ds)
	}
	return t.file.Save(s)
}

// Load returns the saved scan. ok is false when nothing was saved yet.
func (t *SnapshotStore) Load() (u ScanUpdate, ok bool, err error) {
	s, err := t.file.Load()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return u, false, nil
		}
		return u, false, err
	}
	u = ScanUpdate{Started: s.Started, Finished: s.Finished}
	for _, d := range s.Devices {
		ds := DeviceScan{Device: d.Device, Interface: d.Interface, AccessPoints: d.AccessPoints}
		if d.Err != "" {
			ds.Err = errors.New(d.Err)
		}
		u.Devices = append(u.Devices, ds)
	}
	return u, true, nil
}
