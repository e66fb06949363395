package gobdb

import (
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

/* GobFile is a simple atomic-write single-file-database
 * which stores a Go object encoded with encoding/gob.
 *
 * Usage:
 *  gf := gobdb.NewGobFile[YourTypeHere]("/var/lib/apscan/last.gob")
 *  err := gf.Save(YourObj)
 *  obj, err := gf.Load()
 */
type GobFile[T any] struct {
	filename string
}

func NewGobFile[T any](filename string) *GobFile[T] {
	return &GobFile[T]{filename: filename}
}

func (gf *GobFile[T]) Filename() string {
	return gf.filename
}

// Save writes obj next to the target and renames it into place, so a
// reader sees either the old object or the new one. The directory is
// created on first use, ie: /var/lib/apscan on a fresh host.
func (gf *GobFile[T]) Save(obj T) error {
	dir := filepath.Dir(gf.filename)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create %q: %w", dir, err)
	}

	tempFile, err := os.CreateTemp(dir, ".gobfile-*")
	if err != nil {
		return fmt.Errorf("cannot create temporary file: %w", err)
	}
	defer os.Remove(tempFile.Name())

	if err := gob.NewEncoder(tempFile).Encode(obj); err != nil {
		tempFile.Close()
		return fmt.Errorf("cannot encode object: %w", err)
	}

	// the rename must not land before the data does
	if err := tempFile.Sync(); err != nil {
		tempFile.Close()
		return fmt.Errorf("cannot sync temporary file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("cannot close temporary file: %w", err)
	}

	if err := os.Rename(tempFile.Name(), gf.filename); err != nil {
		return fmt.Errorf("cannot rename temporary file to %q: %w", gf.filename, err)
	}

	return nil
}

// Load fails with an error wrapping os.ErrNotExist when nothing was
// saved yet.
func (gf *GobFile[T]) Load() (T, error) {
	file, err := os.Open(gf.filename)
	if err != nil {
		return *new(T), fmt.Errorf("cannot open file %q: %w", gf.filename, err)
	}
	defer file.Close()

	var obj T
	if err := gob.NewDecoder(file).Decode(&obj); err != nil {
		if err == io.EOF {
			return *new(T), fmt.Errorf("file %q is empty", gf.filename)
		}
		return *new(T), fmt.Errorf("cannot decode object from file %q: %w", gf.filename, err)
	}

	return obj, nil
}
