package system

import (
	"context"
	"fmt"

	"github.com/coreos/go-systemd/v22/sdjournal"
)

// journal is the part of sdjournal.Journal the reader walks.
type journal interface {
	AddMatch(match string) error
	SeekTail() error
	PreviousSkip(skip uint64) (uint64, error)
	Next() (uint64, error)
	GetEntry() (*sdjournal.JournalEntry, error)
	Close() error
}

type JournalReader struct {
	open func() (journal, error)
}

func NewJournalReader() JournalReader {
	return JournalReader{open: func() (journal, error) {
		return sdjournal.NewJournal()
	}}
}

// Recent returns up to n of the unit's latest journal messages, oldest
// first. NetworkManager logs why a scan request was refused there.
func (t JournalReader) Recent(ctx context.Context, unit string, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	j, err := t.open()
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	defer j.Close()

	// Add a match for the specific service
	if err := j.AddMatch(fmt.Sprintf("_SYSTEMD_UNIT=%s", unit)); err != nil {
		return nil, err
	}
	if err := j.SeekTail(); err != nil {
		return nil, err
	}
	skipped, err := j.PreviousSkip(uint64(n))
	if err != nil {
		return nil, err
	}
	if skipped == 0 {
		return nil, nil
	}

	var out []string
	for {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		entry, err := j.GetEntry()
		if err != nil {
			return out, err
		}
		out = append(out, entry.Fields[sdjournal.SD_JOURNAL_FIELD_MESSAGE])

		i, err := j.Next()
		if err != nil {
			return out, err
		}
		if i == 0 {
			return out, nil
		}
	}
}
