package apscan

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/coreos/go-systemd/v22/journal"
	"github.com/sirupsen/logrus"
)

// NewLogger builds the process logger. With config.Journal set and
// journald reachable, entries are also sent to the journal with their
// fields as journal variables.
func NewLogger(config ServerConfig, out io.Writer) *logrus.Logger {
	if out == nil {
		out = os.Stderr
	}
	l := logrus.New()
	l.SetOutput(out)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if config.Verbose {
		l.SetLevel(logrus.DebugLevel)
	}
	if config.Journal && journal.Enabled() {
		l.AddHook(JournalHook{send: journal.Send})
	}
	return l
}

// JournalHook forwards logrus entries to journald.
type JournalHook struct {
	send func(message string, priority journal.Priority, vars map[string]string) error
}

func (t JournalHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (t JournalHook) Fire(entry *logrus.Entry) error {
	vars := make(map[string]string, len(entry.Data))
	for k, v := range entry.Data {
		vars[journalField(k)] = fmt.Sprint(v)
	}
	return t.send(entry.Message, journalPriority(entry.Level), vars)
}

func journalPriority(level logrus.Level) journal.Priority {
	switch level {
	case logrus.PanicLevel:
		return journal.PriEmerg
	case logrus.FatalLevel:
		return journal.PriCrit
	case logrus.ErrorLevel:
		return journal.PriErr
	case logrus.WarnLevel:
		return journal.PriWarning
	case logrus.InfoLevel:
		return journal.PriInfo
	}
	return journal.PriDebug
}

// journalField maps a logrus field name onto journald's rules:
// upper case letters, digits and underscores, no leading underscore.
func journalField(k string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(k) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return "APSCAN_" + strings.TrimLeft(b.String(), "_")
}
