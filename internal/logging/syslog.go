//go:build !windows

package logging

import (
	"log/syslog"

	"github.com/sirupsen/logrus"
)

// syslogHook forwards logrus entries to the local syslog daemon. No
// vendored logrus-syslog hook is present in this module's retrieved
// dependency surface, so the hook itself is hand-written against stdlib
// log/syslog (see DESIGN.md).
type syslogHook struct {
	writer *syslog.Writer
}

func newSyslogHook() (logrus.Hook, error) {
	w, err := syslog.New(syslog.LOG_INFO|syslog.LOG_DAEMON, "pvfs-client")
	if err != nil {
		return nil, err
	}
	return &syslogHook{writer: w}, nil
}

func (h *syslogHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *syslogHook) Fire(entry *logrus.Entry) error {
	line, err := entry.String()
	if err != nil {
		return err
	}

	switch entry.Level {
	case logrus.DebugLevel, logrus.TraceLevel:
		return h.writer.Debug(line)
	case logrus.InfoLevel:
		return h.writer.Info(line)
	case logrus.WarnLevel:
		return h.writer.Warning(line)
	case logrus.ErrorLevel:
		return h.writer.Err(line)
	default:
		return h.writer.Crit(line)
	}
}
