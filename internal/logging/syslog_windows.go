//go:build windows

package logging

import (
	"errors"

	"github.com/sirupsen/logrus"
)

func newSyslogHook() (logrus.Hook, error) {
	return nil, errors.New("logging: syslog output is not supported on windows")
}
