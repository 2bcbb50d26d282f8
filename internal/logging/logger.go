// Package logging builds the process logger.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// New returns a logrus logger writing JSON (or text) to out at the given level.
// Unknown levels fall back to info.
func New(level, format string, out io.Writer) *logrus.Logger {
	log := logrus.New()
	if out == nil {
		out = os.Stdout
	}
	log.SetOutput(out)

	if strings.EqualFold(strings.TrimSpace(format), "text") {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{})
	}

	parsed, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		parsed = logrus.InfoLevel
	}
	log.SetLevel(parsed)
	return log
}

// Discard returns a logger that drops every entry.
func Discard() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// OrDiscard returns logger, or a discarding logger when it is nil.
func OrDiscard(logger logrus.FieldLogger) logrus.FieldLogger {
	if logger == nil {
		return Discard()
	}
	return logger
}
