// internal/logging/logging.go

// Package logging builds the structured logger shared by every component.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// TimestampFormat is ISO 8601 with zone offset.
const TimestampFormat = "2006-01-02T15:04:05Z07:00"

// New returns a JSON logger writing to stdout at the given level.
func New(level string) (*logrus.Logger, error) {
	return NewWithOutput(os.Stdout, level)
}

// NewWithOutput is New with an explicit sink.
func NewWithOutput(out io.Writer, level string) (*logrus.Logger, error) {
	lvl := logrus.InfoLevel
	if strings.TrimSpace(level) != "" {
		parsed, err := logrus.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("parse log level %q: %w", level, err)
		}
		lvl = parsed
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: TimestampFormat})
	logger.SetOutput(out)
	logger.SetLevel(lvl)
	return logger, nil
}

// Discard returns a logger that drops everything. Components fall back to it
// when no logger is injected.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
