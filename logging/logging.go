package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// New builds a structured logger writing to stderr. Stdout stays free for
// the stdio MCP transport.
func New(level, format string) *logrus.Logger {
	return NewWithOutput(level, format, os.Stderr)
}

func NewWithOutput(level, format string, out io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)

	if format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log
}

// Discard returns a logger that drops everything; used by tests.
func Discard() *logrus.Logger {
	return NewWithOutput("panic", "text", io.Discard)
}
