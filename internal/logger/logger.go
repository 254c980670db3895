package logger

import (
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// New builds the process logger. format is "json" or "text"; unknown levels fall back to info.
func New(level, format string) *logrus.Logger {
	return newWithOutput(level, format, os.Stdout)
}

func newWithOutput(level, format string, out io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)

	if format == "text" {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
		})
	}
	return log
}
