package utils

import (
	"os"

	"github.com/sirupsen/logrus"
)

var (
	InfoLogger  = logrus.New()
	ErrorLogger = logrus.New()
)

func InitLogger() {
	InitLoggerWithLevel("info")
}

// InitLoggerWithLevel configures both loggers; an unknown level falls back to info.
func InitLoggerWithLevel(level string) {
	InfoLogger = logrus.New()
	ErrorLogger = logrus.New()

	// InfoLogger ke stdout
	InfoLogger.SetOutput(os.Stdout)
	InfoLogger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	// ErrorLogger ke stderr
	ErrorLogger.SetOutput(os.Stderr)
	ErrorLogger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	InfoLogger.SetLevel(parsed)
	ErrorLogger.SetLevel(parsed)
}
