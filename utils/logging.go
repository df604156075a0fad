package utils

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// SetupLogging routes the standard logger to a rotating file alongside
// stderr. An empty path leaves the default stderr-only logger in place.
func SetupLogging(path string) {
	if path == "" {
		return
	}

	rotator := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
	}
	log.SetOutput(io.MultiWriter(os.Stderr, rotator))
	log.Printf("[logging] writing to %s", path)
}
