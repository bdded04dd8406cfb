package utils

import (
	log "github.com/sirupsen/logrus"
)

const timestampFormat = "2006-01-02 15:04:05.000000"

// InitLogging sets up the standard logrus logger. Verbose lowers the level
// to Debug.
func InitLogging(verbose bool) {
	log.SetFormatter(&log.TextFormatter{
		DisableColors:    true,
		FullTimestamp:    true,
		TimestampFormat:  timestampFormat,
		QuoteEmptyFields: true,
	})
	if verbose {
		log.SetLevel(log.DebugLevel)
		return
	}
	log.SetLevel(log.InfoLevel)
}
