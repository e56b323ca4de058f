// Package logging configures the process-wide logrus logger.
package logging

import (
	"fmt"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Setup sets the standard logger's level and formatter. Format is "text" or
// "json".
func Setup(level, format string) error {
	lvl, err := log.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}

	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	default:
		return fmt.Errorf("invalid log format %q: must be text or json", format)
	}

	log.SetLevel(lvl)
	log.SetOutput(os.Stdout)
	return nil
}
