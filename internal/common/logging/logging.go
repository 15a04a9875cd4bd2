package logging

import (
	"os"

	log "github.com/sirupsen/logrus"
)

// ConfigureLogging sets up logrus for command-line use.
func ConfigureLogging() {
	log.SetFormatter(&log.TextFormatter{ForceColors: true, FullTimestamp: true})
	log.SetOutput(os.Stdout)
}

// ConfigureVerbosity sets the global log level. Scheduling decisions are logged
// at info, per-event chatter at debug.
func ConfigureVerbosity(verbose bool) {
	if verbose {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
}
