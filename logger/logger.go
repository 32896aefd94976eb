package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Log is the process-wide logger. It is usable before Init, with logrus defaults.
var Log = logrus.New()

// Init configures Log from the environment: LOG_LEVEL (default "info") and LOG_FORMAT
// ("json", otherwise colored text). It is called once from main; debug forces debug level.
func Init(debug bool) {
	level, err := logrus.ParseLevel(envOr("LOG_LEVEL", "info"))
	if err != nil {
		level = logrus.InfoLevel
	}
	if debug {
		level = logrus.DebugLevel
	}
	Log.SetLevel(level)

	if strings.ToLower(os.Getenv("LOG_FORMAT")) == "json" {
		Log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		Log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
			ForceColors:   true,
		})
	}
	Log.SetOutput(os.Stdout)
}

// Discard silences Log, e.g. for tests.
func Discard() {
	Log.SetOutput(io.Discard)
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}
