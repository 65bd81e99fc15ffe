// Package logging configures the process-wide logrus logger.
//
// Everything is written to stderr: the MCP server speaks JSON-RPC on stdout
// and any stray log line there would corrupt the protocol.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Setup sets the level and formatter of the standard logger. Unknown levels
// fall back to info.
func Setup(level string, json bool) {
	SetupTo(os.Stderr, level, json)
}

// SetupTo is Setup with an explicit writer.
func SetupTo(w io.Writer, level string, json bool) {
	logrus.SetOutput(w)

	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)

	if json {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "15:04:05.000",
		})
	}
}

// For returns an entry tagged with the component name.
func For(component string) *logrus.Entry {
	return logrus.WithField("component", component)
}
