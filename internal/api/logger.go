package api

import (
	"os"

	"github.com/sirupsen/logrus"
)

// logger emits one JSON line per event so log aggregators can filter on the
// event name and request id.
var logger = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.JSONFormatter{})
	l.SetOutput(os.Stdout)
	if os.Getenv("PILOT_LOG_LEVEL") == "debug" {
		l.SetLevel(logrus.DebugLevel)
	}
	return l
}

func logEvent(event, requestID string) *logrus.Entry {
	return logger.WithFields(logrus.Fields{"event": event, "request_id": requestID})
}
