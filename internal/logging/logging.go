package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New returns a JSON logger tagged with the service name. Unknown levels fall
// back to info.
func New(service, level string) *logrus.Entry {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)

	host, _ := os.Hostname()
	return log.WithFields(logrus.Fields{"service": service, "hostname": host})
}
