package logs

import (
	"github.com/sirupsen/logrus"

	"github.com/taskhive/apiserver/config"
)

// New builds a logrus logger from config. Level falls back to info,
// format to text.
func New(cfg config.LogConfig) *logrus.Logger {
	l := logrus.New()

	switch cfg.Level {
	case "trace":
		l.SetLevel(logrus.TraceLevel)
	case "debug":
		l.SetLevel(logrus.DebugLevel)
	case "warning", "warn":
		l.SetLevel(logrus.WarnLevel)
	case "error":
		l.SetLevel(logrus.ErrorLevel)
	case "fatal":
		l.SetLevel(logrus.FatalLevel)
	default:
		l.SetLevel(logrus.InfoLevel)
	}

	if cfg.Format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	}

	return l
}
