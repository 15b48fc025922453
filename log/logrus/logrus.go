package logrus

import (
	"github.com/sirupsen/logrus"

	iq "github.com/AppSecAI-TEST/invalidationqueue"
)

type LogrusLogger struct{ E *logrus.Entry }

var _ iq.Logger = LogrusLogger{}

func (l LogrusLogger) Debug(msg string, f iq.Fields) {
	l.E.WithFields(logrus.Fields(f)).Debug(msg)
}
func (l LogrusLogger) Info(msg string, f iq.Fields) { l.E.WithFields(logrus.Fields(f)).Info(msg) }
func (l LogrusLogger) Warn(msg string, f iq.Fields) { l.E.WithFields(logrus.Fields(f)).Warn(msg) }
func (l LogrusLogger) Error(msg string, f iq.Fields) {
	l.E.WithFields(logrus.Fields(f)).Error(msg)
}
