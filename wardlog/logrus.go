package wardlog

import (
	"github.com/sirupsen/logrus"
)

// Logrus adapts a logrus.FieldLogger (e.g. *logrus.Logger or
// *logrus.Entry) to the Logger interface. Unlike a type alias plus an
// embedded field, Backend is a plain named field: every ward component
// only ever constructs a Logrus directly (see lock.NewManager,
// cluster.NewNode, cacheinv.NewManager's log parameters), so there's no
// embedding-for-method-promotion to support, and no indirection package
// needed just to rename logrus.FieldLogger for that purpose.
type Logrus struct{ Backend logrus.FieldLogger }

var _ Logger = Logrus{}

func (x Logrus) WithField(key string, value any) Logger {
	return Logrus{Backend: x.Backend.WithField(key, value)}
}

func (x Logrus) WithFields(fields map[string]any) Logger {
	return Logrus{Backend: x.Backend.WithFields(fields)}
}

func (x Logrus) WithError(err error) Logger {
	return Logrus{Backend: x.Backend.WithError(err)}
}

func (x Logrus) Debug(args ...any) { x.Backend.Debug(args...) }

func (x Logrus) Info(args ...any) { x.Backend.Info(args...) }

func (x Logrus) Warn(args ...any) { x.Backend.Warn(args...) }

func (x Logrus) Error(args ...any) { x.Backend.Error(args...) }
