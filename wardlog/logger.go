// Package wardlog is the ambient logging contract every ward component
// threads through its constructors: lock.Manager's renewal loop,
// cluster.Node's heartbeat/delivery loops, cacheinv.Manager's
// publish/poll loops, and datafile.Writer/Reader's WAL recovery all
// take a Logger and log-and-continue through it rather than binding to
// a specific logging framework. fields.go defines the structured field
// vocabulary those call sites share.
package wardlog

// Logger is the logging interface used across ward modules - a narrow
// subset of logrus.FieldLogger, just wide enough for background loops
// to attach structured fields and log at a level without depending on
// logrus directly.
type Logger interface {
	WithField(key string, value any) Logger
	WithFields(fields map[string]any) Logger
	WithError(err error) Logger
	Debug(args ...any)
	Info(args ...any)
	Warn(args ...any)
	Error(args ...any)
}

// Discard is the no-op Logger every constructor in this repo falls
// back to when the caller doesn't supply one.
type Discard struct{}

var _ Logger = Discard{}

func (Discard) WithField(string, any) Logger     { return Discard{} }
func (Discard) WithFields(map[string]any) Logger { return Discard{} }
func (Discard) WithError(error) Logger           { return Discard{} }
func (Discard) Debug(...any)                     {}
func (Discard) Info(...any)                      {}
func (Discard) Warn(...any)                      {}
func (Discard) Error(...any)                     {}
