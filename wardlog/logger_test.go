package wardlog

import "testing"

func TestDiscard_IsANoOpAtEveryLevel(t *testing.T) {
	var log Logger = Discard{}

	if log.WithField(`a`, 1) != (Discard{}) {
		t.Error(`WithField should return Discard unchanged`)
	}
	if log.WithFields(map[string]any{`a`: 1}) != (Discard{}) {
		t.Error(`WithFields should return Discard unchanged`)
	}
	if log.WithError(nil) != (Discard{}) {
		t.Error(`WithError should return Discard unchanged`)
	}

	// None of these should panic, regardless of args.
	log.Debug(`debug`, 1)
	log.Info(`info`, 2)
	log.Warn(`warn`, 3)
	log.Error(`error`, 4)
}
