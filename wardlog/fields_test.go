package wardlog

import "testing"

// capturingLogger records every field applied to it, so these tests
// can assert on the exact keys the With* helpers attach without
// depending on any concrete backend.
type capturingLogger struct {
	fields map[string]any
}

func newCapturingLogger() *capturingLogger { return &capturingLogger{fields: map[string]any{}} }

func (c *capturingLogger) clone() *capturingLogger {
	next := make(map[string]any, len(c.fields))
	for k, v := range c.fields {
		next[k] = v
	}
	return &capturingLogger{fields: next}
}

func (c *capturingLogger) WithField(key string, value any) Logger {
	next := c.clone()
	next.fields[key] = value
	return next
}

func (c *capturingLogger) WithFields(fields map[string]any) Logger {
	next := c.clone()
	for k, v := range fields {
		next.fields[k] = v
	}
	return next
}

func (c *capturingLogger) WithError(err error) Logger { return c.WithField(`error`, err) }
func (*capturingLogger) Debug(...any)                 {}
func (*capturingLogger) Info(...any)                  {}
func (*capturingLogger) Warn(...any)                  {}
func (*capturingLogger) Error(...any)                 {}

func TestWithLock_OmitsEmptyExecutionID(t *testing.T) {
	log := WithLock(newCapturingLogger(), `payments`, ``).(*capturingLogger)
	if _, ok := log.fields[FieldExecutionID]; ok {
		t.Error(`expected no executionId field when executionID is empty`)
	}
	if log.fields[FieldLockName] != `payments` {
		t.Error(`expected lockName field to be set`)
	}
}

func TestWithLock_IncludesExecutionID(t *testing.T) {
	log := WithLock(newCapturingLogger(), `payments`, `exec-1`).(*capturingLogger)
	if log.fields[FieldExecutionID] != `exec-1` {
		t.Error(`expected executionId field to be set`)
	}
}

func TestWithCluster_OmitsEmptySessionID(t *testing.T) {
	log := WithCluster(newCapturingLogger(), `orders`, ``).(*capturingLogger)
	if _, ok := log.fields[FieldSessionID]; ok {
		t.Error(`expected no sessionId field when sessionID is empty`)
	}
}

func TestWithCache_SetsCacheName(t *testing.T) {
	log := WithCache(newCapturingLogger(), `widgets`).(*capturingLogger)
	if log.fields[FieldCacheName] != `widgets` {
		t.Error(`expected cacheName field to be set`)
	}
}

func TestWithDataFileOp_SetsOpAndCount(t *testing.T) {
	log := WithDataFileOp(newCapturingLogger(), `commitBatch`, 7).(*capturingLogger)
	if log.fields[FieldDataFileOp] != `commitBatch` {
		t.Error(`expected op field to be set`)
	}
	if log.fields[FieldBatchCount] != 7 {
		t.Error(`expected count field to be set`)
	}
}
