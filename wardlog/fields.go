package wardlog

// Structured field keys shared across every ward component's log call
// sites. Centralizing them here keeps a renewal failure logged by
// lock.Manager, a rotation logged by cluster.Node, and a poll failure
// logged by cacheinv.Manager all queryable by the same key, rather
// than each component inventing its own spelling.
const (
	FieldLockName    = `lockName`
	FieldExecutionID = `executionId`
	FieldClusterName = `clusterName`
	FieldSessionID   = `sessionId`
	FieldNodeID      = `nodeId`
	FieldCacheName   = `cacheName`
	FieldBatchCount  = `count`
	FieldDataFileOp  = `op`
)

// WithLock annotates log with the lock identity a lock/ call site is
// acting on. executionID may be empty (e.g. a renewal-loop failure
// that never reached a specific holder).
func WithLock(log Logger, lockName, executionID string) Logger {
	log = log.WithField(FieldLockName, lockName)
	if executionID != `` {
		log = log.WithField(FieldExecutionID, executionID)
	}
	return log
}

// WithCluster annotates log with the cluster/session identity a
// cluster/ call site is acting on. sessionID may be empty.
func WithCluster(log Logger, clusterName, sessionID string) Logger {
	log = log.WithField(FieldClusterName, clusterName)
	if sessionID != `` {
		log = log.WithField(FieldSessionID, sessionID)
	}
	return log
}

// WithCache annotates log with the named local cache a cacheinv/ call
// site is acting on.
func WithCache(log Logger, cacheName string) Logger {
	return log.WithField(FieldCacheName, cacheName)
}

// WithDataFileOp annotates log with the WAL/main-file operation and
// record count a datafile/ call site just performed.
func WithDataFileOp(log Logger, op string, count int) Logger {
	return log.WithField(FieldDataFileOp, op).WithField(FieldBatchCount, count)
}
