package datafile

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/anchorware/ward-codec"
	wardlog "github.com/anchorware/ward-log"
)

const (
	// MinBatchSize and MaxBatchSize bound the accepted batch size for a
	// Writer, inclusive of the lower bound and exclusive of the upper.
	MinBatchSize = 100
	MaxBatchSize = 500

	defaultLockRetries = 25
	defaultLockDelay   = 10 * time.Millisecond
)

// Config configures a Writer or Reader pair operating against the same
// directory. A Writer requires BatchSize and a Reader requires Hint;
// Codec defaults to codec.Binary{}, and Log, LockRetries and LockDelay
// default when zero.
type Config struct {
	// BatchSize is the number of records a Writer accumulates before
	// committing them as a single atomic batch. Must be in
	// [MinBatchSize, MaxBatchSize).
	BatchSize int
	// Codec encodes values appended by a Writer and decodes values
	// served by a Reader.
	Codec codec.Codec
	// Hint describes the Go type a Reader should decode each record
	// into. Unused by a Writer.
	Hint codec.TypeDescriptor
	// Log receives diagnostic messages. Defaults to wardlog.Discard.
	Log wardlog.Logger
	// LockRetries is the number of times to retry acquiring the WAL's
	// exclusive OS lock before giving up. Defaults to 25.
	LockRetries int
	// LockDelay is the pause between lock retries. Defaults to 10ms.
	LockDelay time.Duration
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.Codec == nil {
		out.Codec = codec.Binary{}
	}
	if out.Log == nil {
		out.Log = wardlog.Discard{}
	}
	if out.LockRetries <= 0 {
		out.LockRetries = defaultLockRetries
	}
	if out.LockDelay <= 0 {
		out.LockDelay = defaultLockDelay
	}
	return out
}

// Writer appends batches of encoded records to an append-only data
// file, using a companion write-ahead log and an OS-level exclusive
// lock to make each batch commit atomic across process crashes.
type Writer struct {
	mainPath string
	walPath  string
	cfg      Config

	mu sync.Mutex
}

// NewWriter opens (creating if necessary) the data file and WAL pair
// rooted at dir for writing.
func NewWriter(dir string, cfg Config) (*Writer, error) {
	if cfg.BatchSize < MinBatchSize || cfg.BatchSize >= MaxBatchSize {
		return nil, &DataFileError{Kind: InvalidBatchSize}
	}

	w := &Writer{
		mainPath: filepath.Join(dir, `data.ds`),
		walPath:  filepath.Join(dir, `wal.log`),
		cfg:      cfg.withDefaults(),
	}

	for _, p := range []string{w.mainPath, w.walPath} {
		f, err := os.OpenFile(p, os.O_RDWR|os.O_CREATE, 0o644)
		if err != nil {
			return nil, wrapIO(err)
		}
		_ = f.Close()
	}

	return w, nil
}

// Append encodes every non-nil value in values and commits them to the
// data file in batches of at most the Writer's configured batch size.
// Each batch is committed atomically: either every record in it becomes
// durably visible, or (on a crash mid-commit) none of it does.
func (w *Writer) Append(_ context.Context, values []any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, chunk := range partition(values, w.cfg.BatchSize) {
		encoded := make([][]byte, 0, len(chunk))
		for _, v := range chunk {
			if v == nil {
				continue
			}
			b, err := w.cfg.Codec.Encode(v)
			if err != nil {
				return &DataFileError{Kind: IOError, Cause: err}
			}
			encoded = append(encoded, b)
		}
		if len(encoded) == 0 {
			continue
		}

		if err := w.commitBatch(encoded); err != nil {
			return err
		}
	}

	return nil
}

// commitBatch runs the full crash-safe commit protocol for one batch of
// already-encoded records, under the WAL's exclusive file lock:
//  1. absorb any batch left committed-but-unreplayed by a prior crash
//  2. stage the new batch under an IN_PROGRESS marker and fsync
//  3. flip the marker to COMMITTED and fsync - the durability line
//  4. replay the now-committed batch into the main file and fsync
//  5. truncate the WAL back to empty
//
// Step 4 reuses the exact same recovery routine as step 1: once the
// marker reads COMMITTED, "replay our own batch" and "recover from a
// crash after a prior commit" are the same operation.
func (w *Writer) commitBatch(records [][]byte) error {
	return withWALLock(w.walPath, w.cfg.LockRetries, w.cfg.LockDelay, func() error {
		wal, err := os.OpenFile(w.walPath, os.O_RDWR, 0o644)
		if err != nil {
			return wrapIO(err)
		}
		defer wal.Close()

		main, err := os.OpenFile(w.mainPath, os.O_RDWR, 0o644)
		if err != nil {
			return wrapIO(err)
		}
		defer main.Close()

		if err := recoverAndReplay(wal, main); err != nil {
			return err
		}

		targetOffset, err := main.Seek(0, io.SeekEnd)
		if err != nil {
			return wrapIO(err)
		}

		if err := stageBatch(wal, targetOffset, records); err != nil {
			return err
		}

		if err := commitBatchMarker(wal); err != nil {
			return err
		}

		if err := recoverAndReplay(wal, main); err != nil {
			return err
		}

		wardlog.WithDataFileOp(w.cfg.Log, `commitBatch`, len(records)).Debug(`datafile: committed batch`)
		return nil
	})
}

// Close is a no-op retained for symmetry with Reader.Close; Writer
// holds no file handles between Append calls.
func (w *Writer) Close() error { return nil }

// partition splits list into sublists of at most maxSize elements each,
// preserving order.
func partition[T any](list []T, maxSize int) [][]T {
	if len(list) == 0 {
		return nil
	}

	out := make([][]T, 0, (len(list)+maxSize-1)/maxSize)
	for len(list) > 0 {
		n := maxSize
		if n > len(list) {
			n = len(list)
		}
		out = append(out, list[:n])
		list = list[n:]
	}
	return out
}
