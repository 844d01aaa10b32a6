package datafile

import (
	"encoding/binary"
	"io"
	"os"
	"time"

	"github.com/gofrs/flock"
)

const (
	// markerInProgress is written as the WAL's first byte while a batch
	// is being staged; a crash while this value is in place means the
	// batch never committed and is discarded on recovery.
	markerInProgress byte = 0x80
	// markerCommitted replaces markerInProgress, in a single byte write,
	// once the full batch and its header are durably on disk. It is the
	// line a crash must cross for the batch to be replayed.
	markerCommitted byte = 0x7F
)

// walHeaderSize is 1 marker byte + 8 target-offset bytes + 4 count bytes.
const walHeaderSize = 1 + 8 + 4

// withWALLock acquires an OS-level exclusive lock on path, retrying on
// contention, runs fn while held, then releases it. This is the only
// thing in this package that coordinates across processes; everything
// else assumes a single writer per file pair within a process.
func withWALLock(path string, retries int, delay time.Duration, fn func() error) error {
	fl := flock.New(path)
	defer func() { _ = fl.Unlock() }()

	var locked bool
	for i := 0; i < retries; i++ {
		ok, err := fl.TryLock()
		if err != nil {
			return &DataFileError{Kind: IOError, Cause: err}
		}
		if ok {
			locked = true
			break
		}
		time.Sleep(delay)
	}
	if !locked {
		return &DataFileError{Kind: IOError, Cause: errLockTimeout}
	}

	return fn()
}

var errLockTimeout = dataFileLockError(`exclusive WAL lock not acquired within retry budget`)

type dataFileLockError string

func (e dataFileLockError) Error() string { return string(e) }

// recoverAndReplay drains wal into main if wal holds a committed batch,
// then truncates wal to zero length regardless of what it found. It is
// the single recovery routine shared by Writer (both to absorb a prior
// crash before staging a new batch, and to replay the batch it just
// committed) and Reader (to make a just-committed batch visible before
// serving the next read). Calling it against an empty or in-progress
// WAL is a safe no-op beyond the truncation.
func recoverAndReplay(wal, main *os.File) error {
	info, err := wal.Stat()
	if err != nil {
		return wrapIO(err)
	}
	if info.Size() == 0 {
		return nil
	}

	defer func() {
		_ = wal.Truncate(0)
		_ = wal.Sync()
	}()

	if _, err := wal.Seek(0, io.SeekStart); err != nil {
		return wrapIO(err)
	}

	var marker [1]byte
	if _, err := io.ReadFull(wal, marker[:]); err != nil {
		// Truncated header: nothing recoverable, the deferred truncate cleans it up.
		return nil
	}
	if marker[0] != markerCommitted {
		return nil
	}

	var hdr [8 + 4]byte
	if _, err := io.ReadFull(wal, hdr[:]); err != nil {
		return nil
	}
	targetOffset := int64(binary.BigEndian.Uint64(hdr[0:8]))
	count := binary.BigEndian.Uint32(hdr[8:12])

	if _, err := main.Seek(targetOffset, io.SeekStart); err != nil {
		return wrapIO(err)
	}

	for i := uint32(0); i < count; i++ {
		payload, err := readRecord(wal)
		if err != nil {
			return err
		}
		if err := writeRecord(main, payload); err != nil {
			return wrapIO(err)
		}
	}

	return wrapIO(main.Sync())
}

// stageBatch writes a fresh IN_PROGRESS wal header followed by records,
// starting at offset 0 (the caller has already confirmed wal is empty,
// via a prior recoverAndReplay).
func stageBatch(wal *os.File, targetOffset int64, records [][]byte) error {
	if _, err := wal.Seek(0, io.SeekStart); err != nil {
		return wrapIO(err)
	}

	var hdr [walHeaderSize]byte
	hdr[0] = markerInProgress
	binary.BigEndian.PutUint64(hdr[1:9], uint64(targetOffset))
	binary.BigEndian.PutUint32(hdr[9:13], uint32(len(records)))
	if _, err := wal.Write(hdr[:]); err != nil {
		return wrapIO(err)
	}

	for _, r := range records {
		if err := writeRecord(wal, r); err != nil {
			return wrapIO(err)
		}
	}

	return wrapIO(wal.Sync())
}

// commitBatchMarker flips the WAL's marker byte from IN_PROGRESS to
// COMMITTED in a single write, then forces it to disk. This is the
// instant a batch becomes durable and crash-safe to replay.
func commitBatchMarker(wal *os.File) error {
	if _, err := wal.WriteAt([]byte{markerCommitted}, 0); err != nil {
		return wrapIO(err)
	}
	return wrapIO(wal.Sync())
}
