package datafile

import (
	"io"
	"os"
	"path/filepath"
	"sync"
)

// Reader serves records from a data file written by a Writer over the
// same directory. Every read first runs recovery against the WAL, so a
// Reader started against a directory a Writer crashed mid-commit in
// still sees that commit's batch (or none of it) consistently.
type Reader struct {
	mainPath string
	walPath  string
	cfg      Config

	mu     sync.Mutex
	main   *os.File
	wal    *os.File
	offset int64
}

// NewReader opens (creating if necessary) the data file and WAL pair
// rooted at dir for reading.
func NewReader(dir string, cfg Config) (*Reader, error) {
	r := &Reader{
		mainPath: filepath.Join(dir, `data.ds`),
		walPath:  filepath.Join(dir, `wal.log`),
		cfg:      cfg.withDefaults(),
	}

	main, err := os.OpenFile(r.mainPath, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, wrapIO(err)
	}
	r.main = main

	wal, err := os.OpenFile(r.walPath, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		_ = main.Close()
		return nil, wrapIO(err)
	}
	r.wal = wal

	return r, nil
}

// recoverLocked runs recovery against the WAL, under the same
// cross-process exclusive lock a Writer would hold while committing -
// so a Reader never observes a batch half-replayed by a concurrent
// Writer on another process.
func (r *Reader) recoverLocked() error {
	return withWALLock(r.walPath, r.cfg.LockRetries, r.cfg.LockDelay, func() error {
		return recoverAndReplay(r.wal, r.main)
	})
}

// ReadNext reads and decodes the next record after the Reader's
// internal cursor, advancing it on success. It returns (nil, nil) when
// the main file is exhausted at a clean record boundary.
func (r *Reader) ReadNext() (any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.recoverLocked(); err != nil {
		return nil, err
	}

	if _, err := r.main.Seek(r.offset, io.SeekStart); err != nil {
		return nil, wrapIO(err)
	}

	payload, err := readRecord(r.main)
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	pos, err := r.main.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, wrapIO(err)
	}
	r.offset = pos

	v, err := r.cfg.Codec.Decode(payload, r.cfg.Hint)
	if err != nil {
		return nil, &DataFileError{Kind: IOError, Cause: err}
	}
	return v, nil
}

// ReadAt decodes the single record at offset, without disturbing the
// Reader's sequential cursor used by ReadNext. It returns the offset of
// the record immediately following, for random-access callers that want
// to resume from where they left off.
func (r *Reader) ReadAt(offset int64) (value any, next int64, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.recoverLocked(); err != nil {
		return nil, offset, err
	}

	if _, err := r.main.Seek(offset, io.SeekStart); err != nil {
		return nil, offset, wrapIO(err)
	}

	payload, err := readRecord(r.main)
	if err == io.EOF {
		return nil, offset, nil
	}
	if err != nil {
		return nil, offset, err
	}

	pos, err := r.main.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, offset, wrapIO(err)
	}

	v, err := r.cfg.Codec.Decode(payload, r.cfg.Hint)
	if err != nil {
		return nil, pos, &DataFileError{Kind: IOError, Cause: err}
	}
	return v, pos, nil
}

// ReadAll drains every remaining record from the Reader's current
// cursor to the end of the file, in order.
func (r *Reader) ReadAll() ([]any, error) {
	var out []any
	for {
		v, err := r.ReadNext()
		if err != nil {
			return out, err
		}
		if v == nil {
			return out, nil
		}
		out = append(out, v)
	}
}

// Close releases the Reader's file handles.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	err1 := r.main.Close()
	err2 := r.wal.Close()
	if err1 != nil {
		return wrapIO(err1)
	}
	if err2 != nil {
		return wrapIO(err2)
	}
	return nil
}
