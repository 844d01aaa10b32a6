package datafile

import (
	"encoding/binary"
	"hash/crc32"
	"io"
)

// crcTable is the Castagnoli polynomial (CRC32C), as used throughout
// the storage corpus this package is grounded on - not the IEEE
// table that `hash/crc32.ChecksumIEEE` uses.
var crcTable = crc32.MakeTable(crc32.Castagnoli)

// recordOverhead is the fixed per-record framing cost: a 4-byte
// big-endian length prefix plus an 8-byte big-endian CRC32C trailer.
const recordOverhead = 4 + 8

// writeRecord appends one framed record to w: [int32 length][payload][int64 crc32c(payload)].
func writeRecord(w io.Writer, payload []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	if len(payload) > 0 {
		if _, err := w.Write(payload); err != nil {
			return err
		}
	}

	var crcBuf [8]byte
	binary.BigEndian.PutUint64(crcBuf[:], uint64(crc32.Checksum(payload, crcTable)))
	if _, err := w.Write(crcBuf[:]); err != nil {
		return err
	}
	return nil
}

// readRecord reads one framed record from r and verifies its CRC32C.
// It returns io.EOF, unwrapped, only when r is exhausted exactly at a
// record boundary (nothing read yet) - any other truncation is
// reported as a DataFileError of Kind UnexpectedEOF.
func readRecord(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, &DataFileError{Kind: UnexpectedEOF, Cause: err}
	}

	n := binary.BigEndian.Uint32(lenBuf[:])
	payload := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, &DataFileError{Kind: UnexpectedEOF, Cause: err}
		}
	}

	var crcBuf [8]byte
	if _, err := io.ReadFull(r, crcBuf[:]); err != nil {
		return nil, &DataFileError{Kind: UnexpectedEOF, Cause: err}
	}

	want := binary.BigEndian.Uint64(crcBuf[:])
	got := uint64(crc32.Checksum(payload, crcTable))
	if want != got {
		return nil, &DataFileError{Kind: ChecksumMismatch}
	}

	return payload, nil
}
