package codec

import (
	"reflect"

	"github.com/vmihailenco/msgpack/v5"
)

// Binary is the compact Codec implementation, backed by
// vmihailenco/msgpack/v5. It's the reference implementation used by
// the data file writer/reader, where payload size directly affects
// WAL/main-file growth.
type Binary struct{}

var _ Codec = Binary{}

func (Binary) Encode(value any) ([]byte, error) {
	b, err := msgpack.Marshal(value)
	if err != nil {
		return nil, &CodecError{Op: OpEncode, Cause: err}
	}
	return b, nil
}

func (Binary) Decode(data []byte, hint TypeDescriptor) (any, error) {
	if err := checkDecodeArgs(data, hint); err != nil {
		return nil, err
	}

	ptr := reflect.New(hint.Type)
	if err := msgpack.Unmarshal(data, ptr.Interface()); err != nil {
		return nil, &CodecError{Op: OpDecode, Cause: err}
	}
	return ptr.Elem().Interface(), nil
}
