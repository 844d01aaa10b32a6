package codec

import (
	"reflect"

	json "github.com/goccy/go-json"
)

// Text is the human-readable Codec implementation, backed by
// goccy/go-json (a drop-in, allocation-lighter encoding/json
// replacement). It's the reference implementation used by the
// RDBMS-backed stores for metadata/eviction-key columns, where the
// value is going to be stored as text anyway.
type Text struct{}

var _ Codec = Text{}

func (Text) Encode(value any) ([]byte, error) {
	b, err := json.Marshal(value)
	if err != nil {
		return nil, &CodecError{Op: OpEncode, Cause: err}
	}
	return b, nil
}

func (Text) Decode(data []byte, hint TypeDescriptor) (any, error) {
	if err := checkDecodeArgs(data, hint); err != nil {
		return nil, err
	}

	ptr := reflect.New(hint.Type)
	if err := json.Unmarshal(data, ptr.Interface()); err != nil {
		return nil, &CodecError{Op: OpDecode, Cause: err}
	}
	return ptr.Elem().Interface(), nil
}
