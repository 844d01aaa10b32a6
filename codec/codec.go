// Package codec defines the Codec SPI shared by every ward module that
// needs to move values to and from bytes: the data file (payloads), the
// RDBMS-backed lock/cluster/cache stores (metadata, encoded keys).
//
// A Codec is deliberately minimal: encode(value) -> bytes,
// decode(bytes, typeHint) -> value. typeHint replaces the captured-type
// token idiom of the source this spec was distilled from (an anonymous
// subclass carrying a generic parameter) with an explicit TypeDescriptor
// value, the idiomatic Go equivalent.
package codec

import (
	"errors"
	"fmt"
	"reflect"
)

type (
	// Kind discriminates the shape of a TypeDescriptor.
	Kind int

	// TypeDescriptor carries enough type information through a Decode
	// call to reconstruct a value, including one level of container
	// element type (slice/map), which a bare reflect.Type can already
	// represent, but which callers building descriptors by hand often
	// want spelled out explicitly.
	TypeDescriptor struct {
		Kind Kind
		// Type is the concrete Go type to decode into. Required.
		Type reflect.Type
		// Elem describes slice/array element types. Only meaningful
		// when Kind is KindSlice.
		Elem *TypeDescriptor
		// Key describes map key types. Only meaningful when Kind is
		// KindMap.
		Key *TypeDescriptor
	}

	// Codec is the symmetric encode/decode contract. Implementations
	// must round-trip every representable value: decode(encode(v), t)
	// == v for the matching descriptor t. Two values encoded by
	// different Codec implementations are not expected to be
	// byte-identical; consumers must not depend on that.
	Codec interface {
		Encode(value any) ([]byte, error)
		Decode(data []byte, hint TypeDescriptor) (any, error)
	}

	// Op identifies which Codec operation a CodecError came from.
	Op int

	// CodecError wraps encode/decode failures, preserving the cause.
	CodecError struct {
		Op    Op
		Cause error
	}
)

const (
	KindPrimitive Kind = iota
	KindSlice
	KindMap
	KindStruct
)

const (
	OpEncode Op = iota
	OpDecode
)

var (
	// ErrNilInput is the cause of a CodecError{Op: OpDecode} when the
	// byte slice passed to Decode is nil.
	ErrNilInput = errors.New(`codec: nil input`)
	// ErrNilHint is the cause of a CodecError{Op: OpDecode} when the
	// TypeDescriptor passed to Decode has a nil Type.
	ErrNilHint = errors.New(`codec: nil type hint`)
)

func (op Op) String() string {
	if op == OpDecode {
		return `decode`
	}
	return `encode`
}

func (e *CodecError) Error() string {
	return fmt.Sprintf(`codec: %s: %v`, e.Op, e.Cause)
}

func (e *CodecError) Unwrap() error { return e.Cause }

// Describe builds a TypeDescriptor for the concrete type of v, via
// reflection. v must not be nil. For slices and maps, Elem (and Key,
// for maps) are populated recursively from the zero value of the
// container's element/key type.
func Describe(v any) TypeDescriptor {
	return describeType(reflect.TypeOf(v))
}

// DescribeType builds a TypeDescriptor directly from a reflect.Type,
// for callers that already have one (e.g. via reflect.TypeOf((*T)(nil)).Elem()).
func DescribeType(t reflect.Type) TypeDescriptor {
	return describeType(t)
}

func describeType(t reflect.Type) TypeDescriptor {
	switch t.Kind() {
	case reflect.Slice, reflect.Array:
		elem := describeType(t.Elem())
		return TypeDescriptor{Kind: KindSlice, Type: t, Elem: &elem}
	case reflect.Map:
		key := describeType(t.Key())
		elem := describeType(t.Elem())
		return TypeDescriptor{Kind: KindMap, Type: t, Key: &key, Elem: &elem}
	case reflect.Struct:
		return TypeDescriptor{Kind: KindStruct, Type: t}
	default:
		return TypeDescriptor{Kind: KindPrimitive, Type: t}
	}
}

// checkDecodeArgs implements the null-guard contract shared by every
// Codec implementation's Decode method.
func checkDecodeArgs(data []byte, hint TypeDescriptor) error {
	if data == nil {
		return &CodecError{Op: OpDecode, Cause: ErrNilInput}
	}
	if hint.Type == nil {
		return &CodecError{Op: OpDecode, Cause: ErrNilHint}
	}
	return nil
}

// DecodeAs is a generic convenience wrapper around Codec.Decode, for
// callers who know the target type statically.
func DecodeAs[T any](c Codec, data []byte) (T, error) {
	var zero T
	hint := DescribeType(reflect.TypeOf((*T)(nil)).Elem())
	v, err := c.Decode(data, hint)
	if err != nil {
		return zero, err
	}
	out, ok := v.(T)
	if !ok {
		return zero, &CodecError{Op: OpDecode, Cause: fmt.Errorf(`codec: decoded value of type %T is not assignable to %T`, v, zero)}
	}
	return out, nil
}
