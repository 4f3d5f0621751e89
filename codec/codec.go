package codec

import (
	"fmt"
	"strconv"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
	"google.golang.org/protobuf/proto"
)

var (
	// ErrEncode is matched by every error returned by a codec's Encode method.
	ErrEncode = errors.New("codec: cannot encode value")

	// ErrDecode is matched by every error returned by a codec's Decode method.
	ErrDecode = errors.New("codec: cannot decode data")
)

// A Codec can encode and decode values.
type Codec interface {
	Encode(v interface{}) ([]byte, error)
	Decode(data []byte, target interface{}) error
}

type codecFunc struct {
	encodeFn func(v interface{}) ([]byte, error)
	decodeFn func(data []byte, target interface{}) error
}

func (c *codecFunc) Encode(v interface{}) ([]byte, error) {
	data, err := c.encodeFn(v)
	if err != nil {
		return nil, &codecError{kind: ErrEncode, err: err}
	}
	return data, nil
}

func (c *codecFunc) Decode(data []byte, target interface{}) error {
	if err := c.decodeFn(data, target); err != nil {
		return &codecError{kind: ErrDecode, err: err}
	}
	return nil
}

// codecError keeps the underlying message intact while still
// matching ErrEncode or ErrDecode.
type codecError struct {
	kind error
	err  error
}

func (e *codecError) Error() string        { return e.err.Error() }
func (e *codecError) Unwrap() error        { return e.err }
func (e *codecError) Is(target error) bool { return target == e.kind }

// Binary returns the default codec. It produces a compact,
// deterministic binary representation: the same logical value always
// encodes to the same bytes, so keys encoded with it are safe to use
// for partitioning. See binary.go for the layout.
//
// Decoding an encoded value gives back the same value, except that
// empty slices and maps are indistinguishable from nil ones once
// encoded and always decode to nil.
func Binary() Codec {
	return &codecFunc{marshalBinary, unmarshalBinary}
}

// String encodes and decodes strings or byte slices into themselves.
// It is useful when passing raw data without touching it.
// The Encode method takes a byte slice, string, stringer or error and returns a byte slice.
// The Decode method turns data into v without touching it. v must be a pointer to byte slice or a pointer to string.
func String() Codec {
	return &codecFunc{
		func(v interface{}) ([]byte, error) {
			switch t := v.(type) {
			case string:
				return []byte(t), nil
			case []byte:
				return t, nil
			case fmt.Stringer:
				return []byte(t.String()), nil
			case error:
				return []byte(t.Error()), nil
			default:
				return nil, errors.Errorf("%v must be a string, a stringer, an error or a byte slice, got %T instead", v, v)
			}
		},
		func(data []byte, target interface{}) error {
			switch t := target.(type) {
			case *string:
				*t = string(data)
			case *[]byte:
				*t = data
			default:
				return errors.Errorf("target must be a pointer to string or to a byte slice, got %T instead", target)
			}

			return nil
		},
	}
}

// JSON Codec handles JSON encoding. Map keys are sorted so the
// output is deterministic.
func JSON() Codec {
	return &codecFunc{sonic.ConfigStd.Marshal, sonic.ConfigStd.Unmarshal}
}

// Proto Codec handles protocol buffer messages. Values and targets
// must implement proto.Message. Marshaling is deterministic.
func Proto() Codec {
	opts := proto.MarshalOptions{Deterministic: true}
	return &codecFunc{
		func(v interface{}) ([]byte, error) {
			m, ok := v.(proto.Message)
			if !ok {
				return nil, errors.Errorf("%v must be a proto.Message, got %T instead", v, v)
			}
			return opts.Marshal(m)
		},
		func(data []byte, target interface{}) error {
			m, ok := target.(proto.Message)
			if !ok {
				return errors.Errorf("target must be a proto.Message, got %T instead", target)
			}
			return proto.Unmarshal(data, m)
		},
	}
}

// Int64 Codec handles int64 encoding.
func Int64() Codec {
	return &codecFunc{
		func(v interface{}) ([]byte, error) {
			i, ok := v.(int64)
			if !ok {
				return nil, errors.Errorf("%v must be an int64, got %T instead", v, v)
			}

			return []byte(strconv.FormatInt(i, 10)), nil
		},
		func(data []byte, target interface{}) error {
			ptr, ok := target.(*int64)
			if !ok {
				return errors.Errorf("target must be a pointer to int64, got %T instead", target)
			}

			i, err := strconv.ParseInt(string(data), 10, 64)
			if err != nil {
				return err
			}

			*ptr = i
			return nil
		},
	}
}

// Float64 Codec handles float64 encoding.
func Float64() Codec {
	return &codecFunc{
		func(v interface{}) ([]byte, error) {
			f, ok := v.(float64)
			if !ok {
				return nil, errors.Errorf("%v must be a float64, got %T instead", v, v)
			}

			return []byte(strconv.FormatFloat(f, 'f', -1, 64)), nil
		},
		func(data []byte, target interface{}) error {
			ptr, ok := target.(*float64)
			if !ok {
				return errors.Errorf("target must be a pointer to float64, got %T instead", target)
			}

			f, err := strconv.ParseFloat(string(data), 64)
			if err != nil {
				return err
			}

			*ptr = f
			return nil
		},
	}
}

// Encode encodes v with the Binary codec.
func Encode(v interface{}) ([]byte, error) {
	return Binary().Encode(v)
}

// Decode decodes data into target with the Binary codec.
func Decode(data []byte, target interface{}) error {
	return Binary().Decode(data, target)
}
