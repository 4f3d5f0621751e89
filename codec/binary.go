package codec

import (
	"bytes"
	"encoding"
	"encoding/binary"
	"math"
	"reflect"
	"sort"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// The binary layout is compatible with the "standard" configuration
// of the bincode format, so keys and payloads can be exchanged with
// producers and consumers written against it:
//
//	unsigned integers   varint: < 251 in one byte, otherwise a marker
//	                    (251, 252, 253) followed by a little-endian
//	                    uint16, uint32 or uint64
//	signed integers     zigzag, then varint
//	uint8, int8         one raw byte
//	bool                one byte, 0 or 1
//	float32, float64    IEEE 754, little-endian
//	string, []byte      varint length, then the bytes
//	slices, maps        varint length, then the elements; map entries
//	                    are sorted by their encoded key
//	arrays              the elements
//	structs             exported fields in declaration order, except
//	                    those tagged `kroute:"-"`
//	pointers            0 for nil, or 1 followed by the value
//
// Types implementing both encoding.BinaryMarshaler and (through a
// pointer) encoding.BinaryUnmarshaler are written as length-prefixed
// bytes. Empty and nil collections encode identically and decode to
// nil.

const (
	varintU16 = 251
	varintU32 = 252
	varintU64 = 253
)

var (
	byteType        = reflect.TypeOf(byte(0))
	marshalerType   = reflect.TypeOf((*encoding.BinaryMarshaler)(nil)).Elem()
	unmarshalerType = reflect.TypeOf((*encoding.BinaryUnmarshaler)(nil)).Elem()
)

func marshalBinary(v interface{}) ([]byte, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil, errors.Errorf("cannot encode nil %T", v)
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return nil, errors.New("cannot encode nil value")
	}

	var e binaryEncoder
	if err := e.encode(rv); err != nil {
		return nil, err
	}
	if e.buf == nil {
		e.buf = []byte{}
	}
	return e.buf, nil
}

func unmarshalBinary(data []byte, target interface{}) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return errors.Errorf("target must be a non-nil pointer, got %T instead", target)
	}

	d := binaryDecoder{data: data}
	if err := d.decode(rv.Elem()); err != nil {
		return err
	}
	if rest := len(d.data) - d.off; rest != 0 {
		return errors.Errorf("%d trailing bytes after %s value", rest, rv.Elem().Type())
	}
	return nil
}

func usesBinaryMarshaler(t reflect.Type) bool {
	return t.Kind() != reflect.Ptr &&
		t.Implements(marshalerType) &&
		reflect.PtrTo(t).Implements(unmarshalerType)
}

func skipField(f reflect.StructField) bool {
	return !f.IsExported() || f.Tag.Get("kroute") == "-"
}

type binaryEncoder struct {
	buf []byte
}

func (e *binaryEncoder) putUvarint(u uint64) {
	switch {
	case u < varintU16:
		e.buf = append(e.buf, byte(u))
	case u <= math.MaxUint16:
		e.buf = append(e.buf, varintU16)
		e.buf = binary.LittleEndian.AppendUint16(e.buf, uint16(u))
	case u <= math.MaxUint32:
		e.buf = append(e.buf, varintU32)
		e.buf = binary.LittleEndian.AppendUint32(e.buf, uint32(u))
	default:
		e.buf = append(e.buf, varintU64)
		e.buf = binary.LittleEndian.AppendUint64(e.buf, u)
	}
}

func (e *binaryEncoder) putVarint(n int64) {
	e.putUvarint(uint64(n<<1) ^ uint64(n>>63))
}

func (e *binaryEncoder) encode(v reflect.Value) error {
	t := v.Type()
	if usesBinaryMarshaler(t) {
		b, err := v.Interface().(encoding.BinaryMarshaler).MarshalBinary()
		if err != nil {
			return errors.Wrapf(err, "cannot marshal %s", t)
		}
		e.putUvarint(uint64(len(b)))
		e.buf = append(e.buf, b...)
		return nil
	}

	switch t.Kind() {
	case reflect.Bool:
		if v.Bool() {
			e.buf = append(e.buf, 1)
		} else {
			e.buf = append(e.buf, 0)
		}
	case reflect.Int8:
		e.buf = append(e.buf, byte(int8(v.Int())))
	case reflect.Int, reflect.Int16, reflect.Int32, reflect.Int64:
		e.putVarint(v.Int())
	case reflect.Uint8:
		e.buf = append(e.buf, byte(v.Uint()))
	case reflect.Uint, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		e.putUvarint(v.Uint())
	case reflect.Float32:
		e.buf = binary.LittleEndian.AppendUint32(e.buf, math.Float32bits(float32(v.Float())))
	case reflect.Float64:
		e.buf = binary.LittleEndian.AppendUint64(e.buf, math.Float64bits(v.Float()))
	case reflect.String:
		s := v.String()
		if !utf8.ValidString(s) {
			return errors.Errorf("string %q is not valid UTF-8", s)
		}
		e.putUvarint(uint64(len(s)))
		e.buf = append(e.buf, s...)
	case reflect.Slice:
		n := v.Len()
		e.putUvarint(uint64(n))
		if t.Elem().Kind() == reflect.Uint8 {
			e.buf = append(e.buf, v.Bytes()...)
			return nil
		}
		for i := 0; i < n; i++ {
			if err := e.encode(v.Index(i)); err != nil {
				return err
			}
		}
	case reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if err := e.encode(v.Index(i)); err != nil {
				return err
			}
		}
	case reflect.Map:
		return e.encodeMap(v)
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if skipField(t.Field(i)) {
				continue
			}
			if err := e.encode(v.Field(i)); err != nil {
				return errors.Wrapf(err, "field %s.%s", t, t.Field(i).Name)
			}
		}
	case reflect.Ptr:
		if v.IsNil() {
			e.buf = append(e.buf, 0)
			return nil
		}
		e.buf = append(e.buf, 1)
		return e.encode(v.Elem())
	default:
		return errors.Errorf("unsupported type %s", t)
	}
	return nil
}

func (e *binaryEncoder) encodeMap(v reflect.Value) error {
	type entry struct {
		key []byte
		val reflect.Value
	}
	entries := make([]entry, 0, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		var ke binaryEncoder
		if err := ke.encode(iter.Key()); err != nil {
			return err
		}
		entries = append(entries, entry{key: ke.buf, val: iter.Value()})
	}
	sort.Slice(entries, func(i, j int) bool {
		return bytes.Compare(entries[i].key, entries[j].key) < 0
	})

	e.putUvarint(uint64(len(entries)))
	for _, en := range entries {
		e.buf = append(e.buf, en.key...)
		if err := e.encode(en.val); err != nil {
			return err
		}
	}
	return nil
}

type binaryDecoder struct {
	data []byte
	off  int
}

func (d *binaryDecoder) read(n int) ([]byte, error) {
	if n < 0 || n > len(d.data)-d.off {
		return nil, errors.Errorf("unexpected end of data: need %d bytes at offset %d, have %d", n, d.off, len(d.data)-d.off)
	}
	b := d.data[d.off : d.off+n]
	d.off += n
	return b, nil
}

func (d *binaryDecoder) readByte() (byte, error) {
	b, err := d.read(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (d *binaryDecoder) readUvarint() (uint64, error) {
	marker, err := d.readByte()
	if err != nil {
		return 0, err
	}
	switch {
	case marker < varintU16:
		return uint64(marker), nil
	case marker == varintU16:
		b, err := d.read(2)
		if err != nil {
			return 0, err
		}
		return uint64(binary.LittleEndian.Uint16(b)), nil
	case marker == varintU32:
		b, err := d.read(4)
		if err != nil {
			return 0, err
		}
		return uint64(binary.LittleEndian.Uint32(b)), nil
	case marker == varintU64:
		b, err := d.read(8)
		if err != nil {
			return 0, err
		}
		return binary.LittleEndian.Uint64(b), nil
	default:
		return 0, errors.Errorf("invalid varint marker %d at offset %d", marker, d.off-1)
	}
}

func (d *binaryDecoder) readLen() (int, error) {
	u, err := d.readUvarint()
	if err != nil {
		return 0, err
	}
	if u > uint64(math.MaxInt32) {
		return 0, errors.Errorf("length %d is too large", u)
	}
	return int(u), nil
}

// capHint bounds preallocation by what is left in the input so a
// corrupt length cannot trigger a huge allocation.
func (d *binaryDecoder) capHint(n int) int {
	if rest := len(d.data) - d.off; n > rest {
		return rest
	}
	return n
}

func (d *binaryDecoder) decode(v reflect.Value) error {
	t := v.Type()
	if usesBinaryMarshaler(t) {
		n, err := d.readLen()
		if err != nil {
			return err
		}
		b, err := d.read(n)
		if err != nil {
			return err
		}
		if err := v.Addr().Interface().(encoding.BinaryUnmarshaler).UnmarshalBinary(b); err != nil {
			return errors.Wrapf(err, "cannot unmarshal %s", t)
		}
		return nil
	}

	switch t.Kind() {
	case reflect.Bool:
		b, err := d.readByte()
		if err != nil {
			return err
		}
		if b > 1 {
			return errors.Errorf("invalid bool value %d at offset %d", b, d.off-1)
		}
		v.SetBool(b == 1)
	case reflect.Int8:
		b, err := d.readByte()
		if err != nil {
			return err
		}
		v.SetInt(int64(int8(b)))
	case reflect.Int, reflect.Int16, reflect.Int32, reflect.Int64:
		u, err := d.readUvarint()
		if err != nil {
			return err
		}
		n := int64(u>>1) ^ -int64(u&1)
		if v.OverflowInt(n) {
			return errors.Errorf("value %d overflows %s", n, t)
		}
		v.SetInt(n)
	case reflect.Uint8:
		b, err := d.readByte()
		if err != nil {
			return err
		}
		v.SetUint(uint64(b))
	case reflect.Uint, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := d.readUvarint()
		if err != nil {
			return err
		}
		if v.OverflowUint(u) {
			return errors.Errorf("value %d overflows %s", u, t)
		}
		v.SetUint(u)
	case reflect.Float32:
		b, err := d.read(4)
		if err != nil {
			return err
		}
		v.SetFloat(float64(math.Float32frombits(binary.LittleEndian.Uint32(b))))
	case reflect.Float64:
		b, err := d.read(8)
		if err != nil {
			return err
		}
		v.SetFloat(math.Float64frombits(binary.LittleEndian.Uint64(b)))
	case reflect.String:
		n, err := d.readLen()
		if err != nil {
			return err
		}
		b, err := d.read(n)
		if err != nil {
			return err
		}
		if !utf8.Valid(b) {
			return errors.Errorf("invalid UTF-8 string at offset %d", d.off-n)
		}
		v.SetString(string(b))
	case reflect.Slice:
		return d.decodeSlice(v)
	case reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if err := d.decode(v.Index(i)); err != nil {
				return err
			}
		}
	case reflect.Map:
		return d.decodeMap(v)
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if skipField(t.Field(i)) {
				continue
			}
			if err := d.decode(v.Field(i)); err != nil {
				return errors.Wrapf(err, "field %s.%s", t, t.Field(i).Name)
			}
		}
	case reflect.Ptr:
		tag, err := d.readByte()
		if err != nil {
			return err
		}
		switch tag {
		case 0:
			v.Set(reflect.Zero(t))
		case 1:
			p := reflect.New(t.Elem())
			if err := d.decode(p.Elem()); err != nil {
				return err
			}
			v.Set(p)
		default:
			return errors.Errorf("invalid option tag %d at offset %d", tag, d.off-1)
		}
	default:
		return errors.Errorf("unsupported type %s", t)
	}
	return nil
}

func (d *binaryDecoder) decodeSlice(v reflect.Value) error {
	t := v.Type()
	n, err := d.readLen()
	if err != nil {
		return err
	}
	if n == 0 {
		v.Set(reflect.Zero(t))
		return nil
	}
	if t.Elem() == byteType {
		b, err := d.read(n)
		if err != nil {
			return err
		}
		cp := make([]byte, n)
		copy(cp, b)
		v.SetBytes(cp)
		return nil
	}

	s := reflect.MakeSlice(t, 0, d.capHint(n))
	for i := 0; i < n; i++ {
		elem := reflect.New(t.Elem()).Elem()
		if err := d.decode(elem); err != nil {
			return err
		}
		s = reflect.Append(s, elem)
	}
	v.Set(s)
	return nil
}

func (d *binaryDecoder) decodeMap(v reflect.Value) error {
	t := v.Type()
	n, err := d.readLen()
	if err != nil {
		return err
	}
	if n == 0 {
		v.Set(reflect.Zero(t))
		return nil
	}

	m := reflect.MakeMapWithSize(t, d.capHint(n))
	for i := 0; i < n; i++ {
		key := reflect.New(t.Key()).Elem()
		if err := d.decode(key); err != nil {
			return err
		}
		val := reflect.New(t.Elem()).Elem()
		if err := d.decode(val); err != nil {
			return err
		}
		m.SetMapIndex(key, val)
	}
	v.Set(m)
	return nil
}
