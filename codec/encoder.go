package codec

import "sync"

// Encoder is a value that encodes itself lazily as the key or value of
// a Kafka message. It matches the sarama.Encoder interface, so it can
// be set directly on a sarama.ProducerMessage, for instance one sent
// through the sarama.SyncProducer embedded in producer.Producer.
type Encoder interface {
	Encode() ([]byte, error)
	Length() int
}

// NewEncoder returns an Encoder encoding v with c. The result is
// computed once, on the first call to Encode or Length, and reused
// afterwards. It is safe for concurrent use.
func NewEncoder(c Codec, v interface{}) Encoder {
	return &encoder{codec: c, v: v}
}

// BinaryEncoder encodes v with the Binary codec.
func BinaryEncoder(v interface{}) Encoder { return NewEncoder(Binary(), v) }

// StringEncoder encodes v with the String codec.
func StringEncoder(v string) Encoder { return NewEncoder(String(), v) }

// Int64Encoder encodes v with the Int64 codec.
func Int64Encoder(v int) Encoder { return NewEncoder(Int64(), int64(v)) }

// Float64Encoder encodes v with the Float64 codec.
func Float64Encoder(v float64) Encoder { return NewEncoder(Float64(), v) }

// JSONEncoder encodes v with the JSON codec.
func JSONEncoder(v interface{}) Encoder { return NewEncoder(JSON(), v) }

type encoder struct {
	codec Codec
	v     interface{}

	once sync.Once
	data []byte
	err  error
}

func (e *encoder) encode() {
	e.data, e.err = e.codec.Encode(e.v)
}

// Length is usually called by sarama before Encode. An encoding error
// gives a zero length and is reported by Encode.
func (e *encoder) Length() int {
	e.once.Do(e.encode)
	return len(e.data)
}

func (e *encoder) Encode() ([]byte, error) {
	e.once.Do(e.encode)
	if e.err != nil {
		return nil, e.err
	}
	return e.data, nil
}
