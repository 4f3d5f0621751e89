package codec_test

import (
	"testing"

	"github.com/heetch/kroute/codec"
)

func BenchmarkBinaryEncode(b *testing.B) {
	v := data{ID: 42, Name: "benchmark", Values: []float64{1, 2, 3, 4, 5}}
	c := codec.Binary()
	b.ReportAllocs()
	for n := 0; n < b.N; n++ {
		if _, err := c.Encode(v); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkBinaryDecode(b *testing.B) {
	c := codec.Binary()
	enc, err := c.Encode(data{ID: 42, Name: "benchmark", Values: []float64{1, 2, 3, 4, 5}})
	if err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for n := 0; n < b.N; n++ {
		var v data
		if err := c.Decode(enc, &v); err != nil {
			b.Fatal(err)
		}
	}
}
