package producer

import (
	"encoding/binary"
	"hash"

	"github.com/Shopify/sarama"
)

// NewJVMCompatiblePartitioner creates a Sarama partitioner that uses
// the same hashing algorithm as JVM Kafka clients, so a key encoded
// identically lands on the same partition whichever client produced it.
func NewJVMCompatiblePartitioner(topic string) sarama.Partitioner {
	return sarama.NewCustomHashPartitioner(MurmurHasher)(topic)
}

// MurmurHasher returns the hash.Hash32 used by the JVM compatible
// partitioner. Sarama writes the whole key in a single Write call,
// so the hasher does not support streaming: every Write replaces the
// previous sum.
func MurmurHasher() hash.Hash32 {
	return new(murmurHash)
}

type murmurHash struct {
	sum uint32
}

func (m *murmurHash) Write(p []byte) (int, error) {
	m.sum = murmur2(p)
	return len(p), nil
}

func (m *murmurHash) Reset()         { m.sum = 0 }
func (m *murmurHash) Size() int      { return 4 }
func (m *murmurHash) BlockSize() int { return 4 }

func (m *murmurHash) Sum(in []byte) []byte {
	return binary.BigEndian.AppendUint32(in, m.Sum32())
}

// Sum32 returns the positive hash, as the JVM clients do before taking
// the modulo of the partition count.
func (m *murmurHash) Sum32() uint32 {
	return m.sum & 0x7fffffff
}

// murmur2 is the 32 bits MurmurHash2 variant of
// org.apache.kafka.common.utils.Utils#murmur2.
func murmur2(data []byte) uint32 {
	const (
		seed = 0x9747b28c
		m    = 0x5bd1e995
		r    = 24
	)

	h := uint32(seed) ^ uint32(len(data))
	for ; len(data) >= 4; data = data[4:] {
		k := binary.LittleEndian.Uint32(data)
		k *= m
		k ^= k >> r
		k *= m
		h *= m
		h ^= k
	}

	switch len(data) {
	case 3:
		h ^= uint32(data[2]) << 16
		fallthrough
	case 2:
		h ^= uint32(data[1]) << 8
		fallthrough
	case 1:
		h ^= uint32(data[0])
		h *= m
	}

	h ^= h >> 13
	h *= m
	h ^= h >> 15
	return h
}
