// Package codec converts Go values to and from the bytes carried in
// Kafka message keys and values.
//
// Binary is the default codec used by the consumer and the producer.
// It is deterministic, so the same key always lands on the same
// partition, and decoding rejects any input that does not exactly
// match the layout of the target type.
//
// String, JSON, Int64, Float64 and Proto are provided for payloads
// that are exchanged with systems using those formats. The Encoder
// type wraps a codec and a value into a sarama.Encoder.
package codec
