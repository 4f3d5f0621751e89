package handler

import "github.com/heetch/kroute/codec"

// RequirePayload returns payload, or ErrPayloadMissing when it is nil.
func RequirePayload(payload []byte) ([]byte, error) {
	if payload == nil {
		return nil, ErrPayloadMissing
	}
	return payload, nil
}

// DecodePayload decodes payload into target using c.
// A nil payload returns ErrPayloadMissing and a decoding failure a
// *DeserializeError.
func DecodePayload(c codec.Codec, payload []byte, target interface{}) error {
	if payload == nil {
		return ErrPayloadMissing
	}
	if err := c.Decode(payload, target); err != nil {
		return &DeserializeError{Err: err}
	}
	return nil
}
