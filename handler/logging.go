package handler

import (
	"context"

	"go.uber.org/zap"
)

// Discard is a Handler that accepts every message and does nothing.
var Discard Handler = HandlerFunc(func(context.Context, string, []byte) error { return nil })

// Logging returns a Handler that accepts every message and logs its
// key and payload length at debug level.
func Logging(logger *zap.Logger) Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return HandlerFunc(func(_ context.Context, key string, payload []byte) error {
		logger.Debug("message received",
			zap.String("key", key),
			zap.Int("payload_len", len(payload)),
			zap.Bool("payload_present", payload != nil),
		)
		return nil
	})
}
