package domain

import "context"

// StreamMessage is a single durable message read back from an event stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus is the pub/sub and durable-stream fabric for committed events.
// Publish is fire-and-forget fan-out; StreamAppend gives ordered replayable
// history for consumers that must not miss events.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}
