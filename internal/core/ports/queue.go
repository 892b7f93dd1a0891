package ports

import "context"

// QueueMessage is one raw message pulled from the subscription, still
// carrying the ack id needed to settle it.
type QueueMessage struct {
	AckID string
	Data  []byte
}

// QueueSubscriber is the narrow contract the core needs from the
// at-least-once message queue: bounded pulls and explicit acks.
// Pull honors the context deadline; a deadline expiry with no messages
// is reported as context.DeadlineExceeded, not as an empty batch.
type QueueSubscriber interface {
	// Pull fetches up to maxMessages messages.
	Pull(ctx context.Context, maxMessages int) ([]QueueMessage, error)

	// Ack settles the given messages so they are not redelivered.
	Ack(ctx context.Context, ackIDs []string) error

	// Close releases the underlying connection.
	Close() error
}
