package queue

import "context"

const (
	// ManualRetryQueue carries operator-triggered retry requests from the
	// HTTP surface to the daemon's retry executor.
	ManualRetryQueue = "retry.manual"

	// ManualRetryDLQ receives messages the consumer rejected as malformed.
	ManualRetryDLQ = "dlq.retry.manual"

	dlxExchangeName = "mailtools.dlx"
	dlxRoutingKey   = "retry.manual"
)

// Publisher publishes retry messages to a queue.
type Publisher interface {
	Publish(ctx context.Context, queue string, msg RetryMessage) error
	Close() error
}

// MessageHandler handles a consumed retry message.
type MessageHandler func(ctx context.Context, msg RetryMessage) error

// Consumer consumes retry messages from a queue.
type Consumer interface {
	Consume(ctx context.Context, queue string, handler MessageHandler) error
	Close() error
}
