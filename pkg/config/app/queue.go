package app

import "time"

// QueueConfig configures the copy-job queue shared by every pool's Copy
// Workers (one named queue per pool, all created with this policy).
type QueueConfig struct {
	// DeadLetterSuffix is appended to a pool's queue name to name its
	// dead-letter queue.
	DeadLetterSuffix string
	// MaxReceiveCount bounds redeliveries before a message is dead-lettered.
	MaxReceiveCount int32
	// BatchSize bounds messages fetched per Receive call.
	BatchSize int32
	// VisibilityTimeout is the lease duration a received message is held for.
	VisibilityTimeout time.Duration
	// WaitTime bounds the long-poll Receive call.
	WaitTime time.Duration
	// DeadLetterDrainInterval is how often the dead-letter queue is polled
	// for diagnostic logging.
	DeadLetterDrainInterval time.Duration
}
