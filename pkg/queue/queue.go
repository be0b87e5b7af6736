// Package queue defines the work-queue contract the copy pipeline is built
// on: initialize (primary + dead-letter), send, receive-with-lease,
// extend-lease, ack, and dead-letter observation.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotAnObject is returned by Send when v does not marshal to a JSON
// object (producers reject non-object payloads).
var ErrNotAnObject = errors.New("queue: payload must serialize to a JSON object")

// ErrFatal wraps an error that should terminate the process (an
// authentication/API failure the operator must fix), as opposed to a
// payload error that is merely logged and left to the redelivery path.
type ErrFatal struct{ err error }

func (e *ErrFatal) Error() string { return "fatal queue error: " + e.err.Error() }
func (e *ErrFatal) Unwrap() error { return e.err }

// Fatal wraps err as an ErrFatal.
func Fatal(err error) error { return &ErrFatal{err: err} }

// Message is a received, not-yet-acked item.
type Message struct {
	// ReceiptHandle identifies this particular delivery for Ack/Extend.
	ReceiptHandle string
	Body          []byte
	// ReceiveCount is how many times this message has been delivered,
	// including this delivery.
	ReceiveCount int32
}

// Queue is the adapter contract over the external work queue.
type Queue interface {
	// Initialize creates the dead-letter queue first, then the primary queue
	// bound to it with maxReceiveCount redeliveries, returning both URLs.
	Initialize(ctx context.Context, name, deadLetterSuffix string, maxReceiveCount int32) (queueURL, deadLetterURL string, err error)
	// Send serializes v as JSON and enqueues it on queueURL.
	Send(ctx context.Context, queueURL string, v any) error
	// Receive fetches up to batchSize messages, waiting up to waitTime for at
	// least one to arrive (long-poll). Messages become invisible to other
	// receivers for the queue's configured visibility timeout.
	Receive(ctx context.Context, queueURL string, batchSize int32, waitTime time.Duration) ([]Message, error)
	// ExtendVisibility resets msg's visibility timeout to extend the lease
	// while a handler is still processing it.
	ExtendVisibility(ctx context.Context, queueURL string, msg Message, timeout time.Duration) error
	// Ack deletes msg, the handler having completed successfully. A message
	// left unacked on handler failure is redelivered (or dead-lettered) by
	// the queue itself.
	Ack(ctx context.Context, queueURL string, msg Message) error
	// ApproximateCounts observes ApproximateNumberOfMessages and
	// ApproximateNumberOfMessagesNotVisible for the queue-depth probe.
	ApproximateCounts(ctx context.Context, queueURL string) (visible, inFlight int64, err error)
}

// Marshal encodes v as JSON, failing if it is not an object.
func Marshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshalling queue payload: %w", err)
	}
	trimmed := make([]byte, 0, 1)
	for _, b := range data {
		if b == ' ' || b == '\n' || b == '\t' || b == '\r' {
			continue
		}
		trimmed = append(trimmed, b)
		break
	}
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, ErrNotAnObject
	}
	return data, nil
}

// Job is the copy-job payload described in the external message format.
type Job struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Action string `json:"action"`
}
