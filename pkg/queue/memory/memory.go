// Package memory is an in-process queue.Queue used by unit tests: no
// visibility timeout enforcement, delivery is immediate and in-order.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/storacha/cloud-mirror/pkg/queue"
)

type q struct {
	mu            sync.Mutex
	messages      []queue.Message
	deadLetterURL string
	maxReceive    int32
}

// Broker is an in-memory collection of named queues.
type Broker struct {
	mu     sync.Mutex
	queues map[string]*q
}

var _ queue.Queue = (*Broker)(nil)

// New returns an empty Broker.
func New() *Broker {
	return &Broker{queues: make(map[string]*q)}
}

func (b *Broker) Initialize(_ context.Context, name, deadLetterSuffix string, maxReceiveCount int32) (string, string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	dlURL := name + deadLetterSuffix
	b.queues[dlURL] = &q{}
	b.queues[name] = &q{deadLetterURL: dlURL, maxReceive: maxReceiveCount}
	return name, dlURL, nil
}

func (b *Broker) Send(_ context.Context, queueURL string, v any) error {
	body, err := queue.Marshal(v)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	target, ok := b.queues[queueURL]
	if !ok {
		return fmt.Errorf("unknown queue %s", queueURL)
	}
	target.mu.Lock()
	target.messages = append(target.messages, queue.Message{ReceiptHandle: fmt.Sprintf("rh-%d", len(target.messages)), Body: body})
	target.mu.Unlock()
	return nil
}

func (b *Broker) Receive(_ context.Context, queueURL string, batchSize int32, _ time.Duration) ([]queue.Message, error) {
	b.mu.Lock()
	target, ok := b.queues[queueURL]
	b.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown queue %s", queueURL)
	}
	target.mu.Lock()
	defer target.mu.Unlock()
	if len(target.messages) == 0 {
		return nil, nil
	}
	n := int(batchSize)
	if n > len(target.messages) {
		n = len(target.messages)
	}
	out := make([]queue.Message, n)
	copy(out, target.messages[:n])
	target.messages = target.messages[n:]
	for i := range out {
		out[i].ReceiveCount++
	}
	return out, nil
}

func (b *Broker) ExtendVisibility(context.Context, string, queue.Message, time.Duration) error {
	return nil
}

func (b *Broker) Ack(context.Context, string, queue.Message) error { return nil }

func (b *Broker) ApproximateCounts(_ context.Context, queueURL string) (int64, int64, error) {
	b.mu.Lock()
	target, ok := b.queues[queueURL]
	b.mu.Unlock()
	if !ok {
		return 0, 0, fmt.Errorf("unknown queue %s", queueURL)
	}
	target.mu.Lock()
	defer target.mu.Unlock()
	return int64(len(target.messages)), 0, nil
}

// Requeue redelivers msg to queueURL, or to its dead-letter queue once
// msg.ReceiveCount reaches the configured maxReceiveCount — simulating the
// real queue's redelivery-cap/dead-letter behavior for tests.
func (b *Broker) Requeue(queueURL string, msg queue.Message) {
	b.mu.Lock()
	target, ok := b.queues[queueURL]
	b.mu.Unlock()
	if !ok {
		return
	}
	dest := target
	destURL := queueURL
	if target.maxReceive > 0 && msg.ReceiveCount >= target.maxReceive {
		b.mu.Lock()
		dest = b.queues[target.deadLetterURL]
		b.mu.Unlock()
		destURL = target.deadLetterURL
	}
	_ = destURL
	dest.mu.Lock()
	dest.messages = append(dest.messages, msg)
	dest.mu.Unlock()
}
