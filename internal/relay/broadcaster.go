//////////////////////////////////////////////////////////////////////////////
//
// Broadcast encoded frames from one writer to multiple subscribers.
//
// Each subscriber has its own channel (i.e. queue). When a writer
// broadcasts a message, the message is added to each subscriber's channel.
// Note that this is a shallow copy -- the message bytes are shared by all
// subscribers and must not be modified after Write.
//
// Each subscriber may specify the maximum number of messages it wishes to
// buffer. Once this capacity is reached, the oldest message is dropped for
// each new one, so a slow viewer sees gaps rather than stalling capture.
//
// Copyright 2019 Lanikai Labs LLC. All rights reserved.
//
//////////////////////////////////////////////////////////////////////////////

package relay

import (
	"sync"

	"github.com/pkg/errors"
)

var (
	errClosed        = errors.New("relay: broadcaster closed")
	errNotSubscribed = errors.New("relay: not subscribed")
)

// Broadcaster implements the io.WriteCloser interface
type Broadcaster struct {
	mutex       sync.Mutex
	subscribers []chan []byte
	closed      bool

	// Messages discarded because a subscriber was backlogged.
	dropped uint64
}

// NewBroadcaster instantiates a new one-to-many message broadcaster
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{}
}

// Close the broadcaster. All subscriber channels are closed and writes
// return an error.
func (b *Broadcaster) Close() error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	for _, subscriber := range b.subscribers {
		close(subscriber)
	}
	b.subscribers = nil
	b.closed = true
	return nil
}

// Subscribe to broadcasts, buffering up to n messages for the subscriber
func (b *Broadcaster) Subscribe(n int) (<-chan []byte, error) {
	if n < 1 {
		n = 1
	}
	channel := make(chan []byte, n)

	b.mutex.Lock()
	defer b.mutex.Unlock()
	if b.closed {
		return nil, errClosed
	}
	b.subscribers = append(b.subscribers, channel)
	return channel, nil
}

// Unsubscribe from broadcaster by providing the read-only channel returned
// by Subscribe().
func (b *Broadcaster) Unsubscribe(s <-chan []byte) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	for i, subscriber := range b.subscribers {
		if s == subscriber {
			// Remove subscriber from slice (order not preserved)
			subs := b.subscribers
			close(subs[i])
			subs[len(subs)-1], subs[i] = subs[i], subs[len(subs)-1]
			b.subscribers = subs[:len(subs)-1]
			return nil
		}
	}
	return errNotSubscribed
}

// Subscribers returns the number of current subscribers.
func (b *Broadcaster) Subscribers() int {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return len(b.subscribers)
}

// Dropped returns the number of messages discarded for slow subscribers.
func (b *Broadcaster) Dropped() uint64 {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.dropped
}

// Write message to subscribers. Never blocks.
func (b *Broadcaster) Write(p []byte) (n int, err error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.closed {
		return 0, errClosed
	}
	for _, subscriber := range b.subscribers {
		for {
			select {
			case subscriber <- p:
			default:
				// Subscriber backlogged. Drop oldest message, retry.
				select {
				case <-subscriber:
					b.dropped++
				default:
				}
				continue
			}
			break
		}
	}
	return len(p), nil
}
