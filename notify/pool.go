/*
pool.go - Bounded fan-out delivery for the digest pipeline

PURPOSE:
  Sends one message per recipient concurrently, capped by a worker
  limit so a large digest run can't open hundreds of simultaneous
  connections to the mail relay.

FAILURE ISOLATION:
  Every recipient is attempted independently. One failure (or timeout)
  is recorded in the tally and the remaining recipients still get
  their attempt. There is no retry within a run.
*/
package notify

import (
	"context"
	"log"
	"sync"
	"time"
)

// Tally summarizes one fan-out run.
type Tally struct {
	Attempted int
	Delivered int
	Failed    int

	mu       sync.Mutex
	Failures map[string]error // recipient -> cause
}

func (t *Tally) recordFailure(to string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Failed++
	if t.Failures == nil {
		t.Failures = make(map[string]error)
	}
	t.Failures[to] = err
}

func (t *Tally) recordDelivery() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Delivered++
}

// Pool is a bounded worker pool over a Sender.
type Pool struct {
	Sender      Sender
	Workers     int
	SendTimeout time.Duration
}

func NewPool(sender Sender, workers int, sendTimeout time.Duration) *Pool {
	if workers <= 0 {
		workers = 4
	}
	if sendTimeout <= 0 {
		sendTimeout = 15 * time.Second
	}
	return &Pool{Sender: sender, Workers: workers, SendTimeout: sendTimeout}
}

// Dispatch sends every message, at most Workers at a time, and returns
// the per-recipient tally. It blocks until all attempts finish.
func (p *Pool) Dispatch(ctx context.Context, msgs []Message) *Tally {
	tally := &Tally{Attempted: len(msgs)}
	if len(msgs) == 0 {
		return tally
	}

	queue := make(chan Message)
	var wg sync.WaitGroup

	for i := 0; i < p.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for msg := range queue {
				sendCtx, cancel := context.WithTimeout(ctx, p.SendTimeout)
				err := p.Sender.Send(sendCtx, msg)
				cancel()
				if err != nil {
					log.Printf("[Dispatch] %s failed: %v", msg.To, err)
					tally.recordFailure(msg.To, err)
					continue
				}
				tally.recordDelivery()
			}
		}()
	}

	for _, msg := range msgs {
		queue <- msg
	}
	close(queue)
	wg.Wait()

	return tally
}
