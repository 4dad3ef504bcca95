package notify

import (
	"context"
	"log"
	"sync"
	"time"
)

// =============================================================================
// ASYNC - Fire-and-forget delivery for the decision path
// =============================================================================

// Async dispatches messages in the background. The decision that
// triggered the message has already been persisted; a delivery failure
// is logged and goes nowhere else.
type Async struct {
	Sender  Sender
	Timeout time.Duration

	wg sync.WaitGroup
}

func NewAsync(sender Sender, timeout time.Duration) *Async {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Async{Sender: sender, Timeout: timeout}
}

// Dispatch sends the message on a background goroutine and returns
// immediately.
func (a *Async) Dispatch(msg Message) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), a.Timeout)
		defer cancel()
		if err := a.Sender.Send(ctx, msg); err != nil {
			log.Printf("[Notify] dispatch to %s failed: %v", msg.To, err)
		}
	}()
}

// Wait blocks until all in-flight dispatches complete. Used on
// shutdown and in tests.
func (a *Async) Wait() {
	a.wg.Wait()
}
