/*
Package notify delivers messages to students and staff.

PURPOSE:
  One small abstraction (Sender) with three implementations:
  - SMTP:     production delivery via an SMTP relay (gomail)
  - Log:      dev mode, prints instead of sending
  - Recorder: test double with injectable per-recipient failures

  Plus two delivery strategies built on Sender:
  - Async (async.go): fire-and-forget for the decision path
  - Pool  (pool.go):  bounded fan-out for the digest pipeline

DELIVERY GUARANTEE:
  Best effort. Failures are logged (and tallied by Pool), never
  retried within an operation and never surfaced to the actor whose
  operation already succeeded.

SEE ALSO:
  - absence/service.go: decision-path caller
  - digest/pipeline.go: bulk digest caller
*/
package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"sync"

	gomail "gopkg.in/gomail.v2"
)

// =============================================================================
// MESSAGE
// =============================================================================

// Attachment is an in-memory file attached to a message.
type Attachment struct {
	Filename string
	MIMEType string
	Content  []byte
}

// Message is one outbound notification.
type Message struct {
	To          string
	Subject     string
	HTMLBody    string
	Attachments []Attachment
}

// Sender delivers a single message. Implementations must be safe for
// concurrent use: the digest pipeline calls Send from multiple workers.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// =============================================================================
// SMTP SENDER - Production delivery via gomail
// =============================================================================

// SMTPConfig holds mail relay settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type SMTP struct {
	cfg    SMTPConfig
	dialer *gomail.Dialer
}

func NewSMTP(cfg SMTPConfig) *SMTP {
	return &SMTP{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

// Send delivers one message through the relay. The context deadline is
// honored by running the dial in a goroutine; gomail itself has no
// context support.
func (s *SMTP) Send(ctx context.Context, msg Message) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", msg.HTMLBody)
	for _, att := range msg.Attachments {
		att := att
		m.Attach(att.Filename, gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(att.Content)
			return err
		}))
	}

	done := make(chan error, 1)
	go func() { done <- s.dialer.DialAndSend(m) }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send to %s: %w", msg.To, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("smtp send to %s: %w", msg.To, ctx.Err())
	}
}

// =============================================================================
// LOG SENDER - Dev mode, no relay configured
// =============================================================================

// Log prints messages instead of delivering them. Used when no SMTP
// relay is configured so the rest of the engine stays exercisable.
type Log struct{}

func (Log) Send(_ context.Context, msg Message) error {
	var b bytes.Buffer
	fmt.Fprintf(&b, "to=%s subject=%q body=%dB", msg.To, msg.Subject, len(msg.HTMLBody))
	for _, att := range msg.Attachments {
		fmt.Fprintf(&b, " attachment=%s(%dB)", att.Filename, len(att.Content))
	}
	log.Printf("[Notify] %s", b.String())
	return nil
}

// =============================================================================
// RECORDER - Test double
// =============================================================================

// Recorder captures sent messages and can be told to fail for specific
// recipients.
type Recorder struct {
	mu      sync.Mutex
	sent    []Message
	failFor map[string]error
}

func NewRecorder() *Recorder {
	return &Recorder{failFor: make(map[string]error)}
}

// FailFor makes every Send to the given address return err.
func (r *Recorder) FailFor(to string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failFor[to] = err
}

func (r *Recorder) Send(_ context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.failFor[msg.To]; ok {
		return err
	}
	r.sent = append(r.sent, msg)
	return nil
}

// Sent returns a copy of the captured messages.
func (r *Recorder) Sent() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.sent))
	copy(out, r.sent)
	return out
}

// SentTo returns the captured messages for one recipient.
func (r *Recorder) SentTo(to string) []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Message
	for _, m := range r.sent {
		if m.To == to {
			out = append(out, m)
		}
	}
	return out
}

// Reset clears captured messages.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = nil
}
