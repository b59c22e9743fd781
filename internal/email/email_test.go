package email

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

type recordingMailer struct {
	mu   sync.Mutex
	sent []Message
}

func (m *recordingMailer) Send(ctx context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

func (m *recordingMailer) messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.sent))
	copy(out, m.sent)
	return out
}

func newTestDispatcher(mailer Mailer) *Dispatcher {
	logger := zerolog.New(io.Discard)
	d := NewDispatcher(mailer, &logger)
	// Tests should not wait on the production rate limit.
	d.limiter = rate.NewLimiter(rate.Inf, 1)
	return d
}

func TestDispatcherDeliversQueuedMail(t *testing.T) {
	mailer := &recordingMailer{}
	d := newTestDispatcher(mailer)

	ctx, cancel := context.WithCancel(context.Background())
	d.Start(ctx)

	d.EnqueueConfirmation("anna@example.com", "Anna", "Knippen",
		time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC))

	require.Eventually(t, func() bool {
		return len(mailer.messages()) == 1
	}, time.Second, 10*time.Millisecond)

	msg := mailer.messages()[0]
	assert.Equal(t, "anna@example.com", msg.To)
	assert.Contains(t, msg.Body, "Anna")
	assert.Contains(t, msg.Body, "Knippen")
	assert.Contains(t, msg.Body, "10-03-2026")
	assert.Contains(t, msg.Body, "14:00")

	cancel()
	d.Wait()
}

func TestDispatcherSkipsEmptyRecipient(t *testing.T) {
	mailer := &recordingMailer{}
	d := newTestDispatcher(mailer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	d.EnqueueConfirmation("", "Anna", "Knippen", time.Now())

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, mailer.messages())
}

func TestDispatcherDisabledIsNoOp(t *testing.T) {
	d := newTestDispatcher(nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	// Must not block or panic with no worker running.
	for i := 0; i < queueSize+10; i++ {
		d.Enqueue(Message{To: "x@example.com"})
	}
	d.Wait()
}

func TestDispatcherDropsWhenQueueFull(t *testing.T) {
	mailer := &recordingMailer{}
	d := newTestDispatcher(mailer)

	// Worker not started: the queue fills and overflow is dropped
	// without blocking the caller.
	for i := 0; i < queueSize+5; i++ {
		d.Enqueue(Message{To: "x@example.com"})
	}
	assert.Len(t, d.queue, queueSize)
}
