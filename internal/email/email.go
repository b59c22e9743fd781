// Package email sends confirmation mail asynchronously. Sending is
// fire-and-forget from the booking flow: a failed or dropped message
// never fails the confirmation that triggered it.
package email

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"prohair/internal/metrics"
)

const (
	queueSize    = 64
	sendAttempts = 2
	retryDelay   = 5 * time.Second
)

// Message is one outbound mail.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers a single message.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPMailer delivers mail over plain SMTP.
type SMTPMailer struct {
	host     string
	port     int
	username string
	password string
	from     string
}

// NewSMTPMailer creates an SMTP mailer. Auth is skipped when username
// is empty, which is what local relays expect.
func NewSMTPMailer(host string, port int, username, password, from string) *SMTPMailer {
	return &SMTPMailer{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
	}
}

// Send delivers one message.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(msg.Body)

	var auth smtp.Auth
	if m.username != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}

	addr := fmt.Sprintf("%s:%d", m.host, m.port)
	if err := smtp.SendMail(addr, auth, m.from, []string{msg.To}, []byte(b.String())); err != nil {
		return fmt.Errorf("smtp send to %s: %w", msg.To, err)
	}
	return nil
}

// Dispatcher owns the outbound queue. One worker drains it, rate
// limited so a burst of confirmations does not hammer the relay.
type Dispatcher struct {
	mailer  Mailer
	logger  *zerolog.Logger
	limiter *rate.Limiter
	queue   chan Message
	wg      sync.WaitGroup
}

// NewDispatcher creates a dispatcher over mailer. A nil mailer makes
// every Enqueue a logged no-op, used when email is disabled.
func NewDispatcher(mailer Mailer, logger *zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		mailer:  mailer,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Every(2*time.Second), 5),
		queue:   make(chan Message, queueSize),
	}
}

// Start launches the worker. It drains until ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	if d.mailer == nil {
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-d.queue:
				d.deliver(ctx, msg)
			}
		}
	}()
}

// Wait blocks until the worker has stopped.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) deliver(ctx context.Context, msg Message) {
	if err := d.limiter.Wait(ctx); err != nil {
		return
	}

	var err error
	for attempt := 1; attempt <= sendAttempts; attempt++ {
		if err = d.mailer.Send(ctx, msg); err == nil {
			d.logger.Info().Str("to", msg.To).Str("subject", msg.Subject).Msg("email sent")
			return
		}
		if attempt < sendAttempts {
			select {
			case <-ctx.Done():
				return
			case <-time.After(retryDelay):
			}
		}
	}

	metrics.IncEmailFailure()
	d.logger.Error().Err(err).Str("to", msg.To).Msg("email delivery failed")
}

// Enqueue queues a message without blocking. When the queue is full or
// email is disabled the message is dropped.
func (d *Dispatcher) Enqueue(msg Message) {
	if d.mailer == nil {
		d.logger.Debug().Str("to", msg.To).Msg("email disabled, dropping message")
		return
	}
	select {
	case d.queue <- msg:
	default:
		metrics.IncEmailFailure()
		d.logger.Warn().Str("to", msg.To).Msg("email queue full, dropping message")
	}
}

// EnqueueConfirmation queues the booking confirmation for a client.
func (d *Dispatcher) EnqueueConfirmation(to, clientName, serviceName string, startLocal time.Time) {
	if to == "" {
		return
	}
	body := fmt.Sprintf(
		"Beste %s,\n\nJe afspraak is bevestigd.\n\nBehandeling: %s\nDatum: %s\nTijd: %s\n\nTot snel,\nProHair",
		clientName, serviceName,
		startLocal.Format("02-01-2006"), startLocal.Format("15:04"),
	)
	d.Enqueue(Message{
		To:      to,
		Subject: "Bevestiging van je afspraak",
		Body:    body,
	})
}
