// Package mail is the outbound email collaborator. Dispatch is
// fire-and-forget: messages are queued and delivered by a background
// worker, and delivery failures never propagate into the flows that
// enqueue them.
package mail

import (
	"context"
	"fmt"
	"net/smtp"
	"sync"

	"go.uber.org/zap"
)

// Dispatcher queues a message for asynchronous delivery.
type Dispatcher interface {
	Send(to, subject, body string)
}

// Message is a queued outbound email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// SMTPDispatcher delivers queued messages over SMTP from a single worker.
type SMTPDispatcher struct {
	addr   string
	from   string
	queue  chan Message
	done   chan struct{}
	logger *zap.Logger

	mu     sync.Mutex
	closed bool
}

var _ Dispatcher = (*SMTPDispatcher)(nil)

// NewSMTPDispatcher starts the delivery worker.
func NewSMTPDispatcher(addr, from string, logger *zap.Logger) *SMTPDispatcher {
	d := &SMTPDispatcher{
		addr:   addr,
		from:   from,
		queue:  make(chan Message, 128),
		done:   make(chan struct{}),
		logger: logger,
	}
	go d.run()
	return d
}

// Send enqueues the message. When the queue is full, or the dispatcher
// is already shutting down, the message is dropped and logged rather
// than blocking or panicking the caller.
func (d *SMTPDispatcher) Send(to, subject, body string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		d.logger.Warn("mail dispatcher closed, dropping message", zap.String("subject", subject))
		return
	}
	select {
	case d.queue <- Message{To: to, Subject: subject, Body: body}:
	default:
		d.logger.Warn("mail queue full, dropping message", zap.String("subject", subject))
	}
}

// Close drains the queue and stops the worker. Safe to call more than once.
func (d *SMTPDispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *SMTPDispatcher) run() {
	defer close(d.done)
	for msg := range d.queue {
		if err := d.deliver(msg); err != nil {
			d.logger.Error("mail delivery failed", zap.String("subject", msg.Subject), zap.Error(err))
			continue
		}
		d.logger.Info("mail delivered", zap.String("subject", msg.Subject))
	}
}

func (d *SMTPDispatcher) deliver(msg Message) error {
	payload := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n", d.from, msg.To, msg.Subject, msg.Body)
	return smtp.SendMail(d.addr, nil, d.from, []string{msg.To}, []byte(payload))
}
