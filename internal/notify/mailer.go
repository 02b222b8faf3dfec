// ABOUTME: Outgoing mail abstraction for invitations
// ABOUTME: LogMailer writes to the log, MemoryMailer keeps messages for tests

package notify

import (
	"context"
	"sync"

	"github.com/harper/agora/internal/logger"
)

// Message is an outgoing email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// LogMailer logs messages instead of sending them.
type LogMailer struct {
	log logger.Logger
}

// NewLogMailer creates a LogMailer.
func NewLogMailer(log logger.Logger) *LogMailer {
	return &LogMailer{log: log}
}

// Send implements Mailer.
func (m *LogMailer) Send(_ context.Context, msg Message) error {
	m.log.Info("mail queued",
		logger.String("to", msg.To),
		logger.String("subject", msg.Subject),
		logger.String("body", msg.Body))
	return nil
}

// MemoryMailer records messages.
type MemoryMailer struct {
	mu   sync.Mutex
	sent []Message
}

// Send implements Mailer.
func (m *MemoryMailer) Send(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

// Sent returns a copy of every recorded message.
func (m *MemoryMailer) Sent() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.sent))
	copy(out, m.sent)
	return out
}
