package email

import (
	"context"
	"sync"
)

// Message is one captured verification mail.
type Message struct {
	ToEmail string
	Token   string
}

// MemorySender records verification mails instead of sending them. It is
// used in tests and local development without an SMTP server.
type MemorySender struct {
	mu       sync.Mutex
	messages []Message

	// Err, when set, is returned from every send.
	Err error
}

func NewMemorySender() *MemorySender {
	return &MemorySender{}
}

func (m *MemorySender) SendVerificationEmail(ctx context.Context, toEmail, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	m.messages = append(m.messages, Message{ToEmail: toEmail, Token: token})
	return nil
}

// Messages returns a copy of everything sent so far.
func (m *MemorySender) Messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Message, len(m.messages))
	copy(out, m.messages)
	return out
}

// LastTo returns the most recent message sent to the given address.
func (m *MemorySender) LastTo(email string) (Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := len(m.messages) - 1; i >= 0; i-- {
		if m.messages[i].ToEmail == email {
			return m.messages[i], true
		}
	}
	return Message{}, false
}
