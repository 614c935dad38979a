package notification

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

// SMSSender delivers one text message.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// LogSMSSender writes messages to the log instead of a gateway.
type LogSMSSender struct {
	Logger zerolog.Logger
}

func (s LogSMSSender) SendSMS(_ context.Context, to, body string) error {
	s.Logger.Info().Str("to", to).Str("body", body).Msg("sms")
	return nil
}

type SMSCall struct {
	To   string
	Body string
}

// MockSMSSender records calls for tests.
type MockSMSSender struct {
	mu         sync.Mutex
	calls      []SMSCall
	ShouldFail bool
}

func (m *MockSMSSender) SendSMS(_ context.Context, to, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, SMSCall{To: to, Body: body})
	if m.ShouldFail {
		return errors.New("sms gateway unavailable")
	}
	return nil
}

func (m *MockSMSSender) Calls() []SMSCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SMSCall(nil), m.calls...)
}
