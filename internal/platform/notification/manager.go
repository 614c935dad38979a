package notification

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

var ErrNotFound = errors.New("notification not found")

type Notification struct {
	ID         string            `json:"id"`
	Recipient  string            `json:"recipient"`
	TemplateID string            `json:"template_id"`
	Data       map[string]string `json:"data,omitempty"`
	Body       string            `json:"body"`
	Status     string            `json:"status"`
	Attempts   int               `json:"attempts"`
	Error      string            `json:"error,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	SentAt     *time.Time        `json:"sent_at,omitempty"`
}

// Manager renders, sends and remembers notifications. The outbox is
// process-local and lost on restart.
type Manager struct {
	sms       SMSSender
	templates *TemplateEngine

	mu     sync.RWMutex
	outbox map[string]*Notification
}

func NewManager(sms SMSSender, templates *TemplateEngine) *Manager {
	return &Manager{sms: sms, templates: templates, outbox: make(map[string]*Notification)}
}

// Notify renders templateID with data and texts it to recipient. The
// notification is stored even when delivery fails so it can be retried.
func (m *Manager) Notify(ctx context.Context, templateID, recipient string, data map[string]string) (*Notification, error) {
	if recipient == "" {
		return nil, fmt.Errorf("recipient is required")
	}
	body, err := m.templates.Render(templateID, data)
	if err != nil {
		return nil, err
	}

	n := &Notification{
		ID:         uuid.NewString(),
		Recipient:  recipient,
		TemplateID: templateID,
		Data:       data,
		Body:       body,
		CreatedAt:  time.Now().UTC(),
	}
	err = m.deliver(ctx, n)

	m.mu.Lock()
	m.outbox[n.ID] = n
	m.mu.Unlock()

	return n.snapshot(), err
}

func (m *Manager) deliver(ctx context.Context, n *Notification) error {
	err := m.sms.SendSMS(ctx, n.Recipient, n.Body)

	m.mu.Lock()
	defer m.mu.Unlock()
	n.Attempts++
	if err != nil {
		n.Status = StatusFailed
		n.Error = err.Error()
		return err
	}
	now := time.Now().UTC()
	n.Status = StatusSent
	n.Error = ""
	n.SentAt = &now
	return nil
}

func (n *Notification) snapshot() *Notification {
	cp := *n
	return &cp
}

func (m *Manager) Get(_ context.Context, id string) (*Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.outbox[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return n.snapshot(), nil
}

// ListByRecipient returns the newest notifications for recipient first.
func (m *Manager) ListByRecipient(_ context.Context, recipient string, limit int) []*Notification {
	m.mu.RLock()
	var out []*Notification
	for _, n := range m.outbox {
		if n.Recipient == recipient {
			out = append(out, n.snapshot())
		}
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Retry resends a failed notification.
func (m *Manager) Retry(ctx context.Context, id string) (*Notification, error) {
	m.mu.RLock()
	n, ok := m.outbox[id]
	var status string
	if ok {
		status = n.Status
	}
	m.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if status != StatusFailed {
		return nil, fmt.Errorf("notification %s is %s, only failed notifications can be retried", id, status)
	}
	err := m.deliver(ctx, n)

	m.mu.RLock()
	defer m.mu.RUnlock()
	return n.snapshot(), err
}

// Stats counts notifications by status.
func (m *Manager) Stats(_ context.Context) map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stats := make(map[string]int)
	for _, n := range m.outbox {
		stats[n.Status]++
	}
	return stats
}
