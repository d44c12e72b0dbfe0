// Package notification publishes medication outcome notices to interested
// parties (charge nurses, pharmacists). Delivery is best-effort: failures
// are logged, not surfaced to the caller.
package notification

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

// Notice is a single published outcome message.
type Notice struct {
	ID        string            `json:"id"`
	Template  string            `json:"template"`
	Recipient string            `json:"recipient"`
	Subject   string            `json:"subject"`
	Body      string            `json:"body"`
	Status    Status            `json:"status"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	SentAt    *time.Time        `json:"sent_at,omitempty"`
}

// Sender delivers a rendered notice over some channel.
type Sender interface {
	Send(ctx context.Context, n *Notice) error
}

// LogSender writes notices to the structured log. It is the default
// channel when no external delivery is configured.
type LogSender struct{}

func (LogSender) Send(_ context.Context, n *Notice) error {
	log.Info().
		Str("notice_id", n.ID).
		Str("template", n.Template).
		Str("recipient", n.Recipient).
		Str("subject", n.Subject).
		Msg(n.Body)
	return nil
}

// Template is a subject/body pair with {{key}} placeholders.
type Template struct {
	Name    string
	Subject string
	Body    string
}

// TemplateEngine renders named templates against a variable map.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{templates: make(map[string]*Template)}
	for _, t := range builtinTemplates() {
		e.templates[t.Name] = t
	}
	return e
}

func (e *TemplateEngine) Register(t *Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.Name] = t
}

// Render substitutes {{key}} placeholders in the named template.
// Unknown placeholders are left in place.
func (e *TemplateEngine) Render(name string, vars map[string]string) (subject, body string, err error) {
	e.mu.RLock()
	t, ok := e.templates[name]
	e.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("template not found: %s", name)
	}
	subject = t.Subject
	body = t.Body
	for k, v := range vars {
		placeholder := "{{" + k + "}}"
		subject = strings.ReplaceAll(subject, placeholder, v)
		body = strings.ReplaceAll(body, placeholder, v)
	}
	return subject, body, nil
}

// Built-in templates cover the four administration outcomes.
func builtinTemplates() []*Template {
	return []*Template{
		{
			Name:    "medication-given",
			Subject: "Medication administered: {{drug}}",
			Body:    "{{drug}} {{dose}} was administered to {{patient}} by {{nurse}}.",
		},
		{
			Name:    "medication-held",
			Subject: "Medication held: {{drug}}",
			Body:    "{{drug}} {{dose}} was held for {{patient}} by {{nurse}}. Reason: {{reason}}.",
		},
		{
			Name:    "medication-refused",
			Subject: "Medication refused: {{drug}}",
			Body:    "{{patient}} refused {{drug}} {{dose}}. Reason: {{reason}}. Recorded by {{nurse}}.",
		},
		{
			Name:    "medication-missed",
			Subject: "Medication unavailable: {{drug}}",
			Body:    "{{drug}} {{dose}} was not available for {{patient}}. Recorded by {{nurse}}.",
		},
	}
}

// Manager renders and delivers notices, keeping a bounded in-memory
// history for the review endpoints.
type Manager struct {
	engine *TemplateEngine
	sender Sender

	mu      sync.RWMutex
	notices map[string]*Notice
	order   []string
	maxKeep int
}

func NewManager(sender Sender) *Manager {
	if sender == nil {
		sender = LogSender{}
	}
	return &Manager{
		engine:  NewTemplateEngine(),
		sender:  sender,
		notices: make(map[string]*Notice),
		maxKeep: 500,
	}
}

func (m *Manager) Engine() *TemplateEngine { return m.engine }

// Publish renders the named template and delivers it. Errors are
// recorded on the notice and logged; they are never returned so that
// charting is not coupled to delivery.
func (m *Manager) Publish(ctx context.Context, template, recipient string, vars map[string]string) *Notice {
	n := &Notice{
		ID:        uuid.New().String(),
		Template:  template,
		Recipient: recipient,
		Status:    StatusPending,
		Metadata:  vars,
		CreatedAt: time.Now().UTC(),
	}

	subject, body, err := m.engine.Render(template, vars)
	if err != nil {
		n.Status = StatusFailed
		n.Error = err.Error()
		log.Error().Err(err).Str("template", template).Msg("notification render failed")
		m.store(n)
		return n
	}
	n.Subject = subject
	n.Body = body

	if err := m.sender.Send(ctx, n); err != nil {
		n.Status = StatusFailed
		n.Error = err.Error()
		log.Error().Err(err).Str("notice_id", n.ID).Msg("notification delivery failed")
	} else {
		now := time.Now().UTC()
		n.Status = StatusSent
		n.SentAt = &now
	}
	m.store(n)
	return n
}

func (m *Manager) store(n *Notice) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notices[n.ID] = n
	m.order = append(m.order, n.ID)
	if len(m.order) > m.maxKeep {
		evict := m.order[0]
		m.order = m.order[1:]
		delete(m.notices, evict)
	}
}

func (m *Manager) Get(id string) (*Notice, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.notices[id]
	return n, ok
}

// List returns notices newest first, optionally filtered by recipient.
func (m *Manager) List(recipient string) []*Notice {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Notice, 0, len(m.order))
	for i := len(m.order) - 1; i >= 0; i-- {
		n := m.notices[m.order[i]]
		if recipient != "" && n.Recipient != recipient {
			continue
		}
		out = append(out, n)
	}
	return out
}

// Stats summarizes delivery outcomes.
func (m *Manager) Stats() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stats := map[string]int{"total": len(m.order)}
	for _, id := range m.order {
		stats[string(m.notices[id].Status)]++
	}
	return stats
}
