// Package notification sends templated SMS messages to patients and keeps an
// outbox that staff can inspect and retry.
package notification

import (
	"fmt"
	"strings"
	"sync"
)

// Built-in template identifiers.
const (
	TemplateQueueToken    = "queue-token"
	TemplatePatientCalled = "patient-called"
	TemplateLabResult     = "lab-result-ready"
	TemplateMedicines     = "medicines-dispensed"
	TemplateVisitBill     = "visit-bill"
	TemplateDischargeBill = "discharge-bill"
)

type Template struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Body string `json:"body"`
}

// TemplateEngine renders {{key}} placeholders. Unknown keys are left as-is.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]Template
}

func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{templates: make(map[string]Template)}
	for _, t := range []Template{
		{TemplateQueueToken, "Queue token", "Dear {{patient_name}}, your token for {{department}} is {{token}}. Estimated wait {{wait_minutes}} min."},
		{TemplatePatientCalled, "Patient called", "{{patient_name}}, token {{token}}: please proceed to {{doctor_name}} now."},
		{TemplateLabResult, "Lab result ready", "Dear {{patient_name}}, your {{test_name}} result is ready."},
		{TemplateMedicines, "Medicines dispensed", "Dear {{patient_name}}, your medicines have been dispensed. Amount {{amount}}."},
		{TemplateVisitBill, "Visit bill", "Dear {{patient_name}}, visit {{visit_number}} is settled. Total paid {{amount}}. Thank you."},
		{TemplateDischargeBill, "Discharge bill", "Dear {{patient_name}}, you were discharged after {{days}} day(s). IPD bill {{amount}} is payable at the cashier."},
	} {
		e.templates[t.ID] = t
	}
	return e
}

func (e *TemplateEngine) Register(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = t
}

func (e *TemplateEngine) Render(id string, data map[string]string) (string, error) {
	e.mu.RLock()
	t, ok := e.templates[id]
	e.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("template %q not found", id)
	}
	body := t.Body
	for k, v := range data {
		body = strings.ReplaceAll(body, "{{"+k+"}}", v)
	}
	return body, nil
}
