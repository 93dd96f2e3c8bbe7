// Package notify delivers payment notifications to administrators and users.
package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"text/template"

	"tripplanner/pkg/logger"
)

// AdminRecipient addresses every configured administrator channel.
const AdminRecipient = "admin"

const (
	TemplatePaymentSubmitted = "payment_submitted"
	TemplatePaymentApproved  = "payment_approved"
	TemplatePaymentRejected  = "payment_rejected"
)

var templates = template.Must(template.New("notify").Option("missingkey=zero").Parse(`
{{define "payment_submitted"}}New payment awaiting review
User: {{.email}}
Payment: {{.payment_id}}
Plan: {{.plan}} ({{.amount}} {{.currency}})
Status: {{.status}}
{{with .transaction_id}}Transaction: {{.}}
{{end}}{{with .upi_reference}}UPI reference: {{.}}
{{end}}{{end}}
{{define "payment_approved"}}Your payment {{.payment_id}} was approved. Your account is now on the {{.plan}} plan.{{end}}
{{define "payment_rejected"}}Your payment {{.payment_id}} was rejected{{with .reason}}: {{.}}{{end}}. Contact support if you believe this is a mistake.{{end}}
`))

// Message is one notification: who gets it, which template, and the values
// the template reads.
type Message struct {
	To       string
	Template string
	Params   map[string]string
}

type Dispatcher interface {
	Dispatch(ctx context.Context, msg Message) error
}

// Render expands the message's template.
func Render(msg Message) (string, error) {
	if templates.Lookup(msg.Template) == nil {
		return "", fmt.Errorf("unknown notification template %q", msg.Template)
	}
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, msg.Template, msg.Params); err != nil {
		return "", fmt.Errorf("render %s: %w", msg.Template, err)
	}
	return buf.String(), nil
}

// LogDispatcher writes every notification to the log.
type LogDispatcher struct {
	logger *logger.Logger
}

func NewLogDispatcher(log *logger.Logger) *LogDispatcher {
	if log == nil {
		log = logger.Nop()
	}
	return &LogDispatcher{logger: log}
}

func (d *LogDispatcher) Dispatch(_ context.Context, msg Message) error {
	text, err := Render(msg)
	if err != nil {
		return err
	}
	d.logger.Infow("Notification",
		"to", msg.To,
		"template", msg.Template,
		"text", text,
	)
	return nil
}

// Multi fans a message out to every dispatcher and joins their errors.
type Multi []Dispatcher

func (m Multi) Dispatch(ctx context.Context, msg Message) error {
	var errs []error
	for _, d := range m {
		if err := d.Dispatch(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
