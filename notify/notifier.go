// Package notify delivers engine events to donors. The engine treats
// delivery as fire-and-forget: a failed send never rolls back the status
// transition that produced it.
package notify

import "context"

// Notifier sends one templated message. Implementations wrap the outbound
// mailer; the engine never talks to it directly.
type Notifier interface {
	Send(ctx context.Context, recipientAddress, templateID string, args map[string]any) error
}

// Template identifiers consumed by the mailer.
const (
	TemplatePledgeReceived = "pledge-received"
	TemplateStatusChanged  = "celebration-status-changed"
)
