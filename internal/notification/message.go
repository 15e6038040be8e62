// Package notification delivers account emails off the request path.
package notification

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
)

const (
	TemplateCredentials    = "credentials"
	TemplateRoleChange     = "role_change"
	TemplateForgotPassword = "forgot_password"
)

// Message is one email to one recipient. Data may hold credentials and is
// never persisted or logged.
type Message struct {
	ID       string
	Template string
	To       string
	Data     map[string]string
}

func NewMessage(template, to string, data map[string]string) Message {
	return Message{
		ID:       ulid.Make().String(),
		Template: template,
		To:       to,
		Data:     data,
	}
}

// Notifier accepts messages for background delivery. Notify never blocks
// on delivery and never reports an error to the caller.
type Notifier interface {
	Notify(ctx context.Context, msg Message)
}

const (
	ReasonQueueFull  = "queue_full"
	ReasonShutdown   = "shutdown"
	ReasonSendFailed = "send_failed"
)

// Failure describes a message that was not delivered.
type Failure struct {
	MessageID string
	Template  string
	To        string
	Reason    string
	Err       error
	At        time.Time
}

func newFailure(msg Message, reason string, err error) Failure {
	return Failure{
		MessageID: msg.ID,
		Template:  msg.Template,
		To:        msg.To,
		Reason:    reason,
		Err:       err,
		At:        time.Now().UTC(),
	}
}
