package email

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
)

//go:generate mockgen -source=provider.go -destination=mocks/mock_provider.go -package=mocks
type Provider interface {
	Send(ctx context.Context, to []string, subject string, htmlBody string) error
	SendTemplate(ctx context.Context, to []string, templateName string, data map[string]string) error
}

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Render executes the named template. data["subject"] is used as the
// subject line when present.
func Render(templateName string, data map[string]string) (subject string, body string, err error) {
	t := templates.Lookup(templateName + ".html")
	if t == nil {
		return "", "", fmt.Errorf("unknown email template %q", templateName)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("failed to execute template: %w", err)
	}

	subject = data["subject"]
	if subject == "" {
		subject = "Notification from " + productName(data)
	}
	return subject, buf.String(), nil
}

func productName(data map[string]string) string {
	if name := data["product_name"]; name != "" {
		return name
	}
	return "Complytics"
}

type NoOpProvider struct{}

func (p *NoOpProvider) Send(ctx context.Context, to []string, subject string, htmlBody string) error {
	return nil
}

func (p *NoOpProvider) SendTemplate(ctx context.Context, to []string, templateName string, data map[string]string) error {
	_, _, err := Render(templateName, data)
	return err
}
