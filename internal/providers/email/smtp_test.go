package email

import (
	"context"
	"net/smtp"
	"strings"
	"testing"
)

func TestRenderCredentials(t *testing.T) {
	subject, body, err := Render("credentials", map[string]string{
		"subject":           "Welcome",
		"product_name":      "Complytics",
		"first_name":        "Ada",
		"last_name":         "Lovelace",
		"username":          "ada@acme.com",
		"password":          "p<ss>",
		"organization_name": "Acme",
		"role":              "admin",
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if subject != "Welcome" {
		t.Fatalf("expected subject Welcome, got %q", subject)
	}
	if !strings.Contains(body, "ada@acme.com") || !strings.Contains(body, "Acme") {
		t.Fatalf("body missing fields: %s", body)
	}
	if strings.Contains(body, "p<ss>") {
		t.Fatalf("expected password to be html escaped")
	}
}

func TestRenderUnknownTemplate(t *testing.T) {
	if _, _, err := Render("invoice_new", nil); err == nil {
		t.Fatalf("expected error for unknown template")
	}
}

func TestSMTPSendTemplate(t *testing.T) {
	p, err := NewSMTP(Config{Host: "mail.local", From: "no-reply@co.com"})
	if err != nil {
		t.Fatalf("new smtp: %v", err)
	}

	var gotAddr string
	var gotMsg []byte
	p.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr = addr
		gotMsg = msg
		if a != nil {
			t.Fatalf("expected no auth without username")
		}
		return nil
	}

	err = p.SendTemplate(context.Background(), []string{"bob@co.com"}, "role_change", map[string]string{
		"subject":  "Role\r\nBcc: evil@x.com",
		"old_role": "it_team",
		"new_role": "management_team",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if gotAddr != "mail.local:587" {
		t.Fatalf("expected default port, got %q", gotAddr)
	}
	msg := string(gotMsg)
	if strings.Contains(msg, "\r\nBcc:") {
		t.Fatalf("subject injected a header: %q", msg)
	}
	if !strings.Contains(msg, "management_team") {
		t.Fatalf("expected rendered body in message")
	}
}

func TestSMTPSendCancelled(t *testing.T) {
	p, err := NewSMTP(Config{Host: "mail.local", From: "no-reply@co.com"})
	if err != nil {
		t.Fatalf("new smtp: %v", err)
	}
	p.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatalf("send must not be attempted")
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Send(ctx, []string{"bob@co.com"}, "hi", "body"); err == nil {
		t.Fatalf("expected context error")
	}
}
