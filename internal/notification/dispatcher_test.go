package notification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/smallbiznis/complytics/internal/config"
	"github.com/smallbiznis/complytics/internal/observability/metrics"
	"github.com/smallbiznis/complytics/internal/providers/email/mocks"
	"go.uber.org/zap"
)

func newTestDispatcher(t *testing.T, provider *mocks.MockProvider, queueSize int) *Dispatcher {
	t.Helper()
	return NewDispatcher(Params{
		Log:      zap.NewNop(),
		Config:   config.Config{Notify: config.NotifyConfig{Workers: 1, QueueSize: queueSize}},
		Provider: provider,
		Settings: config.NewStaticNotificationSettings(config.DefaultNotificationSettings()),
	})
}

func stopDispatcher(t *testing.T, d *Dispatcher) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestDispatcherDeliversWithSettings(t *testing.T) {
	ctrl := gomock.NewController(t)
	provider := mocks.NewMockProvider(ctrl)
	d := newTestDispatcher(t, provider, 4)

	sent := make(chan map[string]string, 1)
	provider.EXPECT().
		SendTemplate(gomock.Any(), []string{"ada@acme.com"}, TemplateCredentials, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ []string, _ string, data map[string]string) error {
			sent <- data
			return nil
		})

	d.Start()
	d.Notify(context.Background(), NewMessage(TemplateCredentials, "ada@acme.com", map[string]string{"password": "x"}))

	select {
	case data := <-sent:
		if data["subject"] != "Your Complytics account is ready" {
			t.Fatalf("unexpected subject %q", data["subject"])
		}
		if data["product_name"] != "Complytics" || data["password"] != "x" {
			t.Fatalf("unexpected data %v", data)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("message was not delivered")
	}
	stopDispatcher(t, d)
}

func TestDispatcherReportsSendFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	provider := mocks.NewMockProvider(ctrl)
	d := newTestDispatcher(t, provider, 4)

	provider.EXPECT().
		SendTemplate(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(errors.New("smtp down"))

	d.Start()
	msg := NewMessage(TemplateRoleChange, "bob@acme.com", nil)
	d.Notify(context.Background(), msg)

	select {
	case f := <-d.Failures():
		if f.Reason != ReasonSendFailed || f.MessageID != msg.ID {
			t.Fatalf("unexpected failure %+v", f)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("expected a failure report")
	}
	stopDispatcher(t, d)
}

func TestDispatcherQueueFullAndShutdown(t *testing.T) {
	ctrl := gomock.NewController(t)
	provider := mocks.NewMockProvider(ctrl)
	d := newTestDispatcher(t, provider, 1)

	first := NewMessage(TemplateCredentials, "a@co.com", nil)
	second := NewMessage(TemplateCredentials, "b@co.com", nil)
	d.Notify(context.Background(), first)
	d.Notify(context.Background(), second)

	stopDispatcher(t, d)

	var reasons []string
	for f := range d.Failures() {
		reasons = append(reasons, f.Reason)
	}
	if len(reasons) != 2 || reasons[0] != ReasonQueueFull || reasons[1] != ReasonShutdown {
		t.Fatalf("unexpected failure reasons %v", reasons)
	}

	// After shutdown Notify must neither panic nor block.
	d.Notify(context.Background(), NewMessage(TemplateCredentials, "c@co.com", nil))
}

func TestDeadLetterCountsFailures(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := metrics.NewAuthMetrics(registry, metrics.Config{})
	dl := NewDeadLetter(zap.NewNop(), nil, m)

	failures := make(chan Failure, 2)
	failures <- newFailure(NewMessage(TemplateCredentials, "a@co.com", nil), ReasonSendFailed, errors.New("boom"))
	failures <- newFailure(NewMessage(TemplateForgotPassword, "b@co.com", nil), ReasonQueueFull, nil)
	close(failures)

	dl.Run(failures)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := dl.Wait(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if got := testutil.CollectAndCount(registry, "complytics_notification_failures_total"); got != 2 {
		t.Fatalf("expected 2 failure series, got %d", got)
	}
}

func TestRecorderLast(t *testing.T) {
	var r Recorder
	r.Notify(context.Background(), NewMessage(TemplateCredentials, "a@co.com", nil))
	r.Notify(context.Background(), NewMessage(TemplateRoleChange, "b@co.com", nil))

	msg, ok := r.Last(TemplateCredentials)
	if !ok || msg.To != "a@co.com" {
		t.Fatalf("unexpected last credentials message %+v", msg)
	}
	if _, ok := r.Last(TemplateForgotPassword); ok {
		t.Fatalf("expected no forgot_password message")
	}
	if len(r.Messages()) != 2 {
		t.Fatalf("expected 2 messages")
	}
}
