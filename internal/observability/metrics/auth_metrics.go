package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeFailure  = "failure"
)

const (
	FailureReasonDeadlineExceeded     = "deadline_exceeded"
	FailureReasonUniqueViolation      = "unique_violation"
	FailureReasonSerializationFailure = "serialization_failure"
	FailureReasonDBLockTimeout        = "db_lock_timeout"
	FailureReasonUnknown              = "unknown"
)

// AuthMetrics tracks authentication and provisioning health for alerting.
// All methods are nil-safe.
type AuthMetrics struct {
	loginAttempts       *prometheus.CounterVec
	tokenVerifications  *prometheus.CounterVec
	approvals           *prometheus.CounterVec
	compensations       *prometheus.CounterVec
	notificationsFailed *prometheus.CounterVec
}

var (
	authMetricsOnce sync.Once
	authMetrics     *AuthMetrics
)

// Auth returns the process-wide auth metrics registered on the default registry.
func Auth() *AuthMetrics {
	return AuthWithConfig(Config{})
}

func AuthWithConfig(cfg Config) *AuthMetrics {
	authMetricsOnce.Do(func() {
		authMetrics = NewAuthMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return authMetrics
}

// NewAuthMetrics registers a fresh set of collectors on registerer.
// Tests pass their own prometheus.Registry.
func NewAuthMetrics(registerer prometheus.Registerer, cfg Config) *AuthMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	constLabels := constLabelsFor(cfg)

	m := &AuthMetrics{
		loginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "complytics_login_attempts_total",
			Help:        "Password authentications by outcome.",
			ConstLabels: constLabels,
		}, []string{"outcome"}),
		tokenVerifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "complytics_token_verifications_total",
			Help:        "Bearer token resolutions by outcome.",
			ConstLabels: constLabels,
		}, []string{"outcome"}),
		approvals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "complytics_registration_approvals_total",
			Help:        "Registration approvals by outcome.",
			ConstLabels: constLabels,
		}, []string{"outcome", "reason"}),
		compensations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "complytics_provisioning_compensations_total",
			Help:        "Compensating deletes run after a failed approval.",
			ConstLabels: constLabels,
		}, []string{"step", "outcome"}),
		notificationsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "complytics_notification_failures_total",
			Help:        "Notifications that could not be delivered.",
			ConstLabels: constLabels,
		}, []string{"template", "reason"}),
	}

	registerer.MustRegister(
		m.loginAttempts,
		m.tokenVerifications,
		m.approvals,
		m.compensations,
		m.notificationsFailed,
	)
	return m
}

func constLabelsFor(cfg Config) prometheus.Labels {
	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "complytics"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	return prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}
}

func (m *AuthMetrics) IncLogin(outcome string) {
	if m == nil {
		return
	}
	m.loginAttempts.WithLabelValues(outcome).Inc()
}

func (m *AuthMetrics) IncTokenVerification(outcome string) {
	if m == nil {
		return
	}
	m.tokenVerifications.WithLabelValues(outcome).Inc()
}

// IncApproval records an approval result. err is classified only for failures.
func (m *AuthMetrics) IncApproval(outcome string, err error) {
	if m == nil {
		return
	}
	reason := ""
	if outcome == OutcomeFailure {
		reason = ClassifyFailureReason(err)
	}
	m.approvals.WithLabelValues(outcome, reason).Inc()
}

func (m *AuthMetrics) IncCompensation(step string, ok bool) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if !ok {
		outcome = OutcomeFailure
	}
	m.compensations.WithLabelValues(step, outcome).Inc()
}

func (m *AuthMetrics) IncNotificationFailure(template, reason string) {
	if m == nil {
		return
	}
	m.notificationsFailed.WithLabelValues(template, reason).Inc()
}

// ClassifyFailureReason maps storage errors to low-cardinality reasons.
func ClassifyFailureReason(err error) string {
	switch {
	case err == nil:
		return FailureReasonUnknown
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return FailureReasonDeadlineExceeded
	case errors.Is(err, gorm.ErrDuplicatedKey), hasPGCode(err, "23505"):
		return FailureReasonUniqueViolation
	case hasPGCode(err, "40001"):
		return FailureReasonSerializationFailure
	case hasPGCode(err, "55P03"):
		return FailureReasonDBLockTimeout
	}
	return FailureReasonUnknown
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}
