package email

import (
	"github.com/smallbiznis/complytics/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("providers.email",
	fx.Provide(NewFromConfig),
)

// NewFromConfig returns the SMTP provider, or a no-op provider when
// SMTP_HOST is unset.
func NewFromConfig(cfg config.Config, log *zap.Logger) (Provider, error) {
	if cfg.Email.SMTPHost == "" {
		log.Named("providers.email").Warn("SMTP_HOST not set, outgoing email disabled")
		return &NoOpProvider{}, nil
	}
	return NewSMTP(Config{
		Host:     cfg.Email.SMTPHost,
		Port:     cfg.Email.SMTPPort,
		Username: cfg.Email.SMTPUsername,
		Password: cfg.Email.SMTPPassword,
		From:     cfg.Email.FromEmail,
	})
}
