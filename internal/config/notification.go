package config

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// NotificationSettings controls the wording of outgoing account emails.
// It can be edited on a running instance through notifications.yml.
type NotificationSettings struct {
	ProductName string            `mapstructure:"productName"`
	LoginURL    string            `mapstructure:"loginUrl"`
	Subjects    map[string]string `mapstructure:"subjects"`
}

func DefaultNotificationSettings() NotificationSettings {
	return NotificationSettings{
		ProductName: "Complytics",
		LoginURL:    "",
		Subjects: map[string]string{
			"credentials":     "Your Complytics account is ready",
			"role_change":     "Your Complytics role has changed",
			"forgot_password": "Your Complytics credentials",
		},
	}
}

// Subject returns the configured subject for a template, falling back to
// the built-in defaults.
func (s NotificationSettings) Subject(template string) string {
	if v := strings.TrimSpace(s.Subjects[template]); v != "" {
		return v
	}
	if v, ok := DefaultNotificationSettings().Subjects[template]; ok {
		return v
	}
	return s.ProductName
}

type NotificationSettingsHolder struct {
	current atomic.Value // holds NotificationSettings
}

// NewStaticNotificationSettings returns a holder that never reloads.
func NewStaticNotificationSettings(settings NotificationSettings) *NotificationSettingsHolder {
	holder := &NotificationSettingsHolder{}
	holder.current.Store(settings)
	return holder
}

func NewNotificationSettingsHolder(cfg Config, log *zap.Logger) (*NotificationSettingsHolder, error) {
	log = log.Named("config.notifications")
	v := viper.New()

	v.SetConfigName("notifications")
	v.SetConfigType("yml")
	if path := strings.TrimSpace(cfg.Notify.ConfigPath); path != "" {
		v.AddConfigPath(path)
	}
	v.AddConfigPath("/etc/complytics")

	v.SetEnvPrefix("COMPLYTICS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultNotificationSettings()
	v.SetDefault("notifications.productName", defaults.ProductName)
	v.SetDefault("notifications.loginUrl", defaults.LoginURL)
	v.SetDefault("notifications.subjects", defaults.Subjects)

	found := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		found = false
	}

	var settings NotificationSettings
	if err := v.UnmarshalKey("notifications", &settings); err != nil {
		return nil, err
	}
	if err := validateNotificationSettings(settings); err != nil {
		return nil, err
	}

	holder := NewStaticNotificationSettings(settings)
	if !found {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated NotificationSettings
		if err := v.UnmarshalKey("notifications", &updated); err != nil {
			log.Warn("reload failed", zap.Error(err))
			return
		}
		if err := validateNotificationSettings(updated); err != nil {
			log.Warn("invalid settings ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *NotificationSettingsHolder) Get() NotificationSettings {
	return h.current.Load().(NotificationSettings)
}

func validateNotificationSettings(s NotificationSettings) error {
	if strings.TrimSpace(s.ProductName) == "" {
		return errors.New("notifications.productName cannot be empty")
	}
	return nil
}
