package app

import (
	"log/slog"

	"github.com/example/vexokart/internal/config"
	"github.com/example/vexokart/internal/email"
	"github.com/example/vexokart/internal/metrics"
	"github.com/example/vexokart/internal/notification"
)

// NotificationSettings seeds the live settings from the YAML file when one
// is configured, otherwise from the environment.
func NotificationSettings(cfg config.Notification) (notification.Settings, error) {
	if cfg.SettingsFile != "" {
		return notification.LoadSettingsFile(cfg.SettingsFile)
	}
	return notification.Settings{
		EmailEnabled: cfg.EmailEnabled,
		SMSEnabled:   cfg.SMSEnabled,
		Sandbox:      cfg.Sandbox,
		Email: notification.EmailProvider{
			Endpoint: cfg.EmailEndpoint,
			APIKey:   cfg.EmailAPIKey,
			From:     cfg.EmailFrom,
		},
		SMS: notification.SMSProvider{
			Endpoint: cfg.SMSEndpoint,
			APIKey:   cfg.SMSAPIKey,
			SenderID: cfg.SMSSenderID,
		},
	}, nil
}

func RetryConfig(cfg config.Notification) notification.RetryConfig {
	rc := notification.DefaultRetryConfig()
	rc.MaxRetries = cfg.MaxRetries
	rc.InitialBackoff = cfg.InitialBackoff
	rc.MaxBackoff = cfg.MaxBackoff
	rc.SendTimeout = cfg.SendTimeout
	rc.SandboxDelay = cfg.SandboxDelay
	return rc
}

// NewDispatcher wires content generation and provider overrides. An
// OpenAI key enables generated copy; SMTP_HOST pins email to that relay.
func NewDispatcher(cfg config.Notification, settings *notification.SettingsStore, logs notification.LogStore, logger *slog.Logger, m *metrics.Metrics) *notification.Dispatcher {
	opts := []notification.DispatcherOption{
		notification.WithRetryConfig(RetryConfig(cfg)),
		notification.WithDispatcherLogger(logger),
		notification.WithDispatcherMetrics(m),
	}
	if cfg.OpenAIAPIKey != "" {
		opts = append(opts, notification.WithContentGenerator(
			notification.NewOpenAIGenerator(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)))
	}
	if cfg.SMTPHost != "" {
		opts = append(opts, notification.WithEmailSender(
			email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.EmailFrom)))
	}
	return notification.NewDispatcher(settings, logs, opts...)
}
