package notification

import (
	"embed"
	"log/slog"
)

//go:embed templates/*
var templateFiles embed.FS

func loadTemplate(filename string) string {
	content, err := templateFiles.ReadFile(filename)
	if err != nil {
		slog.Error("Error reading template file!", "err", err, "filename", filename)
		return ""
	}
	return string(content)
}

// NotificationManagerOption is a function that configures a NotificationManager
type NotificationManagerOption func(*NotificationManager) error

// WithSMTP adds an email notifier with the provided SMTP configuration
func WithSMTP(config SMTPConfig) NotificationManagerOption {
	return func(nm *NotificationManager) error {
		emailNotifier, err := NewEmailNotifier(config)
		if err != nil {
			return err
		}
		nm.RegisterNotifier(EmailSystem, emailNotifier)
		return nil
	}
}

// WithNotifier registers an arbitrary notifier, used by tests to swap in a
// MockNotifier.
func WithNotifier(system NotificationSystem, notifier Notifier) NotificationManagerOption {
	return func(nm *NotificationManager) error {
		nm.RegisterNotifier(system, notifier)
		return nil
	}
}

// WithMagicLinkTemplate registers the login link email template
func WithMagicLinkTemplate() NotificationManagerOption {
	return func(nm *NotificationManager) error {
		return nm.RegisterNotification(MagicLinkNotice, EmailSystem, NoticeTemplate{
			Subject: "Your ShambaSecure Login Link",
			Html:    loadTemplate("templates/email/magic_link.html"),
		})
	}
}

// WithDeviceVerificationTemplate registers the new device verification template
func WithDeviceVerificationTemplate() NotificationManagerOption {
	return func(nm *NotificationManager) error {
		return nm.RegisterNotification(DeviceVerificationNotice, EmailSystem, NoticeTemplate{
			Subject: "Verify New Device - ShambaSecure",
			Html:    loadTemplate("templates/email/device_verification.html"),
		})
	}
}

// WithWelcomeTemplate registers the registration welcome template
func WithWelcomeTemplate() NotificationManagerOption {
	return func(nm *NotificationManager) error {
		return nm.RegisterNotification(WelcomeNotice, EmailSystem, NoticeTemplate{
			Subject: "Welcome to ShambaSecure",
			Html:    loadTemplate("templates/email/welcome.html"),
		})
	}
}

// WithNewDeviceAlertTemplate registers the trusted device added alert template
func WithNewDeviceAlertTemplate() NotificationManagerOption {
	return func(nm *NotificationManager) error {
		return nm.RegisterNotification(NewDeviceAlertNotice, EmailSystem, NoticeTemplate{
			Subject: "New Trusted Device Added - ShambaSecure",
			Html:    loadTemplate("templates/email/new_device_alert.html"),
		})
	}
}

// WithDefaultTemplates registers all default notification templates
func WithDefaultTemplates() NotificationManagerOption {
	return func(nm *NotificationManager) error {
		options := []NotificationManagerOption{
			WithMagicLinkTemplate(),
			WithDeviceVerificationTemplate(),
			WithWelcomeTemplate(),
			WithNewDeviceAlertTemplate(),
		}

		for _, opt := range options {
			if err := opt(nm); err != nil {
				return err
			}
		}

		return nil
	}
}

// NewNotificationManagerWithOptions creates a new notification manager with the provided options
func NewNotificationManagerWithOptions(baseUrl string, opts ...NotificationManagerOption) (*NotificationManager, error) {
	notificationManager := NewNotificationManager(baseUrl)

	for _, opt := range opts {
		if err := opt(notificationManager); err != nil {
			return nil, err
		}
	}

	return notificationManager, nil
}
