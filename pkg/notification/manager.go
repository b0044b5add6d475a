package notification

import (
	"fmt"
)

// NotificationSystem represents a delivery channel (e.g., email).
type NotificationSystem string

// NoticeType identifies a kind of notice (e.g., magic link, welcome).
type NoticeType string

const (
	EmailSystem NotificationSystem = "email"

	MagicLinkNotice          NoticeType = "magic_link"
	DeviceVerificationNotice NoticeType = "device_verification"
	WelcomeNotice            NoticeType = "welcome"
	NewDeviceAlertNotice     NoticeType = "new_device_alert"
)

// NotificationData carries the recipient and template fields for one notice.
type NotificationData struct {
	To   string            // Recipient identifier (email address)
	Data map[string]string // Template fields (links, device details, names)
}

// NoticeTemplate holds the subject and bodies for a notice. Text and Html
// are Go template sources; either may be empty.
type NoticeTemplate struct {
	Subject string
	Text    string
	Html    string
}

// NotificationManager routes notices to registered notifiers using
// registered templates.
type NotificationManager struct {
	baseUrl   string
	notifiers map[NotificationSystem]Notifier
	// noticeType -> system -> template
	notificationRegistry map[NoticeType]map[NotificationSystem]NoticeTemplate
}

// NewNotificationManager creates an empty manager. baseUrl is the frontend
// origin prefixed to links inside templates.
func NewNotificationManager(baseUrl string) *NotificationManager {
	return &NotificationManager{
		baseUrl:              baseUrl,
		notifiers:            make(map[NotificationSystem]Notifier),
		notificationRegistry: make(map[NoticeType]map[NotificationSystem]NoticeTemplate),
	}
}

// BaseUrl returns the frontend origin the manager was created with.
func (nm *NotificationManager) BaseUrl() string {
	return nm.baseUrl
}

// RegisterNotifier registers a notifier for a delivery system.
func (nm *NotificationManager) RegisterNotifier(system NotificationSystem, notifier Notifier) {
	nm.notifiers[system] = notifier
}

// RegisterNotification adds a template for a notice type and system.
func (nm *NotificationManager) RegisterNotification(noticeType NoticeType, system NotificationSystem, template NoticeTemplate) error {
	if noticeType == "" || system == "" {
		return fmt.Errorf("invalid input: notice type and system cannot be empty")
	}
	if template.Text == "" && template.Html == "" {
		return fmt.Errorf("invalid template: at least one of Text or Html is required")
	}

	if _, exists := nm.notificationRegistry[noticeType]; !exists {
		nm.notificationRegistry[noticeType] = make(map[NotificationSystem]NoticeTemplate)
	}
	nm.notificationRegistry[noticeType][system] = template
	return nil
}

// Send delivers a notice through the given system using its registered
// template.
func (nm *NotificationManager) Send(noticeType NoticeType, system NotificationSystem, data NotificationData) error {
	systemTemplates, exists := nm.notificationRegistry[noticeType]
	if !exists {
		return fmt.Errorf("no templates registered for notice type: %s", noticeType)
	}

	template, exists := systemTemplates[system]
	if !exists {
		return fmt.Errorf("no template registered for system: %s under notice type: %s", system, noticeType)
	}

	notifier, exists := nm.notifiers[system]
	if !exists {
		return fmt.Errorf("no notifier registered for system: %s", system)
	}

	return notifier.Send(noticeType, data, template)
}
