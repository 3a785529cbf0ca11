package domain

import "time"

// Severity of a toast notification.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
)

// Notification is a toast shown to the buyer.
type Notification struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Severity    Severity  `json:"severity"`
	CreatedAt   time.Time `json:"createdAt"`
}

// NewNotification stamps a notification with the current time.
func NewNotification(title, description string, severity Severity) Notification {
	return Notification{
		Title:       title,
		Description: description,
		Severity:    severity,
		CreatedAt:   time.Now(),
	}
}
