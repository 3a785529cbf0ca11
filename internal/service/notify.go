package service

import (
	"log"

	"github.com/orgadmin/backend/internal/domain"
)

// NotificationSink shows a toast to the buyer of one checkout session.
type NotificationSink interface {
	Notify(checkoutID string, n domain.Notification)
}

// LogSink writes notifications to the log. Used in tests and by the CLI.
type LogSink struct{}

func (LogSink) Notify(checkoutID string, n domain.Notification) {
	log.Printf("[Notify] %s %s: %s (%s)", checkoutID, n.Title, n.Description, n.Severity)
}
