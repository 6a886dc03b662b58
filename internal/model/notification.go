package model

import "time"

type NotificationKind string

const (
	NotificationAlert    NotificationKind = "alert"
	NotificationIncident NotificationKind = "incident"
)

// Notification - handed to the delivery collaborators after a transaction
// commits. Delivery is attempted once per channel.
type Notification struct {
	ID         string           `json:"id"`
	Kind       NotificationKind `json:"kind"`
	Item       Item             `json:"item"`
	Alert      *Alert           `json:"alert,omitempty"`
	Incident   *Incident        `json:"incident,omitempty"`
	Recipients []string         `json:"recipients"`
	CreatedAt  time.Time        `json:"created_at"`
}

// DeliveryStatus - what happened to the notification hand-off of an operation.
// Anything other than queued or not_requested is a degraded success.
type DeliveryStatus string

const (
	DeliveryNotRequested DeliveryStatus = "not_requested"
	DeliveryQueued       DeliveryStatus = "queued"
	DeliveryNoRecipients DeliveryStatus = "no_recipients"
	DeliveryFailed       DeliveryStatus = "failed"
)

func (s DeliveryStatus) Degraded() bool {
	return s == DeliveryNoRecipients || s == DeliveryFailed
}
