package domain

import (
	"time"

	"github.com/google/uuid"
)

// NotificationKind labels the notification payload for downstream routing.
type NotificationKind string

const (
	NotifyDealAdvanced  NotificationKind = "deal_advanced"
	NotifyDealSettled   NotificationKind = "deal_settled"
	NotifyDealCancelled NotificationKind = "deal_cancelled"
)

// Notification is the payload contract with the external sink. Rows are
// written in the same transaction as the mutation that caused them and
// drained by the notifier worker; this core never reads them back.
type Notification struct {
	ID          uuid.UUID
	CompanyID   uuid.UUID
	Kind        NotificationKind
	DealID      *uuid.UUID
	PassportID  *uuid.UUID
	Title       string
	Message     string
	CreatedAt   time.Time
	ClaimedAt   *time.Time
	DeliveredAt *time.Time
	Attempts    int
	LastError   string
}
