package models

import "time"

type FollowUpStatus string

const (
	FollowUpStatusPending   FollowUpStatus = "PENDING"
	FollowUpStatusCompleted FollowUpStatus = "COMPLETED"
	FollowUpStatusCancelled FollowUpStatus = "CANCELLED"
	FollowUpStatusMissed    FollowUpStatus = "MISSED"
)

// Terminal reports true for statuses no transition may leave.
func (s FollowUpStatus) Terminal() bool {
	return s == FollowUpStatusCompleted || s == FollowUpStatusCancelled || s == FollowUpStatusMissed
}

type FollowUpType string

const (
	FollowUpTypeAutomated FollowUpType = "AUTOMATED"
	FollowUpTypeManual    FollowUpType = "MANUAL"
)

type FollowUp struct {
	ID           int64
	ReportID     int64
	UserID       int64
	Type         FollowUpType
	Status       FollowUpStatus
	ScheduledFor time.Time
	CompletedAt  *time.Time
	Notes        string
	Response     string // user's check-in response text
	ReminderSent bool
	CreatedAt    time.Time
}
