package models

import "time"

const (
	EventTypeEmergencyAlert  = "emergency_alert"
	EventTypeFollowupCheckin = "followup_checkin"
	EventTypeEscalationAlert = "escalation_alert"
)

// EmergencyAlert is the realtime payload broadcast to the reporting user's
// agency when a new report has been classified.
type EmergencyAlert struct {
	Type        string    `json:"type"`
	ReportID    int64     `json:"report_id"`
	Severity    Severity  `json:"severity"`
	RiskScore   float64   `json:"risk_score"`
	Location    string    `json:"location"`
	Description string    `json:"description"`
	UserName    string    `json:"user_name"`
	Timestamp   time.Time `json:"timestamp"`
}

type CheckinEvent struct {
	Type        string         `json:"type"`
	FollowUpID  int64          `json:"followup_id"`
	ReportID    int64          `json:"report_id"`
	UserID      int64          `json:"user_id"`
	Status      FollowUpStatus `json:"status"`
	Response    string         `json:"response"`
	CompletedAt *time.Time     `json:"completed_at"`
}

type EscalationAlert struct {
	Type         string    `json:"type"`
	ReportID     int64     `json:"report_id"`
	FollowUpID   int64     `json:"followup_id"`
	Severity     Severity  `json:"severity"`
	Reason       string    `json:"reason"`
	UserResponse string    `json:"user_response"`
	Timestamp    time.Time `json:"timestamp"`
}
