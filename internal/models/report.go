package models

import "time"

type Severity string

const (
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

type ReportStatus string

const (
	ReportStatusPending   ReportStatus = "PENDING"
	ReportStatusStable    ReportStatus = "STABLE"
	ReportStatusEscalated ReportStatus = "ESCALATED"
	ReportStatusResolved  ReportStatus = "RESOLVED"
)

type Report struct {
	ID          int64
	UserID      int64
	Title       string
	Description string // free-text distress report, input to the risk classifier
	Location    string
	Status      ReportStatus
	Severity    Severity
	RiskLevel   string // classifier tier: low, medium, high
	RiskScore   float64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
