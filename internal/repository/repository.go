package repository

import (
	"context"
	"time"

	"github.com/safemind/go-crisis-alerts/internal/models"
)

// Filter narrows report listings. Nil fields are unconstrained.
type Filter struct {
	Limit        int
	Offset       int
	Since        *time.Time
	UserID       *int64
	Status       *models.ReportStatus
	Severity     *models.Severity
	MinRiskScore *float64
}

type UserRepository interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id int64) (*models.User, error)
}

type ReportRepository interface {
	CreateReport(ctx context.Context, r *models.Report) error
	GetReport(ctx context.Context, id int64) (*models.Report, error)
	// SaveReport persists the mutable computed fields of a fetched snapshot
	// (status, severity, risk level/score).
	SaveReport(ctx context.Context, r *models.Report) error
	ListReports(ctx context.Context, opts Filter) ([]models.Report, error)
}

type FollowUpRepository interface {
	CreateFollowUp(ctx context.Context, f *models.FollowUp) error
	GetFollowUp(ctx context.Context, id int64) (*models.FollowUp, error)
	SaveFollowUp(ctx context.Context, f *models.FollowUp) error
	// ListPendingForUser returns a user's PENDING follow-ups, newest first.
	ListPendingForUser(ctx context.Context, userID int64) ([]models.FollowUp, error)
	// ListDue returns PENDING follow-ups scheduled at or before the cutoff,
	// oldest first.
	ListDue(ctx context.Context, cutoff time.Time) ([]models.FollowUp, error)
}

// Store is the full persistence collaborator handed to the core services.
type Store interface {
	UserRepository
	ReportRepository
	FollowUpRepository
}
