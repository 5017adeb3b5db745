package followup

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/safemind/go-crisis-alerts/internal/channels"
	"github.com/safemind/go-crisis-alerts/internal/classify"
	"github.com/safemind/go-crisis-alerts/internal/models"
	"github.com/safemind/go-crisis-alerts/internal/repository"
)

// Realtime is the slice of the connection registry the service fans out to.
type Realtime interface {
	BroadcastToGroup(agencyID int64, msg []byte)
}

// Notifier queues the best-effort reminder when a check-in is scheduled.
type Notifier interface {
	SendFollowUpReminder(user *models.User, f *models.FollowUp)
}

// Service owns the check-in lifecycle: PENDING -> COMPLETED on a submitted
// check-in, PENDING -> CANCELLED on cancellation, terminal states reject
// everything. A completed check-in's response is re-evaluated for distress
// language and may escalate the underlying report.
type Service struct {
	store    repository.Store
	realtime Realtime
	events   *channels.Buffer
	notifier Notifier

	// serializes the read-check-write on follow-up status so the
	// PENDING->COMPLETED transition is exactly-once under concurrent submits.
	mu sync.Mutex
}

func NewService(store repository.Store, realtime Realtime, events *channels.Buffer, notifier Notifier) *Service {
	return &Service{
		store:    store,
		realtime: realtime,
		events:   events,
		notifier: notifier,
	}
}

// Schedule creates a manual PENDING check-in for the report at now + delay.
func (s *Service) Schedule(ctx context.Context, reportID int64, delay time.Duration, notes string) (*models.FollowUp, error) {
	if delay <= 0 {
		return nil, ErrInvalidDelay
	}

	report, err := s.store.GetReport(ctx, reportID)
	if err != nil {
		return nil, fmt.Errorf("looking up report %d: %w", reportID, err)
	}
	if report == nil {
		return nil, fmt.Errorf("report %d: %w", reportID, ErrNotFound)
	}

	if notes == "" {
		notes = fmt.Sprintf("Manual follow-up scheduled in %s", delay)
	}

	f := &models.FollowUp{
		ReportID:     report.ID,
		UserID:       report.UserID,
		Type:         models.FollowUpTypeManual,
		Status:       models.FollowUpStatusPending,
		ScheduledFor: time.Now().UTC().Add(delay),
		Notes:        notes,
	}

	if err := s.store.CreateFollowUp(ctx, f); err != nil {
		return nil, fmt.Errorf("creating follow-up for report %d: %w", reportID, err)
	}

	slog.Info("check-in scheduled", "followup_id", f.ID, "report_id", reportID, "scheduled_for", f.ScheduledFor)

	// Reminder is best-effort; scheduling already succeeded.
	if user, err := s.store.GetUser(ctx, f.UserID); err == nil && user != nil {
		s.notifier.SendFollowUpReminder(user, f)
	} else {
		slog.Error("reminder skipped, reporter lookup failed", "followup_id", f.ID, "error", err)
	}

	return f, nil
}

// SubmitCheckin records the user's response, completes the follow-up and
// re-evaluates the response text for continued crisis.
func (s *Service) SubmitCheckin(ctx context.Context, followupID, userID int64, response string) (*models.FollowUp, error) {
	s.mu.Lock()
	f, err := s.completeLocked(ctx, followupID, userID, response)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	slog.Info("check-in completed", "followup_id", f.ID, "user_id", userID)

	s.broadcastCheckin(ctx, f)
	s.evaluateResponse(ctx, f)

	return f, nil
}

func (s *Service) completeLocked(ctx context.Context, followupID, userID int64, response string) (*models.FollowUp, error) {
	f, err := s.store.GetFollowUp(ctx, followupID)
	if err != nil {
		return nil, fmt.Errorf("looking up follow-up %d: %w", followupID, err)
	}
	if f == nil {
		return nil, fmt.Errorf("follow-up %d: %w", followupID, ErrNotFound)
	}
	if f.UserID != userID {
		return nil, fmt.Errorf("user %d does not own follow-up %d: %w", userID, followupID, ErrForbidden)
	}
	if f.Status != models.FollowUpStatusPending {
		return nil, fmt.Errorf("follow-up %d is %s: %w", followupID, f.Status, ErrInvalidState)
	}

	now := time.Now().UTC()
	f.Status = models.FollowUpStatusCompleted
	f.CompletedAt = &now
	f.Response = response

	if err := s.store.SaveFollowUp(ctx, f); err != nil {
		return nil, fmt.Errorf("saving follow-up %d: %w", followupID, err)
	}
	return f, nil
}

// Cancel moves a PENDING follow-up to CANCELLED.
func (s *Service) Cancel(ctx context.Context, followupID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.store.GetFollowUp(ctx, followupID)
	if err != nil {
		return fmt.Errorf("looking up follow-up %d: %w", followupID, err)
	}
	if f == nil {
		return fmt.Errorf("follow-up %d: %w", followupID, ErrNotFound)
	}
	if f.Status != models.FollowUpStatusPending {
		return fmt.Errorf("follow-up %d is %s: %w", followupID, f.Status, ErrInvalidState)
	}

	f.Status = models.FollowUpStatusCancelled
	if err := s.store.SaveFollowUp(ctx, f); err != nil {
		return fmt.Errorf("saving follow-up %d: %w", followupID, err)
	}

	slog.Info("check-in cancelled", "followup_id", followupID)
	return nil
}

// broadcastCheckin pushes the completed check-in to the owning agency.
// Best-effort: an ungrouped reporter skips silently.
func (s *Service) broadcastCheckin(ctx context.Context, f *models.FollowUp) {
	agencyID := s.ownerAgency(ctx, f)
	if agencyID <= 0 {
		return
	}

	event := models.CheckinEvent{
		Type:        models.EventTypeFollowupCheckin,
		FollowUpID:  f.ID,
		ReportID:    f.ReportID,
		UserID:      f.UserID,
		Status:      f.Status,
		Response:    f.Response,
		CompletedAt: f.CompletedAt,
	}

	payload, err := json.Marshal(event)
	if err != nil {
		slog.Error("marshal checkin event failed", "followup_id", f.ID, "error", err)
		return
	}

	s.realtime.BroadcastToGroup(agencyID, payload)
	if err := s.events.Publish(channels.ChannelFollowup, event.Type, f.ReportID, payload); err != nil {
		slog.Error("publish to followup channel failed", "followup_id", f.ID, "error", err)
	}
}

// evaluateResponse escalates the report when the response carries distress
// language, otherwise marks a non-resolved report stable. Failures here are
// logged only; the check-in itself already succeeded.
func (s *Service) evaluateResponse(ctx context.Context, f *models.FollowUp) {
	report, err := s.store.GetReport(ctx, f.ReportID)
	if err != nil || report == nil {
		slog.Error("response evaluation skipped, report lookup failed", "report_id", f.ReportID, "error", err)
		return
	}

	if classify.ContainsDistress(f.Response) {
		report.Status = models.ReportStatusEscalated
		report.Severity = models.SeverityCritical
		if err := s.store.SaveReport(ctx, report); err != nil {
			slog.Error("escalation save failed", "report_id", report.ID, "error", err)
			return
		}

		slog.Warn("check-in response indicates continued crisis, escalating",
			"report_id", report.ID, "followup_id", f.ID)
		s.broadcastEscalation(ctx, report, f)
		return
	}

	if report.Status != models.ReportStatusResolved {
		report.Status = models.ReportStatusStable
		if err := s.store.SaveReport(ctx, report); err != nil {
			slog.Error("stable save failed", "report_id", report.ID, "error", err)
			return
		}
		slog.Info("report marked stable after check-in", "report_id", report.ID)
	}
}

func (s *Service) broadcastEscalation(ctx context.Context, report *models.Report, f *models.FollowUp) {
	alert := models.EscalationAlert{
		Type:         models.EventTypeEscalationAlert,
		ReportID:     report.ID,
		FollowUpID:   f.ID,
		Severity:     models.SeverityCritical,
		Reason:       "Continued crisis indicated in follow-up check-in",
		UserResponse: f.Response,
		Timestamp:    time.Now().UTC(),
	}

	payload, err := json.Marshal(alert)
	if err != nil {
		slog.Error("marshal escalation alert failed", "report_id", report.ID, "error", err)
		return
	}

	if agencyID := s.ownerAgency(ctx, f); agencyID > 0 {
		s.realtime.BroadcastToGroup(agencyID, payload)
	}
	if err := s.events.Publish(channels.ChannelEscalation, alert.Type, report.ID, payload); err != nil {
		slog.Error("publish to escalation channel failed", "report_id", report.ID, "error", err)
	}
}

// ownerAgency resolves the agency of the follow-up's owner; 0 means ungrouped.
func (s *Service) ownerAgency(ctx context.Context, f *models.FollowUp) int64 {
	user, err := s.store.GetUser(ctx, f.UserID)
	if err != nil || user == nil {
		slog.Error("owner lookup failed", "followup_id", f.ID, "user_id", f.UserID, "error", err)
		return 0
	}
	return user.AgencyID
}

// PendingForUser lists a user's open check-ins.
func (s *Service) PendingForUser(ctx context.Context, userID int64) ([]models.FollowUp, error) {
	return s.store.ListPendingForUser(ctx, userID)
}
