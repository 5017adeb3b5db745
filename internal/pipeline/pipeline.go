package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/safemind/go-crisis-alerts/internal/channels"
	"github.com/safemind/go-crisis-alerts/internal/classify"
	"github.com/safemind/go-crisis-alerts/internal/models"
	"github.com/safemind/go-crisis-alerts/internal/repository"
)

// Realtime is the slice of the connection registry the pipeline fans out to.
type Realtime interface {
	BroadcastToGroup(agencyID int64, msg []byte)
}

// Notifier is the out-of-band notification path.
type Notifier interface {
	SendEmergencyAlert(user *models.User, report *models.Report, payload []byte)
}

// Processor runs a new distress report through classification, severity
// assignment, agency broadcast, notification and follow-up scheduling.
// Classification and severity persistence are fatal; the remaining steps are
// individually fault-isolated so one failing side effect never blocks the
// others or the report creation itself.
type Processor struct {
	store      repository.Store
	classifier classify.Classifier
	realtime   Realtime
	events     *channels.Buffer
	notifier   Notifier
}

func NewProcessor(store repository.Store, classifier classify.Classifier, realtime Realtime, events *channels.Buffer, notifier Notifier) *Processor {
	return &Processor{
		store:      store,
		classifier: classifier,
		realtime:   realtime,
		events:     events,
		notifier:   notifier,
	}
}

// ProcessNewReport mutates the report's computed fields and drives the side
// effects. Not idempotent: calling twice schedules two follow-ups.
func (p *Processor) ProcessNewReport(ctx context.Context, report *models.Report) error {
	res, err := p.classifier.Classify(report.Description)
	if err != nil {
		return fmt.Errorf("risk classification for report %d: %w", report.ID, err)
	}

	severity, priority := classify.SeverityForScore(res.Score)
	report.RiskLevel = string(res.Tier)
	report.RiskScore = res.Score
	report.Severity = severity

	if err := p.store.SaveReport(ctx, report); err != nil {
		return fmt.Errorf("persisting severity for report %d: %w", report.ID, err)
	}
	slog.Info("report classified", "report_id", report.ID, "risk_score", res.Score, "severity", severity)

	// Broadcast and notification need the reporter record; follow-up
	// scheduling does not, so a failed lookup never blocks it.
	if user := p.lookupReporter(ctx, report); user != nil {
		payload := p.broadcastAlert(report, user)
		p.notify(report, user, payload)
	}
	p.scheduleFollowUp(ctx, report, priority)

	slog.Info("report processed", "report_id", report.ID)
	return nil
}

func (p *Processor) lookupReporter(ctx context.Context, report *models.Report) *models.User {
	user, err := p.store.GetUser(ctx, report.UserID)
	if err != nil || user == nil {
		slog.Error("reporter lookup failed, skipping broadcast and notification", "report_id", report.ID, "user_id", report.UserID, "error", err)
		return nil
	}
	return user
}

// broadcastAlert emits the emergency event to the reporter's agency and the
// emergency channel. An ungrouped reporter skips broadcast silently; the
// report record stands regardless.
func (p *Processor) broadcastAlert(report *models.Report, user *models.User) []byte {
	alert := models.EmergencyAlert{
		Type:        models.EventTypeEmergencyAlert,
		ReportID:    report.ID,
		Severity:    report.Severity,
		RiskScore:   report.RiskScore,
		Location:    report.Location,
		Description: report.Description,
		UserName:    user.Name,
		Timestamp:   report.CreatedAt,
	}

	payload, err := json.Marshal(alert)
	if err != nil {
		slog.Error("marshal emergency alert failed", "report_id", report.ID, "error", err)
		return nil
	}

	if user.AgencyID <= 0 {
		slog.Warn("report has no agency assignment, skipping broadcast", "report_id", report.ID)
		return payload
	}

	p.realtime.BroadcastToGroup(user.AgencyID, payload)

	if err := p.events.Publish(channels.ChannelEmergency, alert.Type, report.ID, payload); err != nil {
		slog.Error("publish to emergency channel failed", "report_id", report.ID, "error", err)
	}

	slog.Info("emergency alert broadcast", "report_id", report.ID, "agency_id", user.AgencyID)
	return payload
}

func (p *Processor) notify(report *models.Report, user *models.User, payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("notification dispatch panicked", "report_id", report.ID, "panic", r)
		}
	}()
	p.notifier.SendEmergencyAlert(user, report, payload)
}

func (p *Processor) scheduleFollowUp(ctx context.Context, report *models.Report, priority int) {
	delay := classify.FollowUpDelay(priority)

	f := &models.FollowUp{
		ReportID:     report.ID,
		UserID:       report.UserID,
		Type:         models.FollowUpTypeAutomated,
		Status:       models.FollowUpStatusPending,
		ScheduledFor: time.Now().UTC().Add(delay),
		Notes:        "Automated follow-up for " + string(report.Severity) + " severity report (priority " + strconv.Itoa(priority) + ")",
	}

	if err := p.store.CreateFollowUp(ctx, f); err != nil {
		slog.Error("follow-up scheduling failed", "report_id", report.ID, "error", err)
		return
	}

	slog.Info("follow-up scheduled", "followup_id", f.ID, "report_id", report.ID, "scheduled_for", f.ScheduledFor)
}
