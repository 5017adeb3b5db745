package sweeper

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/safemind/go-crisis-alerts/internal/channels"
	"github.com/safemind/go-crisis-alerts/internal/logging"
	"github.com/safemind/go-crisis-alerts/internal/models"
	"github.com/safemind/go-crisis-alerts/internal/repository"
)

// Realtime is the slice of the connection registry the sweeper nudges through.
type Realtime interface {
	SendToIdentity(identity string, msg []byte)
}

// Notifier delivers the out-of-band check-in reminder.
type Notifier interface {
	SendFollowUpReminder(user *models.User, f *models.FollowUp)
}

// Sweeper periodically scans for due check-ins. A follow-up that has reached
// its scheduled time gets a one-shot reminder; one that stays unanswered past
// the grace period is marked MISSED.
type Sweeper struct {
	store    repository.Store
	realtime Realtime
	events   *channels.Buffer
	notifier Notifier
	interval time.Duration
	grace    time.Duration
	log      *slog.Logger
	wg       sync.WaitGroup
}

func New(store repository.Store, realtime Realtime, events *channels.Buffer, notifier Notifier, interval, grace time.Duration) *Sweeper {
	return &Sweeper{
		store:    store,
		realtime: realtime,
		events:   events,
		notifier: notifier,
		interval: interval,
		grace:    grace,
		log:      logging.With("sweeper"),
	}
}

func (s *Sweeper) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.run(ctx)
}

func (s *Sweeper) run(ctx context.Context) {
	defer s.wg.Done()
	s.log.Info("starting follow-up sweeper", "interval", s.interval, "grace", s.grace)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Initial sweep
	s.Sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			s.log.Info("follow-up sweeper shutting down")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep processes one pass over due follow-ups.
func (s *Sweeper) Sweep(ctx context.Context) {
	now := time.Now().UTC()

	due, err := s.store.ListDue(ctx, now)
	if err != nil {
		s.log.Error("due follow-up scan failed", "error", err)
		return
	}

	for i := range due {
		f := &due[i]
		if now.Sub(f.ScheduledFor) > s.grace {
			s.markMissed(ctx, f)
			continue
		}
		if !f.ReminderSent {
			s.remind(ctx, f)
		}
	}

	s.log.Debug("sweep complete", "due", len(due))
}

func (s *Sweeper) remind(ctx context.Context, f *models.FollowUp) {
	user, err := s.store.GetUser(ctx, f.UserID)
	if err != nil || user == nil {
		s.log.Error("reminder skipped, owner lookup failed", "followup_id", f.ID, "error", err)
		return
	}

	s.notifier.SendFollowUpReminder(user, f)

	payload, err := json.Marshal(map[string]any{
		"type":        "followup_due",
		"followup_id": f.ID,
		"report_id":   f.ReportID,
		"scheduled":   f.ScheduledFor,
	})
	if err == nil {
		s.realtime.SendToIdentity(strconv.FormatInt(f.UserID, 10), payload)
		if err := s.events.Publish(channels.ChannelFollowup, "followup_due", f.ReportID, payload); err != nil {
			s.log.Error("publish followup_due failed", "followup_id", f.ID, "error", err)
		}
	}

	f.ReminderSent = true
	if err := s.store.SaveFollowUp(ctx, f); err != nil {
		s.log.Error("marking reminder sent failed", "followup_id", f.ID, "error", err)
		return
	}

	s.log.Info("check-in reminder delivered", "followup_id", f.ID, "user_id", f.UserID)
}

func (s *Sweeper) markMissed(ctx context.Context, f *models.FollowUp) {
	f.Status = models.FollowUpStatusMissed
	if err := s.store.SaveFollowUp(ctx, f); err != nil {
		s.log.Error("marking follow-up missed failed", "followup_id", f.ID, "error", err)
		return
	}

	s.log.Warn("follow-up missed", "followup_id", f.ID, "report_id", f.ReportID, "scheduled_for", f.ScheduledFor)
}

func (s *Sweeper) Stop() {
	s.wg.Wait()
	s.log.Info("follow-up sweeper stopped")
}
