package sweeper

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/safemind/go-crisis-alerts/internal/channels"
	"github.com/safemind/go-crisis-alerts/internal/models"
	"github.com/safemind/go-crisis-alerts/internal/repository"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeStore struct {
	mu        sync.Mutex
	users     map[int64]*models.User
	followups map[int64]*models.FollowUp
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:     make(map[int64]*models.User),
		followups: make(map[int64]*models.FollowUp),
	}
}

func (s *fakeStore) CreateUser(ctx context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
	return nil
}

func (s *fakeStore) GetUser(ctx context.Context, id int64) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (s *fakeStore) CreateReport(ctx context.Context, r *models.Report) error  { return nil }
func (s *fakeStore) GetReport(ctx context.Context, id int64) (*models.Report, error) {
	return nil, nil
}
func (s *fakeStore) SaveReport(ctx context.Context, r *models.Report) error { return nil }
func (s *fakeStore) ListReports(ctx context.Context, opts repository.Filter) ([]models.Report, error) {
	return nil, nil
}

func (s *fakeStore) CreateFollowUp(ctx context.Context, f *models.FollowUp) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *f
	s.followups[f.ID] = &cp
	return nil
}

func (s *fakeStore) GetFollowUp(ctx context.Context, id int64) (*models.FollowUp, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.followups[id]; ok {
		cp := *f
		return &cp, nil
	}
	return nil, nil
}

func (s *fakeStore) SaveFollowUp(ctx context.Context, f *models.FollowUp) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *f
	s.followups[f.ID] = &cp
	return nil
}

func (s *fakeStore) ListPendingForUser(ctx context.Context, userID int64) ([]models.FollowUp, error) {
	return nil, nil
}

func (s *fakeStore) ListDue(ctx context.Context, cutoff time.Time) ([]models.FollowUp, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.FollowUp
	for _, f := range s.followups {
		if f.Status == models.FollowUpStatusPending && !f.ScheduledFor.After(cutoff) {
			out = append(out, *f)
		}
	}
	return out, nil
}

type spyRealtime struct {
	mu    sync.Mutex
	sends map[string]int
}

func (s *spyRealtime) SendToIdentity(identity string, msg []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sends == nil {
		s.sends = make(map[string]int)
	}
	s.sends[identity]++
}

type spyNotifier struct {
	mu        sync.Mutex
	reminders int
}

func (s *spyNotifier) SendFollowUpReminder(user *models.User, f *models.FollowUp) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reminders++
}

func (s *spyNotifier) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reminders
}

func TestSweep_RemindsDueOnce(t *testing.T) {
	store := newFakeStore()
	store.CreateUser(context.Background(), &models.User{ID: 1, Name: "Sam", Email: "sam@example.com"})
	store.CreateFollowUp(context.Background(), &models.FollowUp{
		ID:           10,
		ReportID:     2,
		UserID:       1,
		Status:       models.FollowUpStatusPending,
		ScheduledFor: time.Now().UTC().Add(-time.Minute),
	})

	realtime := &spyRealtime{}
	notifier := &spyNotifier{}
	s := New(store, realtime, channels.NewBuffer(100), notifier, time.Minute, time.Hour)

	s.Sweep(context.Background())
	s.Sweep(context.Background()) // second pass must not re-remind

	if notifier.count() != 1 {
		t.Errorf("expected exactly 1 reminder, got %d", notifier.count())
	}
	if realtime.sends["1"] != 1 {
		t.Errorf("expected 1 realtime nudge to user 1, got %d", realtime.sends["1"])
	}

	f, _ := store.GetFollowUp(context.Background(), 10)
	if !f.ReminderSent {
		t.Error("expected reminder_sent to be recorded")
	}
	if f.Status != models.FollowUpStatusPending {
		t.Errorf("reminded follow-up must stay PENDING, got %s", f.Status)
	}
}

func TestSweep_MarksMissedPastGrace(t *testing.T) {
	store := newFakeStore()
	store.CreateUser(context.Background(), &models.User{ID: 1, Name: "Sam"})
	store.CreateFollowUp(context.Background(), &models.FollowUp{
		ID:           11,
		ReportID:     2,
		UserID:       1,
		Status:       models.FollowUpStatusPending,
		ScheduledFor: time.Now().UTC().Add(-2 * time.Hour),
	})

	notifier := &spyNotifier{}
	s := New(store, &spyRealtime{}, channels.NewBuffer(100), notifier, time.Minute, time.Hour)

	s.Sweep(context.Background())

	f, _ := store.GetFollowUp(context.Background(), 11)
	if f.Status != models.FollowUpStatusMissed {
		t.Errorf("expected MISSED past grace, got %s", f.Status)
	}
	if notifier.count() != 0 {
		t.Errorf("expected no reminder for a missed follow-up, got %d", notifier.count())
	}
}

func TestSweep_FutureFollowUpsUntouched(t *testing.T) {
	store := newFakeStore()
	store.CreateUser(context.Background(), &models.User{ID: 1, Name: "Sam"})
	store.CreateFollowUp(context.Background(), &models.FollowUp{
		ID:           12,
		ReportID:     2,
		UserID:       1,
		Status:       models.FollowUpStatusPending,
		ScheduledFor: time.Now().UTC().Add(time.Hour),
	})

	notifier := &spyNotifier{}
	s := New(store, &spyRealtime{}, channels.NewBuffer(100), notifier, time.Minute, time.Hour)

	s.Sweep(context.Background())

	f, _ := store.GetFollowUp(context.Background(), 12)
	if f.Status != models.FollowUpStatusPending || f.ReminderSent {
		t.Errorf("future follow-up should be untouched: %+v", f)
	}
	if notifier.count() != 0 {
		t.Errorf("expected no reminders, got %d", notifier.count())
	}
}

func TestSweeper_StartStop(t *testing.T) {
	store := newFakeStore()
	s := New(store, &spyRealtime{}, channels.NewBuffer(100), &spyNotifier{}, 10*time.Millisecond, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)

	time.Sleep(30 * time.Millisecond)

	cancel()
	s.Stop()
}
