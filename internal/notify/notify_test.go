package notify

import (
	"errors"
	"testing"

	"github.com/safemind/go-crisis-alerts/internal/models"
)

type recordingSender struct {
	sent []string
	err  error
}

func (r *recordingSender) Send(to, subject, body string) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, to)
	return nil
}

type recordingBroadcaster struct {
	broadcasts [][]byte
	direct     map[string][][]byte
}

func (r *recordingBroadcaster) Broadcast(msg []byte) {
	r.broadcasts = append(r.broadcasts, msg)
}

func (r *recordingBroadcaster) SendToIdentity(identity string, msg []byte) {
	if r.direct == nil {
		r.direct = make(map[string][][]byte)
	}
	r.direct[identity] = append(r.direct[identity], msg)
}

func TestDispatcher_AllPaths(t *testing.T) {
	email := &recordingSender{}
	sms := &recordingSender{}
	bc := &recordingBroadcaster{}
	d := NewDispatcher(email, sms, bc)

	user := &models.User{ID: 1, Email: "a@b.c", Phone: "+15550001111"}
	report := &models.Report{ID: 2, Severity: models.SeverityHigh, Description: "d"}

	d.SendEmergencyAlert(user, report, []byte("payload"))

	if len(email.sent) != 1 || len(sms.sent) != 1 {
		t.Errorf("expected email and sms sends, got %d/%d", len(email.sent), len(sms.sent))
	}
	if len(bc.broadcasts) != 1 {
		t.Errorf("expected 1 realtime broadcast, got %d", len(bc.broadcasts))
	}
}

func TestDispatcher_ContactGating(t *testing.T) {
	email := &recordingSender{}
	sms := &recordingSender{}
	bc := &recordingBroadcaster{}
	d := NewDispatcher(email, sms, bc)

	// No contact info: only the realtime path fires.
	user := &models.User{ID: 1}
	report := &models.Report{ID: 2, Severity: models.SeverityMedium}

	d.SendEmergencyAlert(user, report, []byte("payload"))

	if len(email.sent) != 0 || len(sms.sent) != 0 {
		t.Errorf("expected no out-of-band sends, got %d/%d", len(email.sent), len(sms.sent))
	}
	if len(bc.broadcasts) != 1 {
		t.Errorf("expected realtime broadcast regardless of contact info, got %d", len(bc.broadcasts))
	}
}

func TestDispatcher_FailureIsolation(t *testing.T) {
	email := &recordingSender{err: errors.New("smtp down")}
	sms := &recordingSender{}
	bc := &recordingBroadcaster{}
	d := NewDispatcher(email, sms, bc)

	user := &models.User{ID: 1, Email: "a@b.c", Phone: "+15550001111"}
	report := &models.Report{ID: 2, Severity: models.SeverityCritical}

	d.SendEmergencyAlert(user, report, []byte("payload"))

	if len(sms.sent) != 1 {
		t.Error("sms path should run despite email failure")
	}
	if len(bc.broadcasts) != 1 {
		t.Error("realtime path should run despite email failure")
	}
}

func TestDispatcher_FollowUpReminder(t *testing.T) {
	email := &recordingSender{}
	sms := &recordingSender{}
	d := NewDispatcher(email, sms, &recordingBroadcaster{})

	user := &models.User{ID: 1, Email: "a@b.c"}
	d.SendFollowUpReminder(user, &models.FollowUp{ID: 5})

	if len(email.sent) != 1 {
		t.Errorf("expected reminder email, got %d", len(email.sent))
	}
	if len(sms.sent) != 0 {
		t.Errorf("expected no sms without a phone number, got %d", len(sms.sent))
	}
}
