package notify

import (
	"log/slog"

	"github.com/safemind/go-crisis-alerts/internal/models"
)

// Broadcaster is the realtime delivery path the dispatcher fans out to,
// satisfied by the connection registry.
type Broadcaster interface {
	Broadcast(msg []byte)
	SendToIdentity(identity string, msg []byte)
}

// Sender delivers over one out-of-band channel (email, SMS). Implementations
// are synchronous, best-effort stubs; delivery guarantees are out of scope.
type Sender interface {
	Send(to, subject, body string) error
}

// LogSender stands in for a real gateway integration and records the send.
type LogSender struct {
	Channel string // "email" or "sms"
}

func (l *LogSender) Send(to, subject, body string) error {
	slog.Info("notification sent", "channel", l.Channel, "to", to, "subject", subject)
	return nil
}

// Dispatcher fans one alert out to email, SMS and the realtime broadcast
// path. The three paths are independent: a failure on one is logged and never
// blocks the others.
type Dispatcher struct {
	email       Sender
	sms         Sender
	broadcaster Broadcaster
}

func NewDispatcher(email, sms Sender, broadcaster Broadcaster) *Dispatcher {
	return &Dispatcher{
		email:       email,
		sms:         sms,
		broadcaster: broadcaster,
	}
}

// SendEmergencyAlert notifies the reporter's contact points and pushes the
// realtime payload to all connected subscribers.
func (d *Dispatcher) SendEmergencyAlert(user *models.User, report *models.Report, payload []byte) {
	subject := "Emergency alert: " + string(report.Severity)

	if user.Email != "" {
		if err := d.email.Send(user.Email, subject, report.Description); err != nil {
			slog.Error("email notification failed", "report_id", report.ID, "error", err)
		}
	}
	if user.Phone != "" {
		if err := d.sms.Send(user.Phone, subject, report.Description); err != nil {
			slog.Error("sms notification failed", "report_id", report.ID, "error", err)
		}
	}

	d.broadcaster.Broadcast(payload)
}

// SendFollowUpReminder nudges the user that a check-in is due.
func (d *Dispatcher) SendFollowUpReminder(user *models.User, f *models.FollowUp) {
	subject := "Check-in reminder"
	body := "A follow-up check-in is scheduled for your report."

	if user.Email != "" {
		if err := d.email.Send(user.Email, subject, body); err != nil {
			slog.Error("reminder email failed", "followup_id", f.ID, "error", err)
		}
	}
	if user.Phone != "" {
		if err := d.sms.Send(user.Phone, subject, body); err != nil {
			slog.Error("reminder sms failed", "followup_id", f.ID, "error", err)
		}
	}
}
