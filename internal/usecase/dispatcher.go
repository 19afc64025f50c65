package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"appointment-bot/internal/domain"
)

// GroupTarget names the group channel in a DispatchReport.
const GroupTarget = "group"

// ErrUnknownMember is recorded for a selected name without a directory entry.
var ErrUnknownMember = errors.New("usecase: team member has no directory entry")

// Sender delivers plain text to a destination chat.
type Sender interface {
	SendText(ctx context.Context, chatID, text string) error
}

// DeliveryAttempt is the outcome of one fan-out delivery.
type DeliveryAttempt struct {
	Target      string
	Destination string
	Err         error
}

// DispatchReport lists every delivery attempt in fan-out order.
type DispatchReport struct {
	AppointmentID string
	Attempts      []DeliveryAttempt
}

func (r DispatchReport) Failed() []DeliveryAttempt {
	var failed []DeliveryAttempt
	for _, a := range r.Attempts {
		if a.Err != nil {
			failed = append(failed, a)
		}
	}
	return failed
}

// Dispatcher fans a confirmed appointment out to the group and the selected team.
// A failed delivery is logged and never stops the remaining deliveries.
type Dispatcher struct {
	sender      Sender
	groupChatID string
	directory   *TeamDirectory
	logger      *slog.Logger
}

func NewDispatcher(sender Sender, groupChatID string, directory *TeamDirectory, logger *slog.Logger) (*Dispatcher, error) {
	if sender == nil {
		return nil, errors.New("usecase: sender must not be nil")
	}
	if directory == nil {
		return nil, errors.New("usecase: team directory must not be nil")
	}
	groupChatID = strings.TrimSpace(groupChatID)
	if groupChatID == "" {
		return nil, errors.New("usecase: group chat id must not be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		sender:      sender,
		groupChatID: groupChatID,
		directory:   directory,
		logger:      logger,
	}, nil
}

// Notify sends the canonical text for a to one destination.
func (d *Dispatcher) Notify(ctx context.Context, destination string, a domain.Appointment) error {
	if err := d.sender.SendText(ctx, destination, FormatAppointment(a)); err != nil {
		return fmt.Errorf("usecase: notify %s: %w", destination, err)
	}
	return nil
}

// Dispatch notifies the group first, then each team member in selection order.
func (d *Dispatcher) Dispatch(ctx context.Context, a domain.Appointment) DispatchReport {
	report := DispatchReport{
		AppointmentID: a.ID,
		Attempts:      make([]DeliveryAttempt, 0, len(a.Team)+1),
	}
	report.Attempts = append(report.Attempts, d.deliver(ctx, GroupTarget, d.groupChatID, a))

	for _, name := range a.Team {
		chatID, ok := d.directory.Lookup(name)
		if !ok {
			attempt := DeliveryAttempt{Target: name, Err: ErrUnknownMember}
			d.logFailure(a, attempt)
			report.Attempts = append(report.Attempts, attempt)
			continue
		}
		report.Attempts = append(report.Attempts, d.deliver(ctx, name, chatID, a))
	}
	return report
}

func (d *Dispatcher) deliver(ctx context.Context, target, destination string, a domain.Appointment) DeliveryAttempt {
	attempt := DeliveryAttempt{Target: target, Destination: destination}
	if err := d.Notify(ctx, destination, a); err != nil {
		attempt.Err = err
		d.logFailure(a, attempt)
	}
	return attempt
}

func (d *Dispatcher) logFailure(a domain.Appointment, attempt DeliveryAttempt) {
	d.logger.Warn("appointment notification failed",
		"appointment_id", a.ID,
		"target", attempt.Target,
		"destination", attempt.Destination,
		"err", attempt.Err,
	)
}
