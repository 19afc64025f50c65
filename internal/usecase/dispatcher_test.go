package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"appointment-bot/internal/domain"
)

type sendCall struct {
	chatID string
	text   string
}

type fakeSender struct {
	calls []sendCall
	fail  map[string]error
}

func (f *fakeSender) SendText(_ context.Context, chatID, text string) error {
	f.calls = append(f.calls, sendCall{chatID: chatID, text: text})
	return f.fail[chatID]
}

func sampleAppointment() domain.Appointment {
	return domain.Appointment{
		ID:            "1",
		ClientName:    "Acme Co",
		Description:   "Kickoff",
		StartDateTime: "2025-04-01 10:00",
		EndDateTime:   "2025-04-01 11:00",
		Location:      "https://maps/x",
		Team:          []string{"John Doe", "Jane Smith"},
	}
}

func newTestDispatcher(t *testing.T, sender Sender) *Dispatcher {
	t.Helper()
	d, err := NewDispatcher(sender, groupChat, testDirectory(t), discardLogger())
	require.NoError(t, err)
	return d
}

func TestNewDispatcher_ValidatesDependencies(t *testing.T) {
	_, err := NewDispatcher(nil, groupChat, testDirectory(t), nil)
	require.Error(t, err)
	_, err = NewDispatcher(&fakeSender{}, groupChat, nil, nil)
	require.Error(t, err)
	_, err = NewDispatcher(&fakeSender{}, "  ", testDirectory(t), nil)
	require.Error(t, err)
}

func TestDispatch_GroupThenMembersInOrder(t *testing.T) {
	sender := &fakeSender{}
	report := newTestDispatcher(t, sender).Dispatch(context.Background(), sampleAppointment())

	require.Len(t, sender.calls, 3)
	require.Equal(t, groupChat, sender.calls[0].chatID)
	require.Equal(t, "123456789", sender.calls[1].chatID)
	require.Equal(t, "987654321", sender.calls[2].chatID)
	for _, c := range sender.calls {
		require.Equal(t, FormatAppointment(sampleAppointment()), c.text)
	}
	require.Equal(t, "1", report.AppointmentID)
	require.Len(t, report.Attempts, 3)
	require.Equal(t, GroupTarget, report.Attempts[0].Target)
	require.Empty(t, report.Failed())
}

func TestDispatch_ContinuesAfterFailures(t *testing.T) {
	sender := &fakeSender{fail: map[string]error{
		groupChat:   errors.New("group gone"),
		"123456789": errors.New("bot blocked"),
	}}
	a := sampleAppointment()
	a.Team = []string{"John Doe", "Jane Smith", "Mike Lee"}

	report := newTestDispatcher(t, sender).Dispatch(context.Background(), a)

	require.Len(t, sender.calls, 4)
	require.Equal(t, "654321987", sender.calls[3].chatID)
	failed := report.Failed()
	require.Len(t, failed, 2)
	require.Equal(t, GroupTarget, failed[0].Target)
	require.Equal(t, "John Doe", failed[1].Target)
	require.ErrorContains(t, failed[1].Err, "bot blocked")
}

func TestDispatch_UnknownMemberIsDeliveryFailure(t *testing.T) {
	sender := &fakeSender{}
	a := sampleAppointment()
	a.Team = []string{"Nobody", "Jane Smith"}

	report := newTestDispatcher(t, sender).Dispatch(context.Background(), a)

	require.Len(t, report.Attempts, 3)
	require.ErrorIs(t, report.Attempts[1].Err, ErrUnknownMember)
	require.Len(t, sender.calls, 2)
	require.Equal(t, "987654321", sender.calls[1].chatID)
}

func TestDispatch_EmptyTeamNotifiesGroupOnly(t *testing.T) {
	sender := &fakeSender{}
	a := sampleAppointment()
	a.Team = nil

	report := newTestDispatcher(t, sender).Dispatch(context.Background(), a)
	require.Len(t, report.Attempts, 1)
	require.Len(t, sender.calls, 1)
}

func TestNotify_WrapsError(t *testing.T) {
	sender := &fakeSender{fail: map[string]error{"x": errors.New("boom")}}
	err := newTestDispatcher(t, sender).Notify(context.Background(), "x", sampleAppointment())
	require.ErrorContains(t, err, "notify x")
	require.ErrorContains(t, err, "boom")
}

func TestFormatAppointment(t *testing.T) {
	text := FormatAppointment(sampleAppointment())
	require.Contains(t, text, "New Appointment Scheduled!")
	require.Contains(t, text, "Client: Acme Co")
	require.Contains(t, text, "Description: Kickoff")
	require.Contains(t, text, "Start: 2025-04-01 10:00")
	require.Contains(t, text, "End: 2025-04-01 11:00")
	require.Contains(t, text, "Location: https://maps/x")
	require.Contains(t, text, "Team: John Doe, Jane Smith")
}

func TestParseButtonPayload(t *testing.T) {
	kind, name, ok := ParseButtonPayload(PickPayload("Jane Smith"))
	require.True(t, ok)
	require.Equal(t, domain.EventPick, kind)
	require.Equal(t, "Jane Smith", name)

	kind, _, ok = ParseButtonPayload("done")
	require.True(t, ok)
	require.Equal(t, domain.EventDone, kind)

	for _, payload := range []string{"John Doe", "pick:", "pick: "} {
		_, _, ok = ParseButtonPayload(payload)
		require.False(t, ok, "payload=%q", payload)
	}
}
