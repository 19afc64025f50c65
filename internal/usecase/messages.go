package usecase

import (
	"fmt"
	"strings"

	"appointment-bot/internal/domain"
)

const (
	msgUnauthorized  = "❌ You are not authorized to add appointments."
	msgAskClientName = "📌 Enter the Client Name:"
	msgCanceled      = "❌ Appointment creation canceled."
	msgSaveFailed    = "⚠️ The appointment could not be saved. Send /done to try again or /cancel to discard it."

	payloadPickPrefix = "pick:"
	payloadDone       = "done"
	noTeam            = "(none)"
)

// prompts holds the question asked on entering each free-text state.
var prompts = map[domain.State]string{
	domain.StateClientName:    msgAskClientName,
	domain.StateDescription:   "📝 Enter the Appointment Description:",
	domain.StateStartDateTime: "📅 Enter the Start Date & Time (e.g., 2025-04-01 10:00):",
	domain.StateEndDateTime:   "⌛ Enter the End Date & Time (e.g., 2025-04-01 12:00):",
	domain.StateLocation:      "📍 Send the Google Maps Location Link:",
	domain.StateSelectTeam:    "👥 Select Team Members (tap the names). Tap Done or send /done when finished.",
}

// FormatAppointment renders the canonical notification text for a.
func FormatAppointment(a domain.Appointment) string {
	return strings.Join([]string{
		"📌 New Appointment Scheduled!",
		"",
		"👤 Client: " + a.ClientName,
		"📝 Description: " + a.Description,
		"📅 Start: " + a.StartDateTime,
		"⌛ End: " + a.EndDateTime,
		"📍 Location: " + a.Location,
		"👥 Team: " + joinTeam(a.Team),
	}, "\n")
}

func confirmationText(a domain.Appointment) string {
	return fmt.Sprintf("✅ Appointment #%s Confirmed!\n\n%s", a.ID, FormatAppointment(a))
}

// selectionText is recomputed from the scratch record after every pick.
func selectionText(team []string) string {
	return fmt.Sprintf("✅ Selected Team Members: %s\n\nTap more names, or Done when finished.", joinTeam(team))
}

func joinTeam(team []string) string {
	if len(team) == 0 {
		return noTeam
	}
	return strings.Join(team, ", ")
}

func teamKeyboard(dir *TeamDirectory) []domain.Button {
	members := dir.Members()
	buttons := make([]domain.Button, 0, len(members)+1)
	for _, m := range members {
		buttons = append(buttons, domain.Button{Label: m.Name, Payload: PickPayload(m.Name)})
	}
	return append(buttons, domain.Button{Label: "✅ Done", Payload: payloadDone})
}

// PickPayload is the button payload selecting the member name.
func PickPayload(name string) string {
	return payloadPickPrefix + name
}

// ParseButtonPayload maps a button payload back to an event kind.
// A pick carries the member name; unknown payloads and blank picks report ok=false.
func ParseButtonPayload(payload string) (kind domain.EventKind, name string, ok bool) {
	switch {
	case payload == payloadDone:
		return domain.EventDone, "", true
	case strings.HasPrefix(payload, payloadPickPrefix):
		name = strings.TrimPrefix(payload, payloadPickPrefix)
		if strings.TrimSpace(name) == "" {
			return "", "", false
		}
		return domain.EventPick, name, true
	default:
		return "", "", false
	}
}
