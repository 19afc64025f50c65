package domain

import "slices"

// State is a step of the appointment intake dialogue.
type State string

const (
	StateClientName    State = "CLIENT_NAME"
	StateDescription   State = "DESCRIPTION"
	StateStartDateTime State = "START_DATETIME"
	StateEndDateTime   State = "END_DATETIME"
	StateLocation      State = "LOCATION"
	StateSelectTeam    State = "SELECT_TEAM"
)

// Conversation is the scratch record of one in-flight intake dialogue.
// It is never persisted as an Appointment until the team selection is done.
type Conversation struct {
	Key               string   `json:"key"`
	ChatID            string   `json:"chatId"`
	UserID            string   `json:"userId"`
	State             State    `json:"state"`
	ClientName        string   `json:"clientName"`
	Description       string   `json:"description"`
	StartDateTime     string   `json:"startDatetime"`
	EndDateTime       string   `json:"endDatetime"`
	Location          string   `json:"location"`
	SelectedTeam      []string `json:"selectedTeam"`
	SelectionMessage  int64    `json:"selectionMessageId,omitempty"`
	LastActivityEpoch int64    `json:"lastActivity"`
}

// ConversationKey identifies a conversation per chat and per user.
func ConversationKey(chatID, userID string) string {
	return chatID + ":" + userID
}

// Pick adds name to the selected team unless it is already selected.
// It reports whether the selection changed.
func (c *Conversation) Pick(name string) bool {
	if slices.Contains(c.SelectedTeam, name) {
		return false
	}
	c.SelectedTeam = append(c.SelectedTeam, name)
	return true
}

// Appointment builds the record to persist from the scratch fields.
func (c *Conversation) Appointment() Appointment {
	team := make([]string, len(c.SelectedTeam))
	copy(team, c.SelectedTeam)
	return Appointment{
		ClientName:    c.ClientName,
		Description:   c.Description,
		StartDateTime: c.StartDateTime,
		EndDateTime:   c.EndDateTime,
		Location:      c.Location,
		Team:          team,
	}
}
