package domain

// EventKind classifies an inbound event.
type EventKind string

const (
	EventStart  EventKind = "start"
	EventCancel EventKind = "cancel"
	EventDone   EventKind = "done"
	EventText   EventKind = "text"
	EventPick   EventKind = "pick"
)

// Event is a transport-agnostic inbound signal from one user in one chat.
type Event struct {
	Kind   EventKind
	ChatID string
	UserID string
	// Text carries the free text for EventText and the member name for EventPick.
	Text string
	// MessageID is the id of the message a button press originated from.
	MessageID int64
}

// Button is an inline choice rendered under an outbound message.
type Button struct {
	Label   string
	Payload string
}

// OutboundMessage is a text with optional one-per-row inline buttons.
type OutboundMessage struct {
	Text    string
	Buttons []Button
}
