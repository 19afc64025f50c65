package handler

import (
	"strconv"
	"strings"

	"appointment-bot/internal/domain"
	"appointment-bot/internal/usecase"
)

// update is the subset of a Telegram Update the bot reads.
type update struct {
	UpdateID      int64          `json:"update_id"`
	Message       *message       `json:"message,omitempty"`
	CallbackQuery *callbackQuery `json:"callback_query,omitempty"`
}

type message struct {
	MessageID int64  `json:"message_id"`
	From      *user  `json:"from,omitempty"`
	Chat      chat   `json:"chat"`
	Text      string `json:"text"`
}

type callbackQuery struct {
	ID      string   `json:"id"`
	From    user     `json:"from"`
	Message *message `json:"message,omitempty"`
	Data    string   `json:"data"`
}

type user struct {
	ID int64 `json:"id"`
}

type chat struct {
	ID int64 `json:"id"`
}

var commands = map[string]domain.EventKind{
	"add_appointment": domain.EventStart,
	"start":           domain.EventStart,
	"cancel":          domain.EventCancel,
	"done":            domain.EventDone,
}

// toEvent maps an update to an engine event. ok is false for updates the bot ignores.
// Free text is passed on verbatim.
func (u update) toEvent() (domain.Event, bool) {
	switch {
	case u.CallbackQuery != nil:
		return u.CallbackQuery.toEvent()
	case u.Message != nil:
		return u.Message.toEvent()
	default:
		return domain.Event{}, false
	}
}

func (m message) toEvent() (domain.Event, bool) {
	if m.From == nil || m.Text == "" {
		return domain.Event{}, false
	}
	ev := domain.Event{
		ChatID: formatID(m.Chat.ID),
		UserID: formatID(m.From.ID),
	}
	if name, isCommand := parseCommand(m.Text); isCommand {
		kind, known := commands[name]
		if !known {
			return domain.Event{}, false
		}
		ev.Kind = kind
		return ev, true
	}
	ev.Kind = domain.EventText
	ev.Text = m.Text
	return ev, true
}

func (q callbackQuery) toEvent() (domain.Event, bool) {
	if q.Message == nil {
		return domain.Event{}, false
	}
	kind, name, ok := usecase.ParseButtonPayload(q.Data)
	if !ok {
		return domain.Event{}, false
	}
	return domain.Event{
		Kind:      kind,
		ChatID:    formatID(q.Message.Chat.ID),
		UserID:    formatID(q.From.ID),
		Text:      name,
		MessageID: q.Message.MessageID,
	}, true
}

// parseCommand returns the command name of "/name@bot args", lowercased.
func parseCommand(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", false
	}
	name := strings.Fields(text)[0][1:]
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	return strings.ToLower(name), true
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
