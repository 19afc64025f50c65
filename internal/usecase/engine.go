package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"appointment-bot/internal/domain"
)

// Messenger replies to the user who drives a conversation.
type Messenger interface {
	Send(ctx context.Context, chatID string, msg domain.OutboundMessage) (int64, error)
	Edit(ctx context.Context, chatID string, messageID int64, msg domain.OutboundMessage) error
}

// AppointmentAppender persists a confirmed appointment and returns its id.
type AppointmentAppender interface {
	Append(ctx context.Context, a domain.Appointment) (string, error)
}

// ConversationStore holds the scratch record of each in-flight conversation.
// Take removes and returns a record atomically: among concurrent callers,
// possibly in other processes, at most one gets ok=true.
type ConversationStore interface {
	Get(ctx context.Context, key string) (domain.Conversation, bool, error)
	Put(ctx context.Context, conv domain.Conversation) error
	Delete(ctx context.Context, key string) error
	Take(ctx context.Context, key string) (domain.Conversation, bool, error)
}

// Notifier fans a persisted appointment out to its recipients.
type Notifier interface {
	Dispatch(ctx context.Context, a domain.Appointment) DispatchReport
}

// step describes a free-text state: where the answer goes and what comes next.
type step struct {
	assign func(c *domain.Conversation, text string)
	next   domain.State
}

var steps = map[domain.State]step{
	domain.StateClientName: {
		assign: func(c *domain.Conversation, v string) { c.ClientName = v },
		next:   domain.StateDescription,
	},
	domain.StateDescription: {
		assign: func(c *domain.Conversation, v string) { c.Description = v },
		next:   domain.StateStartDateTime,
	},
	domain.StateStartDateTime: {
		assign: func(c *domain.Conversation, v string) { c.StartDateTime = v },
		next:   domain.StateEndDateTime,
	},
	domain.StateEndDateTime: {
		assign: func(c *domain.Conversation, v string) { c.EndDateTime = v },
		next:   domain.StateLocation,
	},
	domain.StateLocation: {
		assign: func(c *domain.Conversation, v string) { c.Location = v },
		next:   domain.StateSelectTeam,
	},
}

// Engine drives one appointment intake conversation per chat and user.
// Events for the same conversation are handled one at a time.
type Engine struct {
	gate         *AccessGate
	directory    *TeamDirectory
	appointments AppointmentAppender
	sessions     ConversationStore
	messenger    Messenger
	notifier     Notifier
	logger       *slog.Logger

	locks keyedMutex
}

func NewEngine(gate *AccessGate, directory *TeamDirectory, appointments AppointmentAppender, sessions ConversationStore, messenger Messenger, notifier Notifier, logger *slog.Logger) (*Engine, error) {
	if gate == nil {
		return nil, errors.New("usecase: access gate must not be nil")
	}
	if directory == nil {
		return nil, errors.New("usecase: team directory must not be nil")
	}
	if appointments == nil {
		return nil, errors.New("usecase: appointment store must not be nil")
	}
	if sessions == nil {
		return nil, errors.New("usecase: conversation store must not be nil")
	}
	if messenger == nil {
		return nil, errors.New("usecase: messenger must not be nil")
	}
	if notifier == nil {
		return nil, errors.New("usecase: notifier must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		gate:         gate,
		directory:    directory,
		appointments: appointments,
		sessions:     sessions,
		messenger:    messenger,
		notifier:     notifier,
		logger:       logger,
	}, nil
}

// Handle applies one inbound event to the sender's conversation.
// Events for users without a conversation are ignored, except start and cancel.
func (e *Engine) Handle(ctx context.Context, ev domain.Event) error {
	if strings.TrimSpace(ev.ChatID) == "" || strings.TrimSpace(ev.UserID) == "" {
		return newError(ErrorInvalidEvent, "missing_identity", nil)
	}
	key := domain.ConversationKey(ev.ChatID, ev.UserID)
	unlock := e.locks.lock(key)
	defer unlock()

	switch ev.Kind {
	case domain.EventStart:
		return e.start(ctx, key, ev)
	case domain.EventCancel:
		return e.cancel(ctx, key, ev)
	case domain.EventText, domain.EventPick, domain.EventDone:
	default:
		return newError(ErrorInvalidEvent, "unknown_event_kind", nil)
	}

	conv, ok, err := e.sessions.Get(ctx, key)
	if err != nil {
		return newError(ErrorSession, "session_load_error", err)
	}
	if !ok {
		return nil
	}

	switch ev.Kind {
	case domain.EventText:
		return e.answer(ctx, conv, ev.Text)
	case domain.EventPick:
		return e.pick(ctx, conv, ev)
	default:
		return e.commit(ctx, conv)
	}
}

func (e *Engine) start(ctx context.Context, key string, ev domain.Event) error {
	if !e.gate.Authorize(ev.UserID) {
		e.reply(ctx, ev.ChatID, domain.OutboundMessage{Text: msgUnauthorized})
		return newError(ErrorUnauthorized, "not_on_allow_list", nil)
	}
	conv := domain.Conversation{
		Key:    key,
		ChatID: ev.ChatID,
		UserID: ev.UserID,
		State:  domain.StateClientName,
	}
	if err := e.save(ctx, &conv); err != nil {
		return err
	}
	e.reply(ctx, ev.ChatID, domain.OutboundMessage{Text: prompts[domain.StateClientName]})
	return nil
}

func (e *Engine) cancel(ctx context.Context, key string, ev domain.Event) error {
	if err := e.sessions.Delete(ctx, key); err != nil {
		return newError(ErrorSession, "session_delete_error", err)
	}
	e.reply(ctx, ev.ChatID, domain.OutboundMessage{Text: msgCanceled})
	return nil
}

func (e *Engine) answer(ctx context.Context, conv domain.Conversation, text string) error {
	if conv.State == domain.StateSelectTeam {
		return e.showSelection(ctx, conv)
	}
	st, ok := steps[conv.State]
	if !ok {
		return newError(ErrorInternal, "unknown_state", nil)
	}
	st.assign(&conv, text)
	conv.State = st.next

	if conv.State == domain.StateSelectTeam {
		conv.SelectedTeam = []string{}
		return e.showSelection(ctx, conv)
	}
	if err := e.save(ctx, &conv); err != nil {
		return err
	}
	e.reply(ctx, conv.ChatID, domain.OutboundMessage{Text: prompts[conv.State]})
	return nil
}

// showSelection sends a fresh team keyboard and remembers its message id.
func (e *Engine) showSelection(ctx context.Context, conv domain.Conversation) error {
	text := prompts[domain.StateSelectTeam]
	if len(conv.SelectedTeam) > 0 {
		text = selectionText(conv.SelectedTeam)
	}
	conv.SelectionMessage = e.reply(ctx, conv.ChatID, domain.OutboundMessage{
		Text:    text,
		Buttons: teamKeyboard(e.directory),
	})
	return e.save(ctx, &conv)
}

func (e *Engine) pick(ctx context.Context, conv domain.Conversation, ev domain.Event) error {
	if conv.State != domain.StateSelectTeam {
		return nil
	}
	if conv.Pick(ev.Text) {
		if err := e.save(ctx, &conv); err != nil {
			return err
		}
	}

	msg := domain.OutboundMessage{Text: selectionText(conv.SelectedTeam), Buttons: teamKeyboard(e.directory)}
	messageID := ev.MessageID
	if messageID == 0 {
		messageID = conv.SelectionMessage
	}
	if messageID == 0 {
		return e.showSelection(ctx, conv)
	}
	err := e.messenger.Edit(ctx, conv.ChatID, messageID, msg)
	if err == nil {
		return nil
	}
	e.logger.Warn("selection edit failed", "chat_id", conv.ChatID, "message_id", messageID, "err", err)
	return e.showSelection(ctx, conv)
}

// commit claims the scratch record, then persists the appointment before any
// notification is attempted. A record claimed elsewhere is not committed again.
func (e *Engine) commit(ctx context.Context, conv domain.Conversation) error {
	if conv.State != domain.StateSelectTeam {
		return nil
	}
	claimed, ok, err := e.sessions.Take(ctx, conv.Key)
	if err != nil {
		return newError(ErrorSession, "session_claim_error", err)
	}
	if !ok {
		e.logger.Info("conversation already committed", "key", conv.Key)
		return nil
	}
	if claimed.State != domain.StateSelectTeam {
		e.restore(ctx, claimed)
		return nil
	}

	appt := claimed.Appointment()
	id, err := e.appointments.Append(ctx, appt)
	if err != nil {
		e.restore(ctx, claimed)
		e.reply(ctx, claimed.ChatID, domain.OutboundMessage{Text: msgSaveFailed})
		return newError(ErrorStorageWrite, "append_failed", err)
	}
	appt.ID = id

	e.reply(ctx, conv.ChatID, domain.OutboundMessage{Text: confirmationText(appt)})

	report := e.notifier.Dispatch(ctx, appt)
	e.logger.Info("appointment committed",
		"appointment_id", id,
		"team_size", len(appt.Team),
		"deliveries", len(report.Attempts),
		"failed_deliveries", len(report.Failed()),
	)
	return nil
}

// restore puts a claimed record back so the user can retry or cancel.
func (e *Engine) restore(ctx context.Context, conv domain.Conversation) {
	if err := e.sessions.Put(ctx, conv); err != nil {
		e.logger.Warn("conversation restore failed", "key", conv.Key, "err", err)
	}
}

func (e *Engine) save(ctx context.Context, conv *domain.Conversation) error {
	conv.LastActivityEpoch = now().Unix()
	if err := e.sessions.Put(ctx, *conv); err != nil {
		return newError(ErrorSession, "session_write_error", err)
	}
	return nil
}

// reply is best effort: a failed reply is logged and yields message id 0.
func (e *Engine) reply(ctx context.Context, chatID string, msg domain.OutboundMessage) int64 {
	id, err := e.messenger.Send(ctx, chatID, msg)
	if err != nil {
		e.logger.Warn("reply failed", "chat_id", chatID, "err", err)
		return 0
	}
	return id
}

var now = time.Now

// keyedMutex serializes work per key and frees idle entries.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refLock
}

type refLock struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*refLock)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &refLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
