package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"appointment-bot/internal/domain"
)

const defaultBaseURL = "https://api.telegram.org"

// errNotModified is the Bot API description for an edit that changes nothing.
const errNotModified = "message is not modified"

type inlineButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

type replyMarkup struct {
	InlineKeyboard [][]inlineButton `json:"inline_keyboard"`
}

type sendMessageRequest struct {
	ChatID      string       `json:"chat_id"`
	Text        string       `json:"text"`
	ReplyMarkup *replyMarkup `json:"reply_markup,omitempty"`
}

type editMessageTextRequest struct {
	ChatID      string       `json:"chat_id"`
	MessageID   int64        `json:"message_id"`
	Text        string       `json:"text"`
	ReplyMarkup *replyMarkup `json:"reply_markup,omitempty"`
}

type answerCallbackQueryRequest struct {
	CallbackQueryID string `json:"callback_query_id"`
	Text            string `json:"text,omitempty"`
}

// apiResponse is the envelope every Bot API method returns.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
}

type sentMessage struct {
	MessageID int64 `json:"message_id"`
}

// tokenPayload is the expected JSON shape stored in SSM for the bot token.
type tokenPayload struct {
	Token string `json:"token"`
}

type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// APIError is a failed Bot API call: a non-2xx status or ok=false.
type APIError struct {
	StatusCode  int
	Method      string
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram: %s failed with status %d: %s", e.Method, e.StatusCode, e.Description)
}

func (e *APIError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client is a focused Telegram Bot API client for the webhook bot.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	getter      Getter
	paramPrefix string

	tokenMu sync.Mutex
	token   string
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a Client whose bot token is read from SSM on first use
// and reused for the lifetime of the process.
func NewClient(ps Getter, paramPrefix string, opts ...Option) (*Client, error) {
	if ps == nil {
		return nil, errors.New("telegram: paramstore getter must not be nil")
	}
	paramPrefix = strings.TrimRight(strings.TrimSpace(paramPrefix), "/")
	if paramPrefix == "" {
		return nil, errors.New("telegram: parameter prefix must not be empty")
	}
	c := &Client{
		baseURL:     defaultBaseURL,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		getter:      ps,
		paramPrefix: paramPrefix,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// TokenParameterName is the SSM name holding the bot token JSON.
func TokenParameterName(paramPrefix string) string {
	return strings.TrimRight(paramPrefix, "/") + "/telegram_token"
}

// resolveToken caches the token after the first successful fetch.
// A failed fetch is retried on the next call.
func (c *Client) resolveToken(ctx context.Context) (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()
	if c.token != "" {
		return c.token, nil
	}
	token, err := fetchTokenFromParamStore(ctx, c.getter, TokenParameterName(c.paramPrefix))
	if err != nil {
		return "", err
	}
	c.token = token
	return token, nil
}

func (c *Client) resolvedHTTPClient() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return &http.Client{Timeout: 10 * time.Second}
}

func methodURL(baseURL, token, method string) string {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	return base + "/bot" + token + "/" + method
}

// SendMessage posts text to chatID and returns the new message id.
func (c *Client) SendMessage(ctx context.Context, chatID, text string, buttons []domain.Button) (int64, error) {
	if strings.TrimSpace(chatID) == "" {
		return 0, errors.New("telegram: chat id must not be empty")
	}
	raw, err := c.call(ctx, "sendMessage", sendMessageRequest{
		ChatID:      chatID,
		Text:        text,
		ReplyMarkup: keyboard(buttons),
	})
	if err != nil {
		return 0, err
	}
	var msg sentMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return 0, fmt.Errorf("telegram: decode sendMessage result: %w", err)
	}
	return msg.MessageID, nil
}

// EditMessageText replaces the text and keyboard of an earlier message.
// An edit that changes nothing is not an error.
func (c *Client) EditMessageText(ctx context.Context, chatID string, messageID int64, text string, buttons []domain.Button) error {
	if messageID <= 0 {
		return errors.New("telegram: message id must be positive")
	}
	_, err := c.call(ctx, "editMessageText", editMessageTextRequest{
		ChatID:      chatID,
		MessageID:   messageID,
		Text:        text,
		ReplyMarkup: keyboard(buttons),
	})
	var apiErr *APIError
	if errors.As(err, &apiErr) && strings.Contains(apiErr.Description, errNotModified) {
		return nil
	}
	return err
}

// AnswerCallbackQuery stops the client-side spinner on a pressed button.
func (c *Client) AnswerCallbackQuery(ctx context.Context, callbackQueryID string) error {
	if strings.TrimSpace(callbackQueryID) == "" {
		return errors.New("telegram: callback query id must not be empty")
	}
	_, err := c.call(ctx, "answerCallbackQuery", answerCallbackQueryRequest{CallbackQueryID: callbackQueryID})
	return err
}

// Send implements usecase.Messenger.
func (c *Client) Send(ctx context.Context, chatID string, msg domain.OutboundMessage) (int64, error) {
	return c.SendMessage(ctx, chatID, msg.Text, msg.Buttons)
}

// Edit implements usecase.Messenger.
func (c *Client) Edit(ctx context.Context, chatID string, messageID int64, msg domain.OutboundMessage) error {
	return c.EditMessageText(ctx, chatID, messageID, msg.Text, msg.Buttons)
}

// SendText implements usecase.Sender.
func (c *Client) SendText(ctx context.Context, chatID, text string) error {
	_, err := c.SendMessage(ctx, chatID, text, nil)
	return err
}

// keyboard lays out one button per row.
func keyboard(buttons []domain.Button) *replyMarkup {
	if len(buttons) == 0 {
		return nil
	}
	rows := make([][]inlineButton, 0, len(buttons))
	for _, b := range buttons {
		rows = append(rows, []inlineButton{{Text: b.Label, CallbackData: b.Payload}})
	}
	return &replyMarkup{InlineKeyboard: rows}
}

func (c *Client) call(ctx context.Context, method string, payload any) (json.RawMessage, error) {
	token, err := c.resolveToken(ctx)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("telegram: marshal %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, methodURL(c.baseURL, token, method), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("telegram: create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.resolvedHTTPClient().Do(req)
	if err != nil {
		// the URL carries the token; keep it out of the error
		return nil, fmt.Errorf("telegram: %s request failed: %w", method, unwrapURLError(err))
	}
	defer func() { _ = res.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("telegram: read %s response: %w", method, err)
	}

	var envelope apiResponse
	decErr := json.Unmarshal(raw, &envelope)
	if res.StatusCode < 200 || res.StatusCode >= 300 || decErr != nil || !envelope.OK {
		desc := envelope.Description
		if desc == "" {
			desc = strings.TrimSpace(string(raw[:min(len(raw), 4096)]))
		}
		return nil, &APIError{StatusCode: res.StatusCode, Method: method, Description: desc}
	}
	return envelope.Result, nil
}

func unwrapURLError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		return urlErr.Err
	}
	return err
}

func fetchTokenFromParamStore(ctx context.Context, getter Getter, name string) (string, error) {
	if getter == nil {
		return "", errors.New("telegram: paramstore getter is nil")
	}
	raw, err := getter.GetParameter(ctx, name)
	if err != nil {
		return "", fmt.Errorf("telegram: fetch token from paramstore: %w", err)
	}
	var tp tokenPayload
	if err := json.Unmarshal([]byte(raw), &tp); err != nil {
		return "", fmt.Errorf("telegram: unmarshal paramstore token value as JSON: %w", err)
	}
	if strings.TrimSpace(tp.Token) == "" {
		return "", errors.New("telegram: bot token is empty")
	}
	return tp.Token, nil
}
