// Package telegram is a minimal Bot API client covering the calls the
// intake pipeline needs: posting text and media, editing the posted message
// to carry its public identifier, and the forward/read/delete sequence used
// to build reply previews.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultBaseURL is the production Bot API host.
const DefaultBaseURL = "https://api.telegram.org"

var (
	// ErrReplyNotFound reports that a post was marked as a reply to a
	// message that no longer exists.
	ErrReplyNotFound = errors.New("telegram: reply target not found")

	// ErrMessageNotFound reports that a referenced message does not exist.
	ErrMessageNotFound = errors.New("telegram: message not found")
)

// APIError is a Bot API rejection that maps to no distinguished case.
type APIError struct {
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram: api error %d: %s", e.Code, e.Description)
}

// Client talks to the Bot API over plain HTTP.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a different API host. Used by tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// NewClient builds a client for the given bot token.
func NewClient(token string, opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Message is the subset of the Bot API message object the pipeline reads.
// MessageID is assigned by the platform, unique and strictly increasing
// within a chat; it is the single source of truth for public identifiers.
type Message struct {
	MessageID int64       `json:"message_id"`
	Text      string      `json:"text"`
	Caption   string      `json:"caption"`
	Photo     []PhotoSize `json:"photo"`
	Audio     *FileRef    `json:"audio"`
	Video     *FileRef    `json:"video"`
	Document  *FileRef    `json:"document"`
}

// PhotoSize is one rendition of a photo attachment.
type PhotoSize struct {
	FileID string `json:"file_id"`
}

// FileRef is a non-photo attachment reference.
type FileRef struct {
	FileID   string `json:"file_id"`
	FileName string `json:"file_name,omitempty"`
}

// Body returns the text for text messages and the caption for media ones.
func (m *Message) Body() string {
	if m.Text != "" {
		return m.Text
	}
	return m.Caption
}

// AttachmentLabel returns a short label for the message's attachment kind,
// or "" for text-only messages.
func (m *Message) AttachmentLabel() string {
	switch {
	case len(m.Photo) > 0:
		return "photo"
	case m.Audio != nil:
		return "audio"
	case m.Video != nil:
		return "video"
	case m.Document != nil:
		return "document"
	}
	return ""
}

func (c *Client) call(ctx context.Context, method, contentType string, body io.Reader, out any) error {
	endpoint := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return fmt.Errorf("telegram: %s: %w", method, err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: %s: %w", method, err)
	}
	defer resp.Body.Close()

	var envelope struct {
		OK          bool            `json:"ok"`
		Result      json.RawMessage `json:"result"`
		Description string          `json:"description"`
		ErrorCode   int             `json:"error_code"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("telegram: %s: decode response: %w", method, err)
	}
	if !envelope.OK {
		return classify(&APIError{Code: envelope.ErrorCode, Description: envelope.Description})
	}
	if out != nil && len(envelope.Result) > 0 {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return fmt.Errorf("telegram: %s: decode result: %w", method, err)
		}
	}
	return nil
}

// classify maps known Bot API error descriptions onto sentinel errors so
// callers can distinguish a vanished reply target from a generic upstream
// failure.
func classify(apiErr *APIError) error {
	desc := strings.ToLower(apiErr.Description)
	switch {
	case strings.Contains(desc, "repl") && strings.Contains(desc, "not found"):
		return fmt.Errorf("%w: %s", ErrReplyNotFound, apiErr.Description)
	case strings.Contains(desc, "not found"):
		return fmt.Errorf("%w: %s", ErrMessageNotFound, apiErr.Description)
	}
	return apiErr
}

func (c *Client) form(ctx context.Context, method string, form url.Values, out any) error {
	return c.call(ctx, method, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()), out)
}

// SendMessage posts text to a chat. Link previews are disabled: the channel
// is a feed, not a link hub.
func (c *Client) SendMessage(ctx context.Context, chatID, text string, replyTo int64) (*Message, error) {
	form := url.Values{
		"chat_id":                  {chatID},
		"text":                     {text},
		"parse_mode":               {"HTML"},
		"disable_web_page_preview": {"true"},
	}
	if replyTo > 0 {
		form.Set("reply_to_message_id", strconv.FormatInt(replyTo, 10))
	}
	var msg Message
	if err := c.form(ctx, "sendMessage", form, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *Client) sendUpload(ctx context.Context, method, field, chatID, caption, name string, data []byte, title string, replyTo int64) (*Message, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	w.WriteField("chat_id", chatID)
	if caption != "" {
		w.WriteField("caption", caption)
		w.WriteField("parse_mode", "HTML")
	}
	if title != "" {
		w.WriteField("title", title)
	}
	if replyTo > 0 {
		w.WriteField("reply_to_message_id", strconv.FormatInt(replyTo, 10))
	}
	fw, err := w.CreateFormFile(field, name)
	if err != nil {
		return nil, fmt.Errorf("telegram: %s: %w", method, err)
	}
	if _, err := fw.Write(data); err != nil {
		return nil, fmt.Errorf("telegram: %s: %w", method, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("telegram: %s: %w", method, err)
	}

	var msg Message
	if err := c.call(ctx, method, w.FormDataContentType(), &buf, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// SendPhoto posts an image with an optional caption.
func (c *Client) SendPhoto(ctx context.Context, chatID, caption, name string, data []byte, replyTo int64) (*Message, error) {
	return c.sendUpload(ctx, "sendPhoto", "photo", chatID, caption, name, data, "", replyTo)
}

// SendAudio posts an audio file; title is shown as the track name.
func (c *Client) SendAudio(ctx context.Context, chatID, caption, name string, data []byte, title string, replyTo int64) (*Message, error) {
	return c.sendUpload(ctx, "sendAudio", "audio", chatID, caption, name, data, title, replyTo)
}

// SendDocument posts any other file as a document.
func (c *Client) SendDocument(ctx context.Context, chatID, caption, name string, data []byte, replyTo int64) (*Message, error) {
	return c.sendUpload(ctx, "sendDocument", "document", chatID, caption, name, data, "", replyTo)
}

// EditMessageText rewrites the text of a posted text message.
func (c *Client) EditMessageText(ctx context.Context, chatID string, messageID int64, text string) error {
	return c.form(ctx, "editMessageText", url.Values{
		"chat_id":                  {chatID},
		"message_id":               {strconv.FormatInt(messageID, 10)},
		"text":                     {text},
		"parse_mode":               {"HTML"},
		"disable_web_page_preview": {"true"},
	}, nil)
}

// EditMessageCaption rewrites the caption of a posted media message.
func (c *Client) EditMessageCaption(ctx context.Context, chatID string, messageID int64, caption string) error {
	return c.form(ctx, "editMessageCaption", url.Values{
		"chat_id":    {chatID},
		"message_id": {strconv.FormatInt(messageID, 10)},
		"caption":    {caption},
		"parse_mode": {"HTML"},
	}, nil)
}

// ForwardMessage copies a message into another chat and returns the copy.
func (c *Client) ForwardMessage(ctx context.Context, toChatID, fromChatID string, messageID int64) (*Message, error) {
	var msg Message
	err := c.form(ctx, "forwardMessage", url.Values{
		"chat_id":      {toChatID},
		"from_chat_id": {fromChatID},
		"message_id":   {strconv.FormatInt(messageID, 10)},
	}, &msg)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// DeleteMessage removes a message from a chat.
func (c *Client) DeleteMessage(ctx context.Context, chatID string, messageID int64) error {
	return c.form(ctx, "deleteMessage", url.Values{
		"chat_id":    {chatID},
		"message_id": {strconv.FormatInt(messageID, 10)},
	}, nil)
}
