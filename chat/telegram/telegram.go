/*
Package telegram implements chat.Transport over the Telegram Bot API.

Deliberately thin: long-poll getUpdates plus the three send/retract calls
the loop needs. Messages go out with Markdown parse mode, matching the
dialogue texts in sale/messages.go.
*/
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/vendbot/sale-engine/chat"
	"github.com/vendbot/sale-engine/sale"
)

const defaultBaseURL = "https://api.telegram.org"

// pollTimeout is the getUpdates long-poll window in seconds.
const pollTimeout = 30

// Client is a minimal Bot API client.
type Client struct {
	token   string
	baseURL string
	httpc   *http.Client
}

func New(token string) *Client {
	return &Client{
		token:   token,
		baseURL: defaultBaseURL,
		httpc:   &http.Client{},
	}
}

// NewWithBaseURL is used by tests to point the client at a stub server.
func NewWithBaseURL(token, baseURL string) *Client {
	c := New(token)
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

// =============================================================================
// WIRE TYPES
// =============================================================================

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

type update struct {
	UpdateID int64    `json:"update_id"`
	Message  *message `json:"message"`
}

type message struct {
	MessageID int64  `json:"message_id"`
	Text      string `json:"text"`
	Chat      struct {
		ID int64 `json:"id"`
	} `json:"chat"`
	From *struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	} `json:"from"`
}

type replyMarkup struct {
	Keyboard       [][]keyButton `json:"keyboard,omitempty"`
	ResizeKeyboard bool          `json:"resize_keyboard,omitempty"`
	RemoveKeyboard bool          `json:"remove_keyboard,omitempty"`
}

type keyButton struct {
	Text string `json:"text"`
}

func (m *message) senderName() string {
	if m.From == nil {
		return ""
	}
	if m.From.LastName == "" {
		return m.From.FirstName
	}
	return m.From.FirstName + " " + m.From.LastName
}

// =============================================================================
// TRANSPORT IMPLEMENTATION
// =============================================================================

// Updates long-polls getUpdates and feeds messages with text into the
// returned channel until ctx is canceled.
func (c *Client) Updates(ctx context.Context) (<-chan chat.Inbound, error) {
	out := make(chan chat.Inbound)
	go func() {
		defer close(out)
		var offset int64
		for ctx.Err() == nil {
			var updates []update
			err := c.call(ctx, "getUpdates", map[string]any{
				"offset":          offset,
				"timeout":         pollTimeout,
				"allowed_updates": []string{"message"},
			}, &updates)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				continue
			}
			for _, u := range updates {
				if u.UpdateID >= offset {
					offset = u.UpdateID + 1
				}
				if u.Message == nil || u.Message.Text == "" {
					continue
				}
				in := chat.Inbound{
					CustomerID: sale.CustomerID(u.Message.Chat.ID),
					Name:       u.Message.senderName(),
					Text:       u.Message.Text,
				}
				select {
				case out <- in:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (c *Client) Send(ctx context.Context, out chat.Outgoing) (int64, error) {
	payload := map[string]any{
		"chat_id":    int64(out.CustomerID),
		"text":       out.Text,
		"parse_mode": "Markdown",
	}
	if len(out.Keyboard) > 0 {
		rows := make([][]keyButton, len(out.Keyboard))
		for i, row := range out.Keyboard {
			for _, label := range row {
				rows[i] = append(rows[i], keyButton{Text: label})
			}
		}
		payload["reply_markup"] = replyMarkup{Keyboard: rows, ResizeKeyboard: true}
	} else if out.RemoveKeyboard {
		payload["reply_markup"] = replyMarkup{RemoveKeyboard: true}
	}

	var sent message
	if err := c.call(ctx, "sendMessage", payload, &sent); err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

func (c *Client) DeleteMessage(ctx context.Context, id sale.CustomerID, messageID int64) error {
	var ok bool
	return c.call(ctx, "deleteMessage", map[string]any{
		"chat_id":    int64(id),
		"message_id": messageID,
	}, &ok)
}

// SendDocument uploads a local file via multipart form data.
func (c *Client) SendDocument(ctx context.Context, id sale.CustomerID, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open document %s: %w", path, err)
	}
	defer f.Close()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if err := w.WriteField("chat_id", fmt.Sprintf("%d", int64(id))); err != nil {
		return err
	}
	part, err := w.CreateFormFile("document", filepath.Base(path))
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("read document %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL("sendDocument"), &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeAPIResponse(resp.Body, nil)
}

// =============================================================================
// LOW-LEVEL CALL
// =============================================================================

func (c *Client) methodURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
}

func (c *Client) call(ctx context.Context, method string, payload any, result any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL(method), bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeAPIResponse(resp.Body, result)
}

func decodeAPIResponse(r io.Reader, result any) error {
	var api apiResponse
	if err := json.NewDecoder(r).Decode(&api); err != nil {
		return fmt.Errorf("decode bot api response: %w", err)
	}
	if !api.OK {
		return fmt.Errorf("bot api error: %s", api.Description)
	}
	if result != nil && len(api.Result) > 0 {
		if err := json.Unmarshal(api.Result, result); err != nil {
			return fmt.Errorf("decode bot api result: %w", err)
		}
	}
	return nil
}
