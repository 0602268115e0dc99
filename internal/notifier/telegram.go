package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/agigante80/VPNSentinel-sub000/internal/vsenthttp"
)

// Transport is the chat transport used by the notifier and the bot.
type Transport interface {
	// Send delivers one message to the configured chat.
	Send(ctx context.Context, text string) (err error)

	// Receive long-polls for inbound updates with IDs greater than offset.
	Receive(ctx context.Context, offset int64) (ups []*Update, err error)
}

// Update is one inbound chat message.
type Update struct {
	Text   string
	ID     int64
	ChatID int64
}

// Telegram Bot API constants.
const (
	telegramAPIBase = "https://api.telegram.org"

	// telegramPollTimeout is the long-poll timeout requested from getUpdates.
	telegramPollTimeout = 30 * time.Second

	// telegramMaxRespSize caps the size of a single API response.
	telegramMaxRespSize = 1 * 1024 * 1024
)

// Telegram is a [Transport] implementation on the Telegram Bot API.
type Telegram struct {
	http   *vsenthttp.Client
	base   *url.URL
	chatID int64
}

// TelegramConfig is the Telegram transport configuration structure.
type TelegramConfig struct {
	// BaseURL overrides the API endpoint, for tests.  Empty means the
	// production endpoint.
	BaseURL string

	// Token is the bot token.  It must not be empty.
	Token string

	// ChatID is the chat that receives notifications and whose commands the
	// bot answers.  It must not be zero.
	ChatID int64
}

// NewTelegram returns a new properly initialized *Telegram.  c must not be
// nil.
func NewTelegram(c *TelegramConfig) (t *Telegram, err error) {
	rawBase := c.BaseURL
	if rawBase == "" {
		rawBase = telegramAPIBase
	}

	base, err := url.Parse(rawBase + "/bot" + c.Token + "/")
	if err != nil {
		return nil, fmt.Errorf("telegram: parsing base url: %w", err)
	}

	return &Telegram{
		// The client timeout must exceed the long-poll timeout.
		http:   vsenthttp.NewClient(&vsenthttp.ClientConfig{Timeout: telegramPollTimeout + 5*time.Second}),
		base:   base,
		chatID: c.ChatID,
	}, nil
}

// type check
var _ Transport = (*Telegram)(nil)

// sendMessageReq is the sendMessage request body.
type sendMessageReq struct {
	ChatID    int64  `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// apiResp is the envelope of every Bot API response.
type apiResp struct {
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
	OK          bool            `json:"ok"`
}

// Send implements the [Transport] interface for *Telegram.
func (t *Telegram) Send(ctx context.Context, text string) (err error) {
	reqBody := &sendMessageReq{
		ChatID:    t.chatID,
		Text:      text,
		ParseMode: "HTML",
	}

	_, err = t.call(ctx, "sendMessage", reqBody)
	if err != nil {
		return fmt.Errorf("telegram: sending message: %w", err)
	}

	return nil
}

// getUpdatesReq is the getUpdates request body.
type getUpdatesReq struct {
	Offset  int64 `json:"offset"`
	Timeout int64 `json:"timeout"`
}

// tgUpdate is one update in a getUpdates response.
type tgUpdate struct {
	Message *struct {
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		Text string `json:"text"`
	} `json:"message"`
	ID int64 `json:"update_id"`
}

// Receive implements the [Transport] interface for *Telegram.
func (t *Telegram) Receive(ctx context.Context, offset int64) (ups []*Update, err error) {
	reqBody := &getUpdatesReq{
		Offset:  offset,
		Timeout: int64(telegramPollTimeout.Seconds()),
	}

	raw, err := t.call(ctx, "getUpdates", reqBody)
	if err != nil {
		return nil, fmt.Errorf("telegram: receiving updates: %w", err)
	}

	var tgUps []*tgUpdate
	err = json.Unmarshal(raw, &tgUps)
	if err != nil {
		return nil, fmt.Errorf("telegram: decoding updates: %w", err)
	}

	for _, u := range tgUps {
		up := &Update{ID: u.ID}
		if u.Message != nil {
			up.Text = u.Message.Text
			up.ChatID = u.Message.Chat.ID
		}

		ups = append(ups, up)
	}

	return ups, nil
}

// call performs one Bot API method call and returns the raw result.
func (t *Telegram) call(ctx context.Context, method string, reqBody any) (res json.RawMessage, err error) {
	u := t.base.JoinPath(method)

	b, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	resp, err := t.http.Post(ctx, u, vsenthttp.HdrValApplicationJSON, bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", method, err)
	}
	defer func() { err = errors.WithDeferred(err, resp.Body.Close()) }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, telegramMaxRespSize))
	if err != nil {
		return nil, fmt.Errorf("reading %s response: %w", method, err)
	}

	env := &apiResp{}
	err = json.Unmarshal(body, env)
	if err != nil {
		return nil, fmt.Errorf("decoding %s response: %w", method, err)
	}

	if !env.OK {
		return nil, fmt.Errorf("%s: api error: %s", method, env.Description)
	}

	return env.Result, nil
}
