// Package telegram is the thin transport client the dispatch core consumes:
// long-poll update fetching plus the handful of outbound calls the core and
// its plugins exercise directly. The remaining bot-API endpoints are the
// plugins' own business.
package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ferrybot/ferry/core"
)

const (
	defaultBaseURL = "https://api.telegram.org"
	callTimeout    = 10 * time.Second
	pollSlack      = 5 * time.Second // headroom over the long-poll timeout
)

// Client is a minimal Telegram Bot API client.
type Client struct {
	token   string
	client  *http.Client
	baseURL string
}

// New creates a client for the given bot token.
func New(token string) *Client {
	return &Client{
		token:   token,
		client:  &http.Client{},
		baseURL: defaultBaseURL,
	}
}

// WithBaseURL overrides the API base URL (for testing).
func (c *Client) WithBaseURL(u string) *Client {
	c.baseURL = strings.TrimSuffix(u, "/")
	return c
}

// APIURL is the token-qualified endpoint root, handed to plugin processes.
func (c *Client) APIURL() string {
	return c.baseURL + "/bot" + c.token
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
}

// FetchUpdates long-polls getUpdates. An ok=false reply is an explicit
// upstream-reported failure and surfaces as an error, distinct from an
// empty successful batch.
func (c *Client) FetchUpdates(ctx context.Context, offset int64, limit, timeout int) ([]core.RawUpdate, error) {
	params := url.Values{}
	params.Set("offset", strconv.FormatInt(offset, 10))
	params.Set("limit", strconv.Itoa(limit))
	params.Set("timeout", strconv.Itoa(timeout))

	ctx, cancel := context.WithTimeout(ctx, time.Duration(timeout)*time.Second+pollSlack)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.APIURL()+"/getUpdates?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("getUpdates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("getUpdates status: %d", resp.StatusCode)
	}

	var apiResp apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode getUpdates response: %w", err)
	}
	if !apiResp.OK {
		return nil, fmt.Errorf("api returned ok=false: %s", apiResp.Description)
	}

	var updates []core.RawUpdate
	if err := json.Unmarshal(apiResp.Result, &updates); err != nil {
		return nil, fmt.Errorf("decode updates: %w", err)
	}
	return updates, nil
}

// DeleteMessage removes a message; the bot needs the matching chat rights.
func (c *Client) DeleteMessage(ctx context.Context, chatID, messageID int64) error {
	_, err := c.call(ctx, "deleteMessage", url.Values{
		"chat_id":    {strconv.FormatInt(chatID, 10)},
		"message_id": {strconv.FormatInt(messageID, 10)},
	})
	return err
}

// SendMessage sends a plain text message.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	_, err := c.call(ctx, "sendMessage", url.Values{
		"chat_id": {strconv.FormatInt(chatID, 10)},
		"text":    {text},
	})
	return err
}

// AnswerCallbackQuery acknowledges a button press, optionally with a toast.
func (c *Client) AnswerCallbackQuery(ctx context.Context, callbackQueryID, text string) error {
	params := url.Values{"callback_query_id": {callbackQueryID}}
	if text != "" {
		params.Set("text", text)
	}
	_, err := c.call(ctx, "answerCallbackQuery", params)
	return err
}

// GetMe returns the bot's username, useful as a startup sanity check.
func (c *Client) GetMe(ctx context.Context) (string, error) {
	result, err := c.call(ctx, "getMe", url.Values{})
	if err != nil {
		return "", err
	}
	var me struct {
		Username string `json:"username"`
	}
	if err := json.Unmarshal(result, &me); err != nil {
		return "", fmt.Errorf("decode getMe result: %w", err)
	}
	return me.Username, nil
}

func (c *Client) call(ctx context.Context, method string, params url.Values) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.APIURL()+"/"+method, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	var apiResp apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", method, err)
	}
	if !apiResp.OK {
		return nil, fmt.Errorf("%s failed: %s", method, apiResp.Description)
	}
	return apiResp.Result, nil
}
