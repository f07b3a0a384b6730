// Sample plugin: echoes the message payload back to the chat.
//
// Build it and install it under the plugin directory as, say,
//
//	<plugin-dir>/Echo/plugin.yaml   (prefix: "/echo")
//	<plugin-dir>/Echo/Echo.bin      (this binary)
//
// It reads one request envelope per line from stdin and answers on stdout.
// The bot API endpoint root, including the token, arrives in FERRY_API_URL.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
)

type request struct {
	Version string          `json:"version"`
	ID      string          `json:"id"`
	Plugin  string          `json:"plugin"`
	Message json.RawMessage `json:"message"`
}

type response struct {
	Version string          `json:"version"`
	ID      string          `json:"id"`
	OK      bool            `json:"ok"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *respError      `json:"error,omitempty"`
}

type respError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type message struct {
	MessageID int64  `json:"message_id"`
	ChatID    int64  `json:"chat_id"`
	Kind      string `json:"kind"`
	Payload   string `json:"payload"`
}

func main() {
	fmt.Fprintln(os.Stderr, "sample plugin started")
	apiURL := os.Getenv("FERRY_API_URL")

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 64*1024), 64*1024)

	for scanner.Scan() {
		var req request
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			reply(response{Version: "v1", OK: false,
				Error: &respError{Code: "INVALID_REQUEST", Message: err.Error()}})
			continue
		}

		var msg message
		if err := json.Unmarshal(req.Message, &msg); err != nil {
			reply(response{Version: "v1", ID: req.ID, OK: false,
				Error: &respError{Code: "INVALID_REQUEST", Message: err.Error()}})
			continue
		}

		text := strings.TrimSpace(strings.TrimPrefix(msg.Payload, "/echo"))

		// "--clean" asks the host to delete the triggering message.
		clean := false
		if trimmed, ok := strings.CutSuffix(text, "--clean"); ok {
			clean = true
			text = strings.TrimSpace(trimmed)
		}
		if text == "" {
			text = "(nothing to echo)"
		}

		if err := sendMessage(apiURL, msg.ChatID, text); err != nil {
			reply(response{Version: "v1", ID: req.ID, OK: false,
				Error: &respError{Code: "INTERNAL", Message: err.Error()}})
			continue
		}

		resp := response{Version: "v1", ID: req.ID, OK: true}
		if clean {
			resp.Data, _ = json.Marshal(map[string]any{
				"delete_after": map[string]any{
					"delay_seconds": 10,
					"chat_id":       msg.ChatID,
					"message_id":    msg.MessageID,
				},
			})
		}
		reply(resp)
	}

	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "stdin error: %s\n", err)
		os.Exit(1)
	}
}

func reply(resp response) {
	out, _ := json.Marshal(resp)
	fmt.Fprintln(os.Stdout, string(out))
}

func sendMessage(apiURL string, chatID int64, text string) error {
	resp, err := http.PostForm(apiURL+"/sendMessage", url.Values{
		"chat_id": {strconv.FormatInt(chatID, 10)},
		"text":    {text},
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("sendMessage status %d", resp.StatusCode)
	}
	return nil
}
