package core

import "encoding/json"

// RawUpdate is one record from a getUpdates batch, as decoded off the wire.
// UpdateID is a pointer so a record that omits it can be told apart from
// update_id 0; a missing id invalidates the whole batch (see Washer.Wash).
type RawUpdate struct {
	UpdateID      *int64         `json:"update_id"`
	Message       *RawMessage    `json:"message,omitempty"`
	CallbackQuery *CallbackQuery `json:"callback_query,omitempty"`
	InlineQuery   *InlineQuery   `json:"inline_query,omitempty"`
}

// RawMessage is the transport's message shape. Media fields are kept as raw
// JSON: the dispatch core only ever cares about their presence.
type RawMessage struct {
	MessageID      int64           `json:"message_id"`
	From           *User           `json:"from,omitempty"`
	Chat           Chat            `json:"chat"`
	Date           int64           `json:"date"`
	Text           *string         `json:"text,omitempty"`
	Caption        *string         `json:"caption,omitempty"`
	Photo          json.RawMessage `json:"photo,omitempty"`
	Sticker        json.RawMessage `json:"sticker,omitempty"`
	Video          json.RawMessage `json:"video,omitempty"`
	Audio          json.RawMessage `json:"audio,omitempty"`
	Document       json.RawMessage `json:"document,omitempty"`
	NewChatMembers json.RawMessage `json:"new_chat_members,omitempty"`
	LeftChatMember json.RawMessage `json:"left_chat_member,omitempty"`
}

// CallbackQuery is a button press on an inline keyboard.
type CallbackQuery struct {
	ID      string      `json:"id"`
	From    *User       `json:"from,omitempty"`
	Message *RawMessage `json:"message,omitempty"`
	Data    string      `json:"data"`
}

// InlineQuery is an inline-mode query typed at the bot.
type InlineQuery struct {
	ID    string `json:"id"`
	From  *User  `json:"from,omitempty"`
	Query string `json:"query"`
}

// User identifies the sender of a message or callback.
type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
}

// Chat identifies the conversation an update belongs to.
type Chat struct {
	ID   int64    `json:"id"`
	Type ChatType `json:"type"`
}
