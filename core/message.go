package core

// ChatType is the conversation type reported by the transport.
type ChatType string

const (
	ChatPrivate    ChatType = "private"
	ChatGroup      ChatType = "group"
	ChatSupergroup ChatType = "supergroup"
	ChatChannel    ChatType = "channel"
)

// Kind is the dispatch discriminant of a normalized message. Exactly one
// kind is active per message, chosen by Classify.
type Kind string

const (
	KindText         Kind = "text"
	KindCaption      Kind = "caption"
	KindQuery        Kind = "query"
	KindCallbackData Kind = "callback_query_data"
	KindPhoto        Kind = "photo"
	KindSticker      Kind = "sticker"
	KindVideo        Kind = "video"
	KindAudio        Kind = "audio"
	KindDocument     Kind = "document"
)

// Message is the uniform shape fed to plugins. It carries the fields of the
// washed update plus, after Classify, the kind and the payload string that
// prefix matching runs against. The JSON form is what a plugin process
// receives inside the invoke envelope.
type Message struct {
	MessageID int64    `json:"message_id"`
	ChatID    int64    `json:"chat_id"`
	ChatType  ChatType `json:"chat_type"`
	Date      int64    `json:"date,omitempty"`
	From      *User    `json:"from,omitempty"`

	Text    *string `json:"text,omitempty"`
	Caption *string `json:"caption,omitempty"`
	Query   *string `json:"query,omitempty"`

	Photo    bool `json:"photo,omitempty"`
	Sticker  bool `json:"sticker,omitempty"`
	Video    bool `json:"video,omitempty"`
	Audio    bool `json:"audio,omitempty"`
	Document bool `json:"document,omitempty"`

	MemberJoined bool `json:"member_joined,omitempty"`
	MemberLeft   bool `json:"member_left,omitempty"`

	// Populated only for callback-query-derived messages.
	ClickUser         *User   `json:"click_user,omitempty"`
	CallbackQueryID   string  `json:"callback_query_id,omitempty"`
	CallbackQueryData *string `json:"callback_query_data,omitempty"`

	Kind    Kind   `json:"kind"`
	Payload string `json:"payload"`
}

// Classify picks the single dispatch kind for the message and fills Kind and
// Payload. The priority order is fixed: callback data, then membership
// changes, then media types (photo, sticker, video, audio, document), then
// text, caption, and finally inline query. It returns false when no field
// maps to a recognized kind; such messages are dropped, not errors.
//
// Membership changes dispatch as empty text so catch-all plugins see them.
// Media kinds use the kind name itself as the payload, so a plugin keyed on
// "photo" fires for every photo.
func (m *Message) Classify() bool {
	switch {
	case m.CallbackQueryData != nil:
		m.Kind, m.Payload = KindCallbackData, *m.CallbackQueryData
	case m.MemberJoined || m.MemberLeft:
		m.Kind, m.Payload = KindText, ""
	case m.Photo:
		m.Kind, m.Payload = KindPhoto, string(KindPhoto)
	case m.Sticker:
		m.Kind, m.Payload = KindSticker, string(KindSticker)
	case m.Video:
		m.Kind, m.Payload = KindVideo, string(KindVideo)
	case m.Audio:
		m.Kind, m.Payload = KindAudio, string(KindAudio)
	case m.Document:
		m.Kind, m.Payload = KindDocument, string(KindDocument)
	case m.Text != nil:
		m.Kind, m.Payload = KindText, *m.Text
	case m.Caption != nil:
		m.Kind, m.Payload = KindCaption, *m.Caption
	case m.Query != nil:
		m.Kind, m.Payload = KindQuery, *m.Query
	default:
		return false
	}
	return true
}
