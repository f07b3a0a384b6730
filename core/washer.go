package core

import "errors"

// ErrMalformedBatch reports a batch containing a record without an update_id.
// The washer refuses the whole batch so the offset is never advanced past
// updates it could not account for.
var ErrMalformedBatch = errors.New("update batch contains a record without update_id")

// Washer normalizes raw update batches into Messages and owns the polling
// offset. It is driven only by the poll loop goroutine.
type Washer struct {
	offset int64
}

// NewWasher creates a washer starting at offset 0.
func NewWasher() *Washer {
	return &Washer{}
}

// Offset returns the next update id the poll loop should request.
func (w *Washer) Offset() int64 {
	return w.offset
}

// Wash normalizes a batch. An empty or nil batch yields no messages and
// leaves the offset untouched. Any record missing its update_id returns
// ErrMalformedBatch, also without touching the offset. Otherwise the offset
// advances to max(update_id)+1 in a single step after the whole batch is
// processed, so a partially consumed batch is redelivered rather than lost.
//
// Records carrying none of {inline_query, callback_query, message} count
// toward the offset but produce no message.
func (w *Washer) Wash(batch []RawUpdate) ([]Message, error) {
	if len(batch) == 0 {
		return nil, nil
	}

	var maxID int64
	for i, u := range batch {
		if u.UpdateID == nil {
			return nil, ErrMalformedBatch
		}
		if i == 0 || *u.UpdateID > maxID {
			maxID = *u.UpdateID
		}
	}

	var msgs []Message
	for _, u := range batch {
		if m, ok := washOne(u); ok {
			msgs = append(msgs, m)
		}
	}

	w.offset = maxID + 1
	return msgs, nil
}

// washOne picks the single event embedded in the update, first match wins in
// the order inline query, callback query, message.
func washOne(u RawUpdate) (Message, bool) {
	switch {
	case u.InlineQuery != nil:
		q := u.InlineQuery
		query := q.Query
		m := Message{
			ChatType: ChatPrivate,
			From:     q.From,
			Query:    &query,
		}
		// Inline queries carry no chat; the sender stands in.
		if q.From != nil {
			m.ChatID = q.From.ID
		}
		return m, true

	case u.CallbackQuery != nil:
		cb := u.CallbackQuery
		if cb.Message == nil {
			return Message{}, false
		}
		m := fromRaw(cb.Message)
		data := cb.Data
		m.ClickUser = cb.From
		m.CallbackQueryID = cb.ID
		m.CallbackQueryData = &data
		return m, true

	case u.Message != nil:
		return fromRaw(u.Message), true

	default:
		return Message{}, false
	}
}

func fromRaw(rm *RawMessage) Message {
	return Message{
		MessageID:    rm.MessageID,
		ChatID:       rm.Chat.ID,
		ChatType:     rm.Chat.Type,
		Date:         rm.Date,
		From:         rm.From,
		Text:         rm.Text,
		Caption:      rm.Caption,
		Photo:        len(rm.Photo) > 0,
		Sticker:      len(rm.Sticker) > 0,
		Video:        len(rm.Video) > 0,
		Audio:        len(rm.Audio) > 0,
		Document:     len(rm.Document) > 0,
		MemberJoined: len(rm.NewChatMembers) > 0,
		MemberLeft:   len(rm.LeftChatMember) > 0,
	}
}
