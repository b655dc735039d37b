// Package conversation folds flat conversation-store documents into threads.
// Everything here is pure: same input, same output, no I/O.
package conversation

import (
	"AgentDesk/entity"
	"fmt"
	"sort"
	"time"
)

var epoch = time.Unix(0, 0).UTC()

// GroupKey derives the thread identity of a document, "" when none of its
// identifiers is usable.
func GroupKey(d entity.Document) string {
	phone, user, session := Usable(d.PhoneNumberID), Usable(d.UserID), Usable(d.SessionID)
	switch {
	case phone && user:
		return "phone_" + d.PhoneNumberID + "_user_" + d.UserID
	case phone:
		return "phone_" + d.PhoneNumberID
	case session:
		return "session_" + d.SessionID
	case user:
		return "user_" + d.UserID
	default:
		return ""
	}
}

// Group builds the conversation list of one agent scope, most recent first.
func Group(docs []entity.Document) []entity.Conversation {
	buckets := make(map[string][]entity.Document)
	var order []string
	for _, d := range docs {
		key := GroupKey(d)
		if key == "" {
			continue
		}
		if _, ok := buckets[key]; !ok {
			order = append(order, key)
		}
		buckets[key] = append(buckets[key], d)
	}

	conversations := make([]entity.Conversation, 0, len(order))
	for _, key := range order {
		c := build(key, buckets[key])
		if !Usable(c.UserID) {
			continue
		}
		conversations = append(conversations, c)
	}

	sort.SliceStable(conversations, func(i, j int) bool {
		return conversations[i].LastMessageTime.After(conversations[j].LastMessageTime)
	})
	return conversations
}

// GroupRaw normalizes raw rows and groups them.
func GroupRaw(raw []map[string]interface{}) []entity.Conversation {
	return Group(NormalizeAll(raw))
}

func build(key string, bucket []entity.Document) entity.Conversation {
	docs := make([]entity.Document, len(bucket))
	copy(docs, bucket)
	sort.SliceStable(docs, func(i, j int) bool {
		return at(docs[i]).Before(at(docs[j]))
	})

	rep := docs[len(docs)-1]
	c := entity.Conversation{
		ID:              key,
		UserID:          rep.UserID,
		PhoneNumberID:   rep.PhoneNumberID,
		LastMessage:     Preview(rep.AnyText()),
		LastMessageTime: at(rep),
		Status:          entity.ConversationActive,
		Messages:        make([]entity.Message, 0, len(docs)),
	}
	for i, d := range docs {
		c.Messages = append(c.Messages, Expand(key, i, d)...)
	}
	return c
}

// Expand turns one document into zero, one or two messages: a user message
// when it carries human text or a user type, and independently an agent
// message when it carries automation text or an agent type.
func Expand(key string, index int, d entity.Document) []entity.Message {
	base := d.ID
	if base == "" {
		base = fmt.Sprintf("%s-%d", key, index)
	}

	var out []entity.Message
	if d.HumanText != "" || isUserType(d.Type) {
		text := d.HumanText
		if text == "" {
			text = d.Text
		}
		out = append(out, entity.Message{
			ID:        base + "-user",
			Direction: entity.DirectionUser,
			Text:      text,
			Timestamp: at(d),
			Image:     d.Image,
			Status:    entity.StatusSent,
		})
	}
	if d.AIText != "" || isAgentType(d.Type) {
		text := d.AIText
		if text == "" {
			text = d.Text
		}
		m := entity.Message{
			ID:        base + "-agent",
			Direction: entity.DirectionAgent,
			Text:      text,
			Timestamp: at(d),
			Status:    entity.StatusSent,
		}
		if len(out) == 0 {
			m.Image = d.Image
		}
		out = append(out, m)
	}
	return out
}

// Preview truncates text to entity.PreviewLength runes.
func Preview(text string) string {
	r := []rune(text)
	if len(r) <= entity.PreviewLength {
		return text
	}
	return string(r[:entity.PreviewLength])
}

func at(d entity.Document) time.Time {
	if d.Datetime.IsZero() {
		return epoch
	}
	return d.Datetime
}

func isUserType(t string) bool {
	return t == "user" || t == "human"
}

func isAgentType(t string) bool {
	switch t {
	case "agent", "ai", "bot", "assistant":
		return true
	}
	return false
}

// Changes summarises documents newer than a checkpoint: the touched group
// keys in most-recent-first order, their preview patches, and the latest
// datetime over all docs, discarded ones included (zero when docs is empty).
func Changes(docs []entity.Document) ([]string, map[string]entity.ConversationPatch, time.Time) {
	conversations := Group(docs)
	ids := make([]string, 0, len(conversations))
	patches := make(map[string]entity.ConversationPatch, len(conversations))
	var latest time.Time
	for _, c := range conversations {
		ids = append(ids, c.ID)
		patches[c.ID] = entity.ConversationPatch{
			LastMessage:     c.LastMessage,
			LastMessageTime: c.LastMessageTime,
		}
	}
	for _, d := range docs {
		if d.Datetime.After(latest) {
			latest = d.Datetime
		}
	}
	return ids, patches, latest
}

// Within keeps the documents whose datetime lies in [from, to]. A zero bound
// is open; with both bounds zero every document is kept.
func Within(docs []entity.Document, from, to time.Time) []entity.Document {
	if from.IsZero() && to.IsZero() {
		return docs
	}
	kept := make([]entity.Document, 0, len(docs))
	for _, d := range docs {
		if !from.IsZero() && d.Datetime.Before(from) {
			continue
		}
		if !to.IsZero() && d.Datetime.After(to) {
			continue
		}
		kept = append(kept, d)
	}
	return kept
}

// After keeps the documents strictly newer than since. A zero since keeps all.
func After(docs []entity.Document, since time.Time) []entity.Document {
	if since.IsZero() {
		return docs
	}
	kept := make([]entity.Document, 0, len(docs))
	for _, d := range docs {
		if d.Datetime.After(since) {
			kept = append(kept, d)
		}
	}
	return kept
}
