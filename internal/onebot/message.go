package onebot

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Segment is one element of a OneBot message array.
type Segment struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

func textSegment(text string) Segment {
	return Segment{Type: "text", Data: map[string]any{"text": text}}
}

func atSegment(userID int64) Segment {
	return Segment{Type: "at", Data: map[string]any{"qq": strconv.FormatInt(userID, 10)}}
}

func fileSegment(file, name string) Segment {
	data := map[string]any{"file": file}
	if name != "" {
		data["name"] = name
	}
	return Segment{Type: "file", Data: data}
}

func nodeSegment(name string, uin int64, content string) Segment {
	return Segment{Type: "node", Data: map[string]any{
		"name":    name,
		"uin":     strconv.FormatInt(uin, 10),
		"content": []Segment{textSegment(content)},
	}}
}

// Sender is the sender block of a message event.
type Sender struct {
	UserID   int64  `json:"user_id"`
	Nickname string `json:"nickname"`
	Card     string `json:"card"`
}

// DisplayName prefers the group card over the nickname.
func (s Sender) DisplayName() string {
	if card := strings.TrimSpace(s.Card); card != "" {
		return card
	}
	return strings.TrimSpace(s.Nickname)
}

// Event is the subset of a OneBot v11 event post the webhook uses.
type Event struct {
	Time        int64           `json:"time"`
	SelfID      int64           `json:"self_id"`
	PostType    string          `json:"post_type"`
	MessageType string          `json:"message_type"`
	SubType     string          `json:"sub_type"`
	MessageID   int64           `json:"message_id"`
	UserID      int64           `json:"user_id"`
	GroupID     int64           `json:"group_id"`
	RawMessage  string          `json:"raw_message"`
	Message     json.RawMessage `json:"message"`
	Sender      Sender          `json:"sender"`
}

// IsMessage reports whether the event carries a chat message.
func (e Event) IsMessage() bool {
	return e.PostType == "message" || e.PostType == "message_sent"
}

// Text returns the plain text of the message. raw_message wins; otherwise
// the text segments of an array message are concatenated.
func (e Event) Text() string {
	if raw := strings.TrimSpace(e.RawMessage); raw != "" {
		return raw
	}
	if len(e.Message) == 0 {
		return ""
	}
	var plain string
	if err := json.Unmarshal(e.Message, &plain); err == nil {
		return strings.TrimSpace(plain)
	}
	var segments []Segment
	if err := json.Unmarshal(e.Message, &segments); err != nil {
		return ""
	}
	var builder strings.Builder
	for _, seg := range segments {
		if seg.Type != "text" {
			continue
		}
		if text, ok := seg.Data["text"].(string); ok {
			builder.WriteString(text)
		}
	}
	return strings.TrimSpace(builder.String())
}

// Requester identifies the sender for logs and history.
func (e Event) Requester() string {
	id := strconv.FormatInt(e.UserID, 10)
	if name := e.Sender.DisplayName(); name != "" {
		return name + " (" + id + ")"
	}
	return id
}

// Source labels the chat the event came from.
func (e Event) Source() string {
	if e.MessageType == "group" && e.GroupID != 0 {
		return "group:" + strconv.FormatInt(e.GroupID, 10)
	}
	return "private:" + strconv.FormatInt(e.UserID, 10)
}
