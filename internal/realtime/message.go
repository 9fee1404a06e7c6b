// Package realtime implements the chat widget core: an outbound websocket
// channel to the backend messaging server, per-viewer transcript state, and a
// websocket bridge that connects an authenticated browser tab to both.
package realtime

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Sender role tags on the realtime wire.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Message is the canonical chat message shape. Everything past the wire
// boundary uses this; the two naming conventions the backend and the widget
// historically produced are folded together in wireMessage.normalize.
type Message struct {
	ID         string    `json:"id"`
	Body       string    `json:"message"`
	SenderID   string    `json:"sender_id"`
	SenderRole string    `json:"sender_type"`
	SenderName string    `json:"sender_name"`
	CreatedAt  time.Time `json:"created_at"`
	Read       bool      `json:"read"`
}

// wireMessage tolerates both camelCase (widget-originated) and snake_case
// (server-originated) field names. Ids arrive as numbers or strings.
type wireMessage struct {
	ID        any    `json:"id"`
	Body      string `json:"message"`
	SenderID  any    `json:"senderId"`
	SenderID2 any    `json:"sender_id"`
	Role      string `json:"senderType"`
	Role2     string `json:"sender_type"`
	Name      string `json:"senderName"`
	Name2     string `json:"sender_name"`
	CreatedAt string `json:"createdAt"`
	Created2  string `json:"created_at"`
}

func (w wireMessage) normalize() Message {
	m := Message{
		ID:         asString(w.ID),
		Body:       w.Body,
		SenderID:   first(asString(w.SenderID), asString(w.SenderID2)),
		SenderRole: first(w.Role, w.Role2),
		SenderName: first(w.Name, w.Name2),
		CreatedAt:  parseWhen(first(w.CreatedAt, w.Created2)),
	}
	if m.ID == "" {
		// client-generated fallback identifier
		m.ID = uuid.NewString()
	}
	if m.SenderRole == "" {
		m.SenderRole = RoleAdmin
	}
	return m
}

func decodeMessage(data json.RawMessage) (Message, error) {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return Message{}, err
	}
	return w.normalize(), nil
}

func first(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatInt(int64(t), 10)
	}
	return ""
}

func parseWhen(s string) time.Time {
	if s == "" {
		return time.Now()
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t
	}
	return time.Now()
}
