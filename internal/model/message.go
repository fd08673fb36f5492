// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	default:
		return string(r)
	}
}

// =============================================================================
// DOCUMENT REFERENCE
// =============================================================================

// DocumentRef identifies a document attached to a user message. The document
// body itself is uploaded out of band; the reference travels with the turn.
type DocumentRef struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
	Size int64  `json:"size,omitempty"`
	// Content holds inline document text when the backend expects it inline.
	Content string `json:"content,omitempty"`
}

// =============================================================================
// THINK SPAN
// =============================================================================

// ThinkSpan records one contiguous thinking region within an assistant
// message. Times are Unix milliseconds to match the persisted format.
//
// Invariant: DurationMs == EndMs - StartMs whenever EndMs is set, and is
// never negative. A span with EndMs == 0 is open.
type ThinkSpan struct {
	StartMs    int64 `json:"startTime"`
	EndMs      int64 `json:"endTime,omitempty"`
	DurationMs int64 `json:"duration,omitempty"`
}

// Open reports whether the span has not been closed yet.
func (s ThinkSpan) Open() bool {
	return s.EndMs == 0
}

// Duration returns the stored duration of a closed span.
func (s ThinkSpan) Duration() time.Duration {
	return time.Duration(s.DurationMs) * time.Millisecond
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single message in a conversation.
//
// A user Message is immutable once created. An assistant Message is created
// empty and grows by appended deltas while a turn streams; once the turn
// completes it is immutable too.
type Message struct {
	// Identity
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Timestamp time.Time `json:"timestamp"`

	// Content
	Content string `json:"content"`

	// Model that produced (assistant) or was targeted by (user) this message.
	Model string `json:"model,omitempty"`

	// Attachments (user messages only). Image is a data URI or raw base64.
	Image    string       `json:"image,omitempty"`
	Document *DocumentRef `json:"document,omitempty"`

	// Thinking metadata (assistant messages only).
	// Invariant: at most one open span at a time.
	ThinkSpans []ThinkSpan `json:"thinkTimes,omitempty"`

	// CurrentThinkStartMs mirrors the open span's start while a thinking
	// region is in progress. Zero when no span is open.
	CurrentThinkStartMs int64 `json:"-"`
}

// NewUserMessage creates a user message with a generated ID.
func NewUserMessage(content string) *Message {
	return &Message{
		ID:        uuid.NewString(),
		Role:      RoleUser,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewAssistantMessage creates an empty assistant message ready to receive
// streamed deltas.
func NewAssistantMessage(modelID string) *Message {
	return &Message{
		ID:        uuid.NewString(),
		Role:      RoleAssistant,
		Model:     modelID,
		Timestamp: time.Now(),
	}
}

// OpenSpan returns a pointer to the currently open think span, or nil.
func (m *Message) OpenSpan() *ThinkSpan {
	if len(m.ThinkSpans) == 0 {
		return nil
	}
	last := &m.ThinkSpans[len(m.ThinkSpans)-1]
	if last.Open() {
		return last
	}
	return nil
}

// Clone returns a deep copy of the message. Snapshots handed to observers
// must not alias the live streaming buffer's backing data.
func (m *Message) Clone() Message {
	out := *m
	if m.Document != nil {
		doc := *m.Document
		out.Document = &doc
	}
	if m.ThinkSpans != nil {
		out.ThinkSpans = make([]ThinkSpan, len(m.ThinkSpans))
		copy(out.ThinkSpans, m.ThinkSpans)
	}
	return out
}
