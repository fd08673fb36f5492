// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package thinking

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/jeranaias/rigchat/internal/model"
)

// =============================================================================
// TIMER
// =============================================================================

// Timer records thinking spans on assistant messages. Methods are not
// safe for concurrent use; the session controller serializes all calls for
// a turn.
type Timer struct {
	// now is swappable for tests.
	now func() time.Time
}

// NewTimer creates a timer using wall-clock time.
func NewTimer() *Timer {
	return &Timer{now: time.Now}
}

// StartSpan opens a new span on the message. It is a no-op if a span is
// already open, preserving the at-most-one-open-span invariant under
// repeated delta frames.
func (t *Timer) StartSpan(msg *model.Message) {
	if msg.OpenSpan() != nil {
		return
	}

	start := t.now().UnixMilli()
	msg.ThinkSpans = append(msg.ThinkSpans, model.ThinkSpan{StartMs: start})
	msg.CurrentThinkStartMs = start
}

// EndSpan closes the open span, if any, computing its duration. Durations
// never go negative even if the clock steps backward.
func (t *Timer) EndSpan(msg *model.Message) {
	span := msg.OpenSpan()
	if span == nil {
		return
	}

	end := t.now().UnixMilli()
	if end < span.StartMs {
		end = span.StartMs
	}
	span.EndMs = end
	span.DurationMs = end - span.StartMs
	msg.CurrentThinkStartMs = 0
}

// Elapsed returns the cumulative thinking time of the message: the stored
// duration of every closed span, plus the live age of an open span. Closed
// spans contribute only their stored duration, never a recomputation, so
// time is never double counted.
func (t *Timer) Elapsed(msg *model.Message) time.Duration {
	var totalMs int64
	for _, span := range msg.ThinkSpans {
		if span.Open() {
			live := t.now().UnixMilli() - span.StartMs
			if live > 0 {
				totalMs += live
			}
			continue
		}
		totalMs += span.DurationMs
	}
	return time.Duration(totalMs) * time.Millisecond
}

// =============================================================================
// FINGERPRINT
// =============================================================================

// fingerprintLen is how many leading content runes identify a message
// across reloads.
const fingerprintLen = 100

// Fingerprint derives the persistence key component from message content:
// a short hash of the first 100 characters.
func Fingerprint(content string) string {
	runes := []rune(content)
	if len(runes) > fingerprintLen {
		runes = runes[:fingerprintLen]
	}
	sum := sha256.Sum256([]byte(string(runes)))
	return hex.EncodeToString(sum[:8])
}

// =============================================================================
// MERGING
// =============================================================================

// Merge applies persisted spans to a message under the monotonic rule: the
// stored set wins only when it records more spans than the message already
// carries. Returns true if the message was updated.
func Merge(msg *model.Message, stored []model.ThinkSpan) bool {
	if len(stored) <= len(msg.ThinkSpans) {
		return false
	}
	msg.ThinkSpans = make([]model.ThinkSpan, len(stored))
	copy(msg.ThinkSpans, stored)
	return true
}
