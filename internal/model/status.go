// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// =============================================================================
// STATUS AXES
// =============================================================================

// ModelStatus tracks backend model readiness for the active turn.
type ModelStatus string

const (
	ModelIdle    ModelStatus = "idle"
	ModelLoading ModelStatus = "loading"
	ModelReady   ModelStatus = "ready"
	ModelError   ModelStatus = "error"
)

// GenerationStatus tracks the lifecycle of the current turn.
type GenerationStatus string

const (
	GenerationIdle       GenerationStatus = "idle"
	GenerationConnecting GenerationStatus = "connecting"
	GenerationGenerating GenerationStatus = "generating"
	GenerationPaused     GenerationStatus = "paused"
	GenerationCompleted  GenerationStatus = "completed"
	GenerationFailed     GenerationStatus = "failed"
)

// Terminal reports whether the generation axis has reached a final state.
func (g GenerationStatus) Terminal() bool {
	return g == GenerationCompleted || g == GenerationFailed
}

// ThinkingStatus tracks the thinking sub-state of the assistant message.
type ThinkingStatus string

const (
	ThinkingIdle      ThinkingStatus = "idle"
	ThinkingActive    ThinkingStatus = "thinking"
	ThinkingCompleted ThinkingStatus = "completed"
)

// ToolStatus tracks tool activity surfaced during a turn.
type ToolStatus string

const (
	ToolIdle      ToolStatus = "idle"
	ToolCalling   ToolStatus = "calling"
	ToolWebSearch ToolStatus = "web_search"
	ToolMCP       ToolStatus = "mcp"
	ToolCompleted ToolStatus = "completed"
	ToolFailed    ToolStatus = "failed"
)

// ChannelState tracks the streaming channel backing the current turn.
type ChannelState string

const (
	ChannelNone       ChannelState = "none"
	ChannelConnecting ChannelState = "connecting"
	ChannelOpen       ChannelState = "open"
	ChannelClosed     ChannelState = "closed"
	ChannelError      ChannelState = "error"
)

// =============================================================================
// SESSION STATUS SNAPSHOT
// =============================================================================

// SessionStatus is the externally observable state of a chat session, read
// as one immutable snapshot. The session controller owns the live value and
// hands copies to observers.
//
// Invariants:
//   - generation in {connecting, generating} implies a channel exists or is
//     being established
//   - generation in {completed, failed} implies the channel is closed and
//     thinking/tool are reset to idle
type SessionStatus struct {
	Model      ModelStatus
	Generation GenerationStatus
	Thinking   ThinkingStatus
	Tool       ToolStatus

	ActiveMessageID  string
	FailureReason    string
	LoadingProgress  int // 0-100
	Channel          ChannelState
	WebSearchEnabled bool
}

// NewSessionStatus returns the all-idle snapshot.
func NewSessionStatus() SessionStatus {
	return SessionStatus{
		Model:      ModelIdle,
		Generation: GenerationIdle,
		Thinking:   ThinkingIdle,
		Tool:       ToolIdle,
		Channel:    ChannelNone,
	}
}

// Busy reports whether a turn is currently in flight.
func (s SessionStatus) Busy() bool {
	return s.Generation == GenerationConnecting || s.Generation == GenerationGenerating
}
