// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"strings"

	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/protocol"
	"github.com/jeranaias/rigchat/internal/thinking"
)

// =============================================================================
// THINK MARKERS
// =============================================================================

const (
	thinkOpenMarker  = "<think>"
	thinkCloseMarker = "</think>"
)

// maxCarry is the longest marker prefix that can be split across two deltas.
const maxCarry = len(thinkCloseMarker) - 1

// =============================================================================
// TURN ASSEMBLER
// =============================================================================

// Assembler folds decoded frames for a single turn into the in-progress
// assistant message. It tracks the thinking marker state machine, tool
// activity, and model load progress, and reports when the turn reaches a
// terminal state.
//
// The assembler is not safe for concurrent use. The controller applies
// frames from a single goroutine.
type Assembler struct {
	msg   *model.Message
	timer *thinking.Timer

	webSearchRequested bool

	content   strings.Builder
	carry     string
	thinkOpen bool

	thinking model.ThinkingStatus
	tool     model.ToolStatus
	load     model.ModelStatus
	progress int

	done          bool
	failureReason string
}

// NewAssembler returns an assembler bound to the given assistant message.
// webSearchRequested controls whether web search tool events surface as
// a dedicated tool state or as a generic tool call.
func NewAssembler(msg *model.Message, timer *thinking.Timer, webSearchRequested bool) *Assembler {
	return &Assembler{
		msg:                msg,
		timer:              timer,
		webSearchRequested: webSearchRequested,
		thinking:           model.ThinkingIdle,
		tool:               model.ToolIdle,
		load:               model.ModelIdle,
	}
}

// Apply folds one frame into the turn. It returns done=true when the frame
// terminates the turn successfully, and a non-nil error when the frame
// fails it. Frames applied after a terminal frame are ignored.
func (a *Assembler) Apply(fr protocol.Frame) (bool, error) {
	if a.done || a.failureReason != "" {
		return a.done, nil
	}

	switch fr.Kind {
	case protocol.KindDelta:
		a.appendDelta(fr.Content)
		return false, nil

	case protocol.KindToolEvent:
		a.applyTool(fr.Tool)
		return false, nil

	case protocol.KindModelLoading:
		return false, a.applyLoading(fr.Loading)

	case protocol.KindDone:
		a.finishTurn()
		return true, nil

	case protocol.KindError:
		return false, a.fail(fr.ErrorDetail)

	default:
		return false, a.fail("unrecognized frame")
	}
}

// Message returns the assistant message being assembled.
func (a *Assembler) Message() *model.Message {
	return a.msg
}

// Thinking returns the current thinking sub-state.
func (a *Assembler) Thinking() model.ThinkingStatus { return a.thinking }

// Tool returns the current tool sub-state.
func (a *Assembler) Tool() model.ToolStatus { return a.tool }

// Load returns the model readiness reported by the backend for this turn.
func (a *Assembler) Load() (model.ModelStatus, int) { return a.load, a.progress }

// =============================================================================
// DELTA FOLDING
// =============================================================================

// appendDelta accumulates a content fragment and advances the think marker
// state machine. Marker scanning resumes from a bounded carry of the
// previous fragment's tail, so a marker split across deltas is still
// recognized and each fragment is scanned at most once.
func (a *Assembler) appendDelta(fragment string) {
	if fragment == "" {
		return
	}

	a.content.WriteString(fragment)
	a.msg.Content = a.content.String()

	s := a.carry + fragment
	for {
		if !a.thinkOpen {
			idx := strings.Index(s, thinkOpenMarker)
			if idx < 0 {
				break
			}
			a.thinkOpen = true
			a.thinking = model.ThinkingActive
			a.timer.StartSpan(a.msg)
			s = s[idx+len(thinkOpenMarker):]
		} else {
			idx := strings.Index(s, thinkCloseMarker)
			if idx < 0 {
				break
			}
			a.thinkOpen = false
			a.thinking = model.ThinkingCompleted
			a.timer.EndSpan(a.msg)
			s = s[idx+len(thinkCloseMarker):]
		}
	}
	if len(s) > maxCarry {
		s = s[len(s)-maxCarry:]
	}
	a.carry = s
}

// =============================================================================
// TOOL AND LOAD EVENTS
// =============================================================================

func (a *Assembler) applyTool(ev protocol.ToolEvent) {
	if ev.Phase == protocol.ToolPhaseResult {
		a.tool = model.ToolCompleted
		return
	}

	switch ev.Kind {
	case protocol.ToolKindWebSearch:
		if a.webSearchRequested {
			a.tool = model.ToolWebSearch
		} else {
			// Unrequested search activity is still surfaced, just not
			// as the dedicated web search state.
			a.tool = model.ToolCalling
		}
	case protocol.ToolKindMCP:
		a.tool = model.ToolMCP
	default:
		a.tool = model.ToolCalling
	}
}

func (a *Assembler) applyLoading(ml protocol.ModelLoading) error {
	switch ml.Status {
	case protocol.LoadStatusLoading:
		a.load = model.ModelLoading
		a.progress = ml.Progress
		return nil
	case protocol.LoadStatusReady:
		a.load = model.ModelReady
		a.progress = 100
		return nil
	case protocol.LoadStatusError:
		a.load = model.ModelError
		reason := ml.Message
		if reason == "" {
			reason = "model failed to load"
		}
		return a.fail(reason)
	default:
		return a.fail("unrecognized model load status")
	}
}

// =============================================================================
// TERMINAL TRANSITIONS
// =============================================================================

// finishTurn closes the turn successfully. An unterminated think span is
// force-closed so the recorded duration stays finite.
func (a *Assembler) finishTurn() {
	if a.thinkOpen {
		a.thinkOpen = false
		a.timer.EndSpan(a.msg)
	}
	a.thinking = model.ThinkingIdle
	a.tool = model.ToolIdle
	a.done = true
}

func (a *Assembler) fail(reason string) error {
	if a.thinkOpen {
		a.thinkOpen = false
		a.timer.EndSpan(a.msg)
	}
	a.thinking = model.ThinkingIdle
	a.tool = model.ToolIdle
	a.failureReason = reason
	return &SessionError{Type: ErrTypeStream, Message: reason}
}
