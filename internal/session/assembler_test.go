// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"testing"

	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/protocol"
	"github.com/jeranaias/rigchat/internal/thinking"
)

func newTestAssembler(webSearch bool) (*Assembler, *model.Message) {
	msg := model.NewAssistantMessage("test-model")
	return NewAssembler(msg, thinking.NewTimer(), webSearch), msg
}

func delta(s string) protocol.Frame {
	return protocol.Frame{Kind: protocol.KindDelta, Content: s}
}

func doneFrame() protocol.Frame {
	return protocol.Frame{Kind: protocol.KindDone}
}

func TestAssemblerAccumulatesDeltas(t *testing.T) {
	asm, msg := newTestAssembler(false)

	for _, s := range []string{"Hi", " there"} {
		done, err := asm.Apply(delta(s))
		if done || err != nil {
			t.Fatalf("Apply(%q) = (%v, %v), want (false, nil)", s, done, err)
		}
	}

	done, err := asm.Apply(doneFrame())
	if !done || err != nil {
		t.Fatalf("Apply(done) = (%v, %v), want (true, nil)", done, err)
	}
	if msg.Content != "Hi there" {
		t.Errorf("content = %q, want %q", msg.Content, "Hi there")
	}
	if len(msg.ThinkSpans) != 0 {
		t.Errorf("spans = %d, want 0", len(msg.ThinkSpans))
	}
}

func TestAssemblerIgnoresFramesAfterDone(t *testing.T) {
	asm, msg := newTestAssembler(false)

	asm.Apply(delta("final"))
	asm.Apply(doneFrame())
	asm.Apply(delta(" extra"))

	if msg.Content != "final" {
		t.Errorf("content = %q, want %q", msg.Content, "final")
	}
}

func TestAssemblerThinkMarkers(t *testing.T) {
	asm, msg := newTestAssembler(false)

	asm.Apply(delta("<think>"))
	if got := asm.Thinking(); got != model.ThinkingActive {
		t.Errorf("thinking after open = %v, want %v", got, model.ThinkingActive)
	}

	asm.Apply(delta("reasoning here"))
	asm.Apply(delta("</think>"))
	if got := asm.Thinking(); got != model.ThinkingCompleted {
		t.Errorf("thinking after close = %v, want %v", got, model.ThinkingCompleted)
	}

	asm.Apply(delta("the answer"))
	asm.Apply(doneFrame())

	if len(msg.ThinkSpans) != 1 {
		t.Fatalf("spans = %d, want 1", len(msg.ThinkSpans))
	}
	if msg.ThinkSpans[0].Open() {
		t.Error("span still open after close marker")
	}
}

func TestAssemblerMarkerSplitAcrossDeltas(t *testing.T) {
	asm, msg := newTestAssembler(false)

	for _, s := range []string{"<th", "ink>deep thought</th", "ink>done"} {
		asm.Apply(delta(s))
	}
	asm.Apply(doneFrame())

	if len(msg.ThinkSpans) != 1 {
		t.Fatalf("spans = %d, want 1", len(msg.ThinkSpans))
	}
	if msg.ThinkSpans[0].Open() {
		t.Error("split close marker not recognized")
	}
}

func TestAssemblerMarkerSplitBytewise(t *testing.T) {
	asm, msg := newTestAssembler(false)

	full := "<think>a</think>b"
	for _, r := range full {
		asm.Apply(delta(string(r)))
	}
	asm.Apply(doneFrame())

	if msg.Content != full {
		t.Errorf("content = %q, want %q", msg.Content, full)
	}
	if len(msg.ThinkSpans) != 1 {
		t.Fatalf("spans = %d, want 1", len(msg.ThinkSpans))
	}
}

func TestAssemblerMultipleSpans(t *testing.T) {
	asm, msg := newTestAssembler(false)

	asm.Apply(delta("<think>one</think>mid<think>two</think>end"))
	asm.Apply(doneFrame())

	if len(msg.ThinkSpans) != 2 {
		t.Fatalf("spans = %d, want 2", len(msg.ThinkSpans))
	}
	for i, sp := range msg.ThinkSpans {
		if sp.Open() {
			t.Errorf("span %d still open", i)
		}
	}
}

func TestAssemblerDoneForceClosesOpenSpan(t *testing.T) {
	asm, msg := newTestAssembler(false)

	asm.Apply(delta("<think>never closed"))
	done, err := asm.Apply(doneFrame())
	if !done || err != nil {
		t.Fatalf("Apply(done) = (%v, %v), want (true, nil)", done, err)
	}

	if len(msg.ThinkSpans) != 1 {
		t.Fatalf("spans = %d, want 1", len(msg.ThinkSpans))
	}
	if msg.ThinkSpans[0].Open() {
		t.Error("span not force-closed on done")
	}
	if got := asm.Thinking(); got != model.ThinkingIdle {
		t.Errorf("thinking after done = %v, want %v", got, model.ThinkingIdle)
	}
}

func TestAssemblerErrorFrame(t *testing.T) {
	asm, msg := newTestAssembler(false)

	asm.Apply(delta("partial"))
	_, err := asm.Apply(protocol.Frame{Kind: protocol.KindError, ErrorDetail: "backend exploded"})
	if err == nil {
		t.Fatal("expected error from error frame")
	}

	// Terminal: later frames are ignored.
	asm.Apply(delta(" more"))
	if msg.Content != "partial" {
		t.Errorf("content = %q, want %q", msg.Content, "partial")
	}
}

func TestAssemblerErrorClosesOpenSpan(t *testing.T) {
	asm, msg := newTestAssembler(false)

	asm.Apply(delta("<think>interrupted"))
	asm.Apply(protocol.Frame{Kind: protocol.KindError, ErrorDetail: "boom"})

	if len(msg.ThinkSpans) != 1 || msg.ThinkSpans[0].Open() {
		t.Error("open span not closed on error frame")
	}
}

func TestAssemblerModelLoading(t *testing.T) {
	asm, _ := newTestAssembler(false)

	asm.Apply(protocol.Frame{
		Kind:    protocol.KindModelLoading,
		Loading: protocol.ModelLoading{Status: protocol.LoadStatusLoading, Progress: 40},
	})
	load, progress := asm.Load()
	if load != model.ModelLoading || progress != 40 {
		t.Errorf("load = (%v, %d), want (%v, 40)", load, progress, model.ModelLoading)
	}

	asm.Apply(protocol.Frame{
		Kind:    protocol.KindModelLoading,
		Loading: protocol.ModelLoading{Status: protocol.LoadStatusReady},
	})
	load, progress = asm.Load()
	if load != model.ModelReady || progress != 100 {
		t.Errorf("load = (%v, %d), want (%v, 100)", load, progress, model.ModelReady)
	}
}

func TestAssemblerModelLoadError(t *testing.T) {
	asm, _ := newTestAssembler(false)

	_, err := asm.Apply(protocol.Frame{
		Kind:    protocol.KindModelLoading,
		Loading: protocol.ModelLoading{Status: protocol.LoadStatusError, Message: "out of memory"},
	})
	if err == nil {
		t.Fatal("expected error from model load failure")
	}
	load, _ := asm.Load()
	if load != model.ModelError {
		t.Errorf("load = %v, want %v", load, model.ModelError)
	}
}

func TestAssemblerToolEvents(t *testing.T) {
	tests := []struct {
		name       string
		webSearch  bool
		event      protocol.ToolEvent
		wantStatus model.ToolStatus
	}{
		{"requested web search", true, protocol.ToolEvent{Phase: protocol.ToolPhaseCall, Kind: protocol.ToolKindWebSearch}, model.ToolWebSearch},
		{"unrequested web search", false, protocol.ToolEvent{Phase: protocol.ToolPhaseCall, Kind: protocol.ToolKindWebSearch}, model.ToolCalling},
		{"mcp call", false, protocol.ToolEvent{Phase: protocol.ToolPhaseCall, Kind: protocol.ToolKindMCP}, model.ToolMCP},
		{"generic call", false, protocol.ToolEvent{Phase: protocol.ToolPhaseCall, Kind: protocol.ToolKindOther}, model.ToolCalling},
		{"result", true, protocol.ToolEvent{Phase: protocol.ToolPhaseResult, Kind: protocol.ToolKindWebSearch}, model.ToolCompleted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			asm, _ := newTestAssembler(tt.webSearch)
			asm.Apply(protocol.Frame{Kind: protocol.KindToolEvent, Tool: tt.event})
			if got := asm.Tool(); got != tt.wantStatus {
				t.Errorf("tool = %v, want %v", got, tt.wantStatus)
			}
		})
	}
}

func TestAssemblerEmptyDelta(t *testing.T) {
	asm, msg := newTestAssembler(false)

	asm.Apply(delta(""))
	asm.Apply(delta("x"))
	asm.Apply(delta(""))

	if msg.Content != "x" {
		t.Errorf("content = %q, want %q", msg.Content, "x")
	}
}
