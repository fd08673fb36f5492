// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"strings"
	"testing"

	"github.com/jeranaias/rigchat/internal/config"
	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/session"
	"github.com/jeranaias/rigchat/internal/ui/styles"
)

type stubBackend struct{}

func (stubBackend) StreamURL(string) (string, error)              { return "", nil }
func (stubBackend) AbortGeneration(context.Context, string) error { return nil }

func (stubBackend) UpdateConversationModel(context.Context, string, string) error {
	return nil
}

func newViewModel(showThinking bool) *Model {
	return &Model{
		theme: styles.NewTheme("dark"),
		uiCfg: config.UIConfig{Theme: "dark", ShowThinking: showThinking},
	}
}

func TestRenderAssistantContentPlain(t *testing.T) {
	m := newViewModel(true)
	out := m.renderAssistantContent("just an answer", nil)
	if !strings.Contains(out, "just an answer") {
		t.Errorf("output missing content: %q", out)
	}
}

func TestRenderAssistantContentFoldsThinkMarkers(t *testing.T) {
	m := newViewModel(true)
	spans := []model.ThinkSpan{{StartMs: 0, EndMs: 1500, DurationMs: 1500}}

	out := m.renderAssistantContent("<think>pondering deeply</think>the answer", spans)

	if strings.Contains(out, thinkOpenMarker) || strings.Contains(out, thinkCloseMarker) {
		t.Errorf("markers leaked into render: %q", out)
	}
	if !strings.Contains(out, "pondering deeply") {
		t.Errorf("thought text missing: %q", out)
	}
	if !strings.Contains(out, "thought for 1.5s") {
		t.Errorf("duration label missing: %q", out)
	}
	if !strings.Contains(out, "the answer") {
		t.Errorf("answer missing: %q", out)
	}
}

func TestRenderAssistantContentHidesThinkingWhenDisabled(t *testing.T) {
	m := newViewModel(false)
	out := m.renderAssistantContent("<think>secret reasoning</think>answer", nil)

	if strings.Contains(out, "secret reasoning") {
		t.Errorf("thinking shown despite being disabled: %q", out)
	}
	if !strings.Contains(out, "answer") {
		t.Errorf("answer missing: %q", out)
	}
}

func TestRenderAssistantContentUnterminatedThink(t *testing.T) {
	m := newViewModel(true)
	out := m.renderAssistantContent("<think>still going", nil)

	if !strings.Contains(out, "thinking...") {
		t.Errorf("live thinking label missing: %q", out)
	}
}

func TestRenderHeaderTruncatesWideModelName(t *testing.T) {
	c := session.NewController(session.DefaultConfig(), stubBackend{})
	if err := c.SetModel(context.Background(), "日本語の非常に長いモデル名がここに続く"); err != nil {
		t.Fatal(err)
	}

	m := newViewModel(true)
	m.controller = c
	m.width = 30

	out := m.renderHeader()
	if !strings.Contains(out, "日本") {
		t.Errorf("model name prefix missing: %q", out)
	}
	if strings.Contains(out, "続") {
		t.Errorf("wide model name not truncated to the column budget: %q", out)
	}
	if !strings.Contains(out, "...") {
		t.Errorf("truncation marker missing: %q", out)
	}
}

func TestRenderAssistantContentMultipleSpans(t *testing.T) {
	m := newViewModel(true)
	spans := []model.ThinkSpan{
		{StartMs: 0, EndMs: 1000, DurationMs: 1000},
		{StartMs: 2000, EndMs: 2500, DurationMs: 500},
	}

	out := m.renderAssistantContent("<think>one</think>mid<think>two</think>end", spans)

	if !strings.Contains(out, "thought for 1.0s") || !strings.Contains(out, "thought for 0.5s") {
		t.Errorf("span durations missing: %q", out)
	}
	if !strings.Contains(out, "mid") || !strings.Contains(out, "end") {
		t.Errorf("surrounding content missing: %q", out)
	}
}
