// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/util"
)

const (
	thinkOpenMarker  = "<think>"
	thinkCloseMarker = "</think>"
)

// View implements tea.Model.
func (m *Model) View() string {
	if !m.ready {
		return "loading..."
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.renderStatusLine())
	b.WriteString("\n")
	b.WriteString(m.theme.InputContainer.Width(m.width).Render(m.input.View()))
	b.WriteString("\n")
	b.WriteString(m.renderShortcuts())
	return b.String()
}

// =============================================================================
// HEADER AND FOOTER
// =============================================================================

func (m *Model) renderHeader() string {
	title := "rigchat"
	if mdl := m.controller.Model(); mdl != "" {
		// Column budget, not rune count: CJK model names are double-width.
		maxw := 40
		if avail := m.width - util.StringWidth(title) - 10; avail > 0 && avail < maxw {
			maxw = avail
		}
		title += "  " + util.TruncateWidth(mdl, maxw)
	}
	if m.status.WebSearchEnabled {
		title += "  " + m.theme.SearchBadge.Render("web")
	}
	return m.theme.Header.Width(m.width).Render(title)
}

func (m *Model) renderShortcuts() string {
	parts := []string{
		m.theme.ShortcutKey.Render("enter") + m.theme.ShortcutDesc.Render(" send"),
		m.theme.ShortcutKey.Render("esc") + m.theme.ShortcutDesc.Render(" stop"),
		m.theme.ShortcutKey.Render("ctrl+s") + m.theme.ShortcutDesc.Render(" web search"),
		m.theme.ShortcutKey.Render("ctrl+c") + m.theme.ShortcutDesc.Render(" quit"),
	}
	return m.theme.StatusBar.Render(strings.Join(parts, "  "))
}

// =============================================================================
// STATUS LINE
// =============================================================================

func (m *Model) renderStatusLine() string {
	if m.lastError != "" {
		return m.theme.ErrorBox.Width(m.width - 2).Render(m.lastError)
	}

	var parts []string
	switch m.status.Generation {
	case model.GenerationConnecting:
		parts = append(parts, m.spin.View()+m.theme.StatusBusy.Render("connecting"))
	case model.GenerationGenerating:
		parts = append(parts, m.spin.View()+m.theme.StatusBusy.Render("generating"))
	case model.GenerationFailed:
		reason := m.status.FailureReason
		if reason == "" {
			reason = "failed"
		}
		if m.width > 12 {
			reason = util.TruncateWidth(reason, m.width-12)
		}
		parts = append(parts, m.theme.StatusError.Render(reason))
	default:
		parts = append(parts, m.theme.StatusOK.Render("ready"))
	}

	if m.status.Model == model.ModelLoading {
		parts = append(parts, m.theme.StatusBusy.Render(
			fmt.Sprintf("loading model %d%%", m.status.LoadingProgress)))
	}
	if m.status.Thinking == model.ThinkingActive {
		parts = append(parts, m.theme.ThinkingText.Render("thinking..."))
	}
	switch m.status.Tool {
	case model.ToolWebSearch:
		parts = append(parts, m.theme.SearchBadge.Render("searching"))
	case model.ToolCalling, model.ToolMCP:
		parts = append(parts, m.theme.ToolBadge.Render("tool"))
	}

	return m.theme.StatusBar.Width(m.width).Render(strings.Join(parts, "  "))
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

func (m *Model) renderTranscript() string {
	msgs := m.controller.Messages()

	var b strings.Builder
	for i := range msgs {
		msg := &msgs[i]
		if m.streaming && msg.ID == m.status.ActiveMessageID {
			// The in-flight assistant message renders from the flushed
			// stream buffer instead, so paint rate stays capped.
			b.WriteString(m.renderLiveMessage())
		} else {
			b.WriteString(m.renderMessage(msg))
		}
		b.WriteString("\n")
	}
	if b.Len() == 0 {
		return m.theme.Timestamp.Render("No messages yet. Say something.")
	}
	return b.String()
}

func (m *Model) renderMessage(msg *model.Message) string {
	var b strings.Builder
	b.WriteString(m.renderLabel(msg.Role))
	if m.uiCfg.ShowTimestamps {
		b.WriteString("  " + m.theme.Timestamp.Render(msg.Timestamp.Format("15:04:05")))
	}
	b.WriteString("\n")

	if msg.Role == model.RoleAssistant {
		b.WriteString(m.renderAssistantContent(msg.Content, msg.ThinkSpans))
	} else {
		b.WriteString(m.theme.MessageBody.Render(msg.Content))
	}
	if msg.Document != nil {
		b.WriteString("\n" + m.theme.ToolBadge.Render("doc: "+msg.Document.Name))
	}
	b.WriteString("\n")
	return b.String()
}

func (m *Model) renderLiveMessage() string {
	var b strings.Builder
	b.WriteString(m.renderLabel(model.RoleAssistant))
	b.WriteString("\n")
	b.WriteString(m.renderAssistantContent(m.live, nil))
	b.WriteString("\n")
	return b.String()
}

func (m *Model) renderLabel(role model.Role) string {
	if role == model.RoleUser {
		return m.theme.UserLabel.Render(role.DisplayName())
	}
	return m.theme.AssistantLabel.Render(role.DisplayName())
}

// renderAssistantContent renders assistant text, folding think marker pairs
// into styled thinking sections. spans supplies recorded durations; a nil
// slice (live streaming) renders the section without one.
func (m *Model) renderAssistantContent(content string, spans []model.ThinkSpan) string {
	if !strings.Contains(content, thinkOpenMarker) {
		return m.theme.MessageBody.Render(content)
	}

	var b strings.Builder
	spanIdx := 0
	rest := content
	for {
		open := strings.Index(rest, thinkOpenMarker)
		if open < 0 {
			b.WriteString(m.theme.MessageBody.Render(rest))
			break
		}
		if open > 0 {
			b.WriteString(m.theme.MessageBody.Render(rest[:open]))
		}
		rest = rest[open+len(thinkOpenMarker):]

		var thought string
		closeIdx := strings.Index(rest, thinkCloseMarker)
		if closeIdx < 0 {
			// Unterminated during streaming.
			thought = rest
			rest = ""
		} else {
			thought = rest[:closeIdx]
			rest = rest[closeIdx+len(thinkCloseMarker):]
		}

		if m.uiCfg.ShowThinking {
			b.WriteString(m.theme.ThinkingText.Render(strings.TrimSpace(thought)))
			b.WriteString("\n")
		}
		b.WriteString(m.renderThinkingLabel(spans, spanIdx, closeIdx >= 0))
		spanIdx++

		if rest == "" {
			break
		}
	}
	return b.String()
}

func (m *Model) renderThinkingLabel(spans []model.ThinkSpan, idx int, closed bool) string {
	if !closed {
		return m.theme.ThinkingTime.Render("thinking...") + "\n"
	}
	if idx < len(spans) {
		secs := spans[idx].Duration().Seconds()
		return m.theme.ThinkingTime.Render(fmt.Sprintf("thought for %.1fs", secs)) + "\n"
	}
	return ""
}
