// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)

	case tea.KeyMsg:
		if cmd, handled := m.handleKey(msg); handled {
			return m, cmd
		}

	case StatusChangedMsg:
		m.status = m.controller.Status()
		cmds = append(cmds, m.waitForEvent())

	case StreamTickMsg:
		if chunk, ok := m.stream.Flush(); ok {
			m.live += chunk
			m.refreshViewport()
		}
		if m.streaming {
			cmds = append(cmds, streamTickCmd())
		}

	case TurnFinishedMsg:
		m.streaming = false
		m.stream.Reset()
		m.live = ""
		m.status = m.controller.Status()
		if msg.Err != nil {
			m.lastError = msg.Err.Error()
		}
		m.refreshViewport()
		m.viewport.GotoBottom()
	}

	// Forward remaining input to the child components.
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	m.spin, cmd = m.spin.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.controller.Cancel(context.Background())
		return tea.Quit, true

	case key.Matches(msg, m.keys.Cancel):
		if m.status.Busy() {
			m.controller.Cancel(context.Background())
		}
		return nil, true

	case key.Matches(msg, m.keys.ToggleSearch):
		if !m.status.Busy() {
			m.controller.SetWebSearch(!m.status.WebSearchEnabled)
			m.status = m.controller.Status()
		}
		return nil, true

	case key.Matches(msg, m.keys.Send):
		return m.submit(), true
	}
	return nil, false
}

// submit starts a turn from the current input, if the session is idle.
func (m *Model) submit() tea.Cmd {
	if m.status.Busy() {
		return nil
	}
	content := strings.TrimSpace(m.input.Value())
	if content == "" {
		return nil
	}

	m.input.Reset()
	m.lastError = ""
	m.live = ""
	m.stream.Reset()
	m.streaming = true
	m.refreshViewport()
	m.viewport.GotoBottom()

	return tea.Batch(m.sendTurnCmd(content), streamTickCmd())
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height

	headerHeight := 1
	statusHeight := 2
	inputHeight := m.input.Height() + 1
	bodyHeight := height - headerHeight - statusHeight - inputHeight
	if bodyHeight < 1 {
		bodyHeight = 1
	}

	if !m.ready {
		m.viewport = viewport.New(width, bodyHeight)
		m.ready = true
	} else {
		m.viewport.Width = width
		m.viewport.Height = bodyHeight
	}
	m.input.SetWidth(width - 2)

	m.refreshViewport()
	m.viewport.GotoBottom()
}

// refreshViewport re-renders the transcript, including the live partial
// assistant message while streaming.
func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderTranscript())
	if m.streaming {
		m.viewport.GotoBottom()
	}
}
