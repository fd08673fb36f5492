// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/rigchat/internal/config"
	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/session"
	"github.com/jeranaias/rigchat/internal/ui/styles"
)

// =============================================================================
// MESSAGES
// =============================================================================

// StatusChangedMsg signals that the session status changed; the model
// re-reads the controller's snapshot rather than carrying it in the message.
type StatusChangedMsg struct{}

// TurnFinishedMsg reports the outcome of a SendTurn call.
type TurnFinishedMsg struct {
	Err error
}

// =============================================================================
// CHAT MODEL
// =============================================================================

// Model is the Bubble Tea model for the chat view.
type Model struct {
	controller *session.Controller
	theme      *styles.Theme
	keys       KeyMap
	uiCfg      config.UIConfig

	viewport viewport.Model
	input    textarea.Model
	spin     spinner.Model

	// events carries controller callbacks onto the Bubble Tea loop.
	events chan tea.Msg
	stream *StreamingBuffer

	status    model.SessionStatus
	live      string // partial assistant content for the in-flight turn
	streaming bool
	lastError string

	width  int
	height int
	ready  bool
}

// New creates the chat view over a session controller. It registers the
// controller callbacks, so construct it before sending any turns.
func New(controller *session.Controller, uiCfg config.UIConfig) *Model {
	input := textarea.New()
	input.Placeholder = "Ask anything..."
	input.ShowLineNumbers = false
	input.SetHeight(2)
	input.Focus()

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	m := &Model{
		controller: controller,
		theme:      styles.NewTheme(uiCfg.Theme),
		keys:       DefaultKeyMap(),
		uiCfg:      uiCfg,
		input:      input,
		spin:       spin,
		events:     make(chan tea.Msg, 64),
		stream:     NewStreamingBuffer(),
		status:     controller.Status(),
	}
	m.spin.Style = m.theme.Spinner

	controller.SetStatusCallback(func(model.SessionStatus) {
		// Non-blocking: a dropped notification is fine, the next tick
		// re-reads the live snapshot anyway.
		select {
		case m.events <- StatusChangedMsg{}:
		default:
		}
	})
	controller.SetDeltaCallback(func(_, fragment string) {
		m.stream.Write(fragment)
	})

	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		m.spin.Tick,
		m.waitForEvent(),
	)
}

// waitForEvent relays one controller callback onto the update loop.
func (m *Model) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		return <-m.events
	}
}

// sendTurnCmd runs the blocking SendTurn off the update loop.
func (m *Model) sendTurnCmd(content string) tea.Cmd {
	return func() tea.Msg {
		_, err := m.controller.SendTurn(context.Background(), content, session.TurnOptions{})
		return TurnFinishedMsg{Err: err}
	}
}
