// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the visual styling system for the rigchat TUI.
package styles

import (
	"github.com/charmbracelet/lipgloss"
)

// =============================================================================
// PALETTE
// =============================================================================

var (
	Purple  = lipgloss.Color("99")
	Cyan    = lipgloss.Color("51")
	Emerald = lipgloss.Color("42")
	Amber   = lipgloss.Color("214")
	Rose    = lipgloss.Color("203")
	Slate   = lipgloss.Color("240")
	Snow    = lipgloss.Color("255")
)

// =============================================================================
// THEME
// =============================================================================

// Theme holds the styled components for the chat view.
type Theme struct {
	IsDark bool

	Header lipgloss.Style

	UserLabel      lipgloss.Style
	AssistantLabel lipgloss.Style
	MessageBody    lipgloss.Style
	Timestamp      lipgloss.Style

	ThinkingText lipgloss.Style
	ThinkingTime lipgloss.Style

	ToolBadge   lipgloss.Style
	SearchBadge lipgloss.Style

	StatusBar    lipgloss.Style
	StatusOK     lipgloss.Style
	StatusBusy   lipgloss.Style
	StatusError  lipgloss.Style
	ShortcutKey  lipgloss.Style
	ShortcutDesc lipgloss.Style

	InputContainer lipgloss.Style
	ErrorBox       lipgloss.Style
	Spinner        lipgloss.Style
}

// NewTheme builds the theme for the given variant ("dark" or "light").
func NewTheme(variant string) *Theme {
	t := &Theme{IsDark: variant != "light"}

	text := lipgloss.Color("252")
	dim := lipgloss.Color("245")
	if !t.IsDark {
		text = lipgloss.Color("235")
		dim = lipgloss.Color("243")
	}

	t.Header = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan).
		Padding(0, 1)

	t.UserLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(Emerald)

	t.AssistantLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(Purple)

	t.MessageBody = lipgloss.NewStyle().
		Foreground(text)

	t.Timestamp = lipgloss.NewStyle().
		Foreground(Slate).
		Faint(true)

	t.ThinkingText = lipgloss.NewStyle().
		Foreground(dim).
		Italic(true)

	t.ThinkingTime = lipgloss.NewStyle().
		Foreground(Amber)

	t.ToolBadge = lipgloss.NewStyle().
		Foreground(Snow).
		Background(Slate).
		Padding(0, 1)

	t.SearchBadge = lipgloss.NewStyle().
		Foreground(Snow).
		Background(Purple).
		Padding(0, 1)

	t.StatusBar = lipgloss.NewStyle().
		Foreground(dim).
		Padding(0, 1)

	t.StatusOK = lipgloss.NewStyle().Foreground(Emerald)
	t.StatusBusy = lipgloss.NewStyle().Foreground(Amber)
	t.StatusError = lipgloss.NewStyle().Foreground(Rose)

	t.ShortcutKey = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan)

	t.ShortcutDesc = lipgloss.NewStyle().
		Foreground(dim)

	t.InputContainer = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderTop(true).
		BorderForeground(Slate)

	t.ErrorBox = lipgloss.NewStyle().
		Foreground(Rose).
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderForeground(Rose).
		PaddingLeft(1)

	t.Spinner = lipgloss.NewStyle().Foreground(Purple)

	return t
}
