// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view for the rigchat TUI.
//
// The view wraps a session.Controller: keystrokes become turns, controller
// callbacks become Bubble Tea messages, and streamed fragments are batched
// through a StreamingBuffer so rendering stays smooth at a capped frame
// rate instead of repainting per token.
package chat
