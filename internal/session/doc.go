// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session drives a streaming chat turn from send to terminal state.
//
// The Controller owns the conversation transcript and the session status
// snapshot. SendTurn encodes the user message, opens a streaming channel with
// connect-timeout retries, and folds inbound frames through an Assembler into
// the in-progress assistant message until the turn completes, fails, or is
// cancelled. Observers receive immutable status snapshots via callback.
package session
