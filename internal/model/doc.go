// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures shared across rigchat:
// conversations, messages, thinking spans, and the session status snapshot.
//
// The types here are plain data. Behavior lives in the packages that own
// each concern:
//
//   - internal/session mutates the in-flight assistant Message and the
//     SessionStatus snapshot
//   - internal/thinking records ThinkSpan entries on a Message
//   - internal/storage persists Conversations
//
// Messages carry JSON tags because they cross two boundaries: the local
// conversation store and (for the user message) the outbound wire frame
// built by internal/protocol.
package model
