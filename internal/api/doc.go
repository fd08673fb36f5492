// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api is the REST client for the chat backend.
//
// The Client covers conversation and model management plus the abort
// endpoint, and builds the websocket stream URL for a conversation. Auth
// tokens come from a CredentialProvider and are resolved fresh for every
// request, so rotated credentials take effect without restarting.
package api
