// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides local conversation persistence for rigchat.
//
// Each conversation is one JSON file under the data directory. The backend
// owns the canonical transcript; this mirror exists for offline browsing
// and for restoring sessions without a round trip.
package storage
