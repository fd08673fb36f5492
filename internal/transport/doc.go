// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package transport provides the WebSocket channel backing one streaming
// turn. It is a deliberately thin boundary: Open dials, Send writes one
// frame, Close is idempotent, and inbound frames plus the final close are
// delivered through callbacks. Retry and timeout policy live in the
// session controller, never here.
package transport
