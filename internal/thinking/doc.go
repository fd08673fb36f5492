// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package thinking tracks timed thinking spans inside assistant messages.
//
// A span opens when a thinking region begins in the streamed content and
// closes when the matching close marker arrives. Spans are persisted keyed
// by (conversation ID, fingerprint of the message's first 100 content
// characters) so elapsed thinking time survives conversation reloads.
// Merging on reload is monotonic: a stored history only replaces the local
// one when it records more spans.
package thinking
