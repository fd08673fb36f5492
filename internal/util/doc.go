// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides utility functions for rigchat.
//
// String Utilities:
//   - TruncateWidth, StringWidth: display-width aware truncation and
//     measurement, safe for double-width (CJK) characters
//
// File Operations:
//   - AtomicWriteFile: Crash-safe file writing with fsync
package util
